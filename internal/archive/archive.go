// Package archive packs blueprint files into zip archives and unpacks
// uploaded project archives into classified file records.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/language"
	"github.com/saeedalam/stackforge/internal/logger"
	"github.com/saeedalam/stackforge/pkg/types"
)

// DefaultMaxEntrySize caps the decompressed size of a single entry. Entries
// above the cap are skipped as too_large even when their extension is
// allow-listed; set Decoder.MaxEntrySize to 0 to admit entries of any size.
const DefaultMaxEntrySize = 2 << 20

// excludedFragments are matched as plain substrings of the entry path, so
// "mybuild.ts" is excluded too.
var excludedFragments = []string{
	"node_modules", ".git", "dist", "build", ".next", "__pycache__", ".DS_Store",
}

var allowedExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true, ".ts": true, ".tsx": true,
	".py": true, ".go": true, ".rs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true,
	".java": true, ".c": true, ".cpp": true, ".h": true, ".hpp": true, ".cs": true, ".ino": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".sass": true, ".less": true,
	".vue": true, ".svelte": true, ".xml": true, ".svg": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".env": true,
	".md": true, ".mdx": true, ".txt": true,
	".sh": true, ".bash": true, ".sql": true, ".graphql": true, ".prisma": true,
	".dockerfile": true,
}

var allowedNames = []string{"Makefile", "Dockerfile", "Jenkinsfile"}

// Skip reasons recorded in Result.Skipped
const (
	ReasonExcludedPath = "excluded_path"
	ReasonExtension    = "extension"
	ReasonNotUTF8      = "not_utf8"
	ReasonEmpty        = "empty"
	ReasonBinary       = "binary"
	ReasonTooLarge     = "too_large"
	ReasonReadFailed   = "read_failed"
	ReasonUnsafePath   = "unsafe_path"
	ReasonDuplicate    = "duplicate"
)

// Bundle is an encoded archive with its download name
type Bundle struct {
	Name string
	Data []byte
}

// SkippedEntry records an entry dropped during Decode
type SkippedEntry struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of Decode
type Result struct {
	ProjectName string             `json:"projectName"`
	Files       []types.FileRecord `json:"files"`
	Skipped     []SkippedEntry     `json:"skipped,omitempty"`
}

// FileName returns the download name for a project's archive
func FileName(projectName string) string {
	return projectName + "-blueprint.zip"
}

// Encode packs files into a zip archive named after the project
func Encode(projectName string, files []types.FileRecord) (*Bundle, error) {
	var buf bytes.Buffer
	if err := Write(&buf, files); err != nil {
		return nil, err
	}
	return &Bundle{Name: FileName(projectName), Data: buf.Bytes()}, nil
}

// Write streams the zip archive for files to w
func Write(w io.Writer, files []types.FileRecord) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	now := time.Now()
	for _, f := range files {
		name := strings.TrimPrefix(f.Path, "/")
		if name == "" {
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("create entry %q: %w", name, err)
		}
		if _, err := io.WriteString(fw, f.Content); err != nil {
			return fmt.Errorf("write entry %q: %w", name, err)
		}
	}
	return zw.Close()
}

// Decoder unpacks project archives
type Decoder struct {
	// MaxEntrySize is the largest entry read, in bytes. Zero or less
	// disables the check.
	MaxEntrySize int64
	Log          *logger.Logger
}

// NewDecoder returns a decoder with default limits
func NewDecoder(log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.Nop()
	}
	return &Decoder{MaxEntrySize: DefaultMaxEntrySize, Log: log}
}

// DecodeBytes is Decode over an in-memory archive
func (d *Decoder) DecodeBytes(ctx context.Context, archiveName string, data []byte) (*Result, error) {
	return d.Decode(ctx, archiveName, bytes.NewReader(data), int64(len(data)))
}

// Decode unpacks an archive into file records. Only an archive that cannot
// be opened fails the call; per-entry problems are recorded in Skipped.
// Entry names lose one leading "/"; names that still escape the project
// root and repeats of an admitted path are skipped.
func (d *Decoder) Decode(ctx context.Context, archiveName string, r io.ReaderAt, size int64) (*Result, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindArchiveOpen, "could not open archive")
	}

	res := &Result{
		ProjectName: GuessProjectName(archiveName),
		Files:       []types.FileRecord{},
	}

	seen := make(map[string]bool)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		name, ok := entryPath(f.Name)
		if !ok {
			res.skip(f.Name, ReasonUnsafePath)
			continue
		}
		if seen[name] {
			res.skip(f.Name, ReasonDuplicate)
			continue
		}
		if reason := admit(name); reason != "" {
			res.skip(name, reason)
			continue
		}

		content, reason := d.readText(f.UncompressedSize64, f.Open)
		if reason != "" {
			if reason == ReasonNotUTF8 || reason == ReasonReadFailed {
				d.Log.Warn("skipping unreadable archive entry", "path", name, "reason", reason)
			}
			res.skip(name, reason)
			continue
		}

		seen[name] = true
		res.Files = append(res.Files, types.FileRecord{
			Path:     name,
			Content:  content,
			Language: language.ForPath(name),
		})
	}

	d.Log.Debug("archive decoded",
		"archive", archiveName,
		"files", len(res.Files),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// readText loads one entry, returning its content or a skip reason. The
// checks run in order: size, UTF-8 validity, emptiness, NUL bytes.
func (d *Decoder) readText(size uint64, open func() (io.ReadCloser, error)) (string, string) {
	limit := d.MaxEntrySize
	if limit > 0 && size > uint64(limit) {
		return "", ReasonTooLarge
	}

	rc, err := open()
	if err != nil {
		return "", ReasonReadFailed
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", ReasonReadFailed
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", ReasonTooLarge
	}
	if !utf8.Valid(data) {
		return "", ReasonNotUTF8
	}
	if len(data) == 0 {
		return "", ReasonEmpty
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ReasonBinary
	}
	return string(data), ""
}

// entryPath strips one leading "/" from an entry name. It reports false for
// names that are still absolute or contain a ".." segment.
func entryPath(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", false
		}
	}
	return name, true
}

func cancelled(err error) error {
	return apperr.Wrap(err, apperr.KindInvalidInput, "archive decode cancelled")
}

func (r *Result) skip(p, reason string) {
	r.Skipped = append(r.Skipped, SkippedEntry{Path: p, Reason: reason})
}

// admit returns "" when the entry passes the path and extension filters,
// otherwise the skip reason.
func admit(name string) string {
	if Excluded(name) {
		return ReasonExcludedPath
	}
	if allowedExts[language.Ext(name)] {
		return ""
	}
	for _, n := range allowedNames {
		if strings.HasSuffix(name, n) {
			return ""
		}
	}
	return ReasonExtension
}

// Excluded reports whether a path contains one of the excluded fragments
func Excluded(name string) bool {
	for _, frag := range excludedFragments {
		if strings.Contains(name, frag) {
			return true
		}
	}
	return false
}

// Allowed reports whether an extension (".ts") is on the allow-list
func Allowed(ext string) bool {
	return allowedExts[strings.ToLower(ext)]
}

// GuessProjectName strips the directory and the .zip extension from an
// archive name.
func GuessProjectName(archiveName string) string {
	base := path.Base(strings.ReplaceAll(archiveName, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	if ext := path.Ext(base); strings.EqualFold(ext, ".zip") {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
