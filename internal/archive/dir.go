package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/language"
	"github.com/saeedalam/stackforge/pkg/types"
)

// DecodeDir reads a project directory with the same admission rules as
// Decode. Paths are relative to root and use forward slashes; the project
// name is the directory's base name.
func (d *Decoder) DecodeDir(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, "cannot read project directory")
	}
	if !info.IsDir() {
		return nil, apperr.Newf(apperr.KindInvalidInput, "%s is not a directory", root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, "cannot resolve project directory")
	}

	res := &Result{
		ProjectName: filepath.Base(abs),
		Files:       []types.FileRecord{},
	}

	err = filepath.WalkDir(abs, func(p string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == abs {
			return walkErr
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if walkErr != nil {
			res.skip(rel, ReasonReadFailed)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			// Excluded fragments are substrings, so a matching directory
			// excludes everything below it.
			if Excluded(rel + "/") {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		if reason := admit(rel); reason != "" {
			res.skip(rel, reason)
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			res.skip(rel, ReasonReadFailed)
			return nil
		}
		content, reason := d.readText(uint64(fi.Size()), func() (io.ReadCloser, error) { return os.Open(p) })
		if reason != "" {
			if reason == ReasonNotUTF8 || reason == ReasonReadFailed {
				d.Log.Warn("skipping unreadable file", "path", rel, "reason", reason)
			}
			res.skip(rel, reason)
			return nil
		}

		res.Files = append(res.Files, types.FileRecord{
			Path:     rel,
			Content:  content,
			Language: language.ForPath(rel),
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(err)
		}
		return nil, err
	}

	d.Log.Debug("directory decoded", "dir", abs, "files", len(res.Files), "skipped", len(res.Skipped))
	return res, nil
}
