package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/archive"
	"github.com/saeedalam/stackforge/internal/blueprint"
	"github.com/saeedalam/stackforge/pkg/types"
)

func contentSize(files []types.FileRecord) uint64 {
	var n uint64
	for _, f := range files {
		n += uint64(len(f.Content))
	}
	return n
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func printBlueprint(w io.Writer, bp *types.Blueprint, historyID string) {
	fmt.Fprintf(w, "Project: %s\n", bp.ProjectName)
	if bp.Description != "" {
		fmt.Fprintf(w, "  %s\n", truncate(bp.Description, 100))
	}
	if historyID != "" {
		fmt.Fprintf(w, "History ID: %s\n", historyID)
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))

	if strings.TrimSpace(bp.Structure) != "" {
		fmt.Fprintln(w, bp.Structure)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Files (%d, %s):\n", len(bp.Files), humanize.Bytes(contentSize(bp.Files)))
	for _, f := range bp.Files {
		fmt.Fprintf(w, "  %-40s %-12s %s\n", f.Path, f.Language, humanize.Bytes(uint64(len(f.Content))))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stageReporter prints stage transitions of a generator request
func stageReporter(w io.Writer) blueprint.Observer {
	start := time.Now()
	return func(s blueprint.Stage) {
		switch s {
		case blueprint.StageAwaitingProvider:
			fmt.Fprintln(w, "Waiting for the provider (this can take a minute)...")
		case blueprint.StageNormalizing:
			fmt.Fprintf(w, "Response received after %s\n", time.Since(start).Round(time.Second))
		}
	}
}

// writeArchive encodes files to path. An empty path writes
// <project>-blueprint.zip in the working directory.
func writeArchive(path, projectName string, files []types.FileRecord) (string, error) {
	bundle, err := archive.Encode(projectName, files)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = bundle.Name
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, bundle.Data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// writeFiles materializes files under dir. Paths that would escape dir are
// rejected before anything is written.
func writeFiles(dir string, files []types.FileRecord) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	targets := make([]string, len(files))
	for i, f := range files {
		rel := filepath.FromSlash(strings.TrimPrefix(f.Path, "/"))
		target := filepath.Join(root, rel)
		if !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return apperr.Newf(apperr.KindInvalidInput, "refusing to write %q outside %s", f.Path, dir)
		}
		targets[i] = target
	}

	for i, f := range files {
		if err := os.MkdirAll(filepath.Dir(targets[i]), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(targets[i], []byte(f.Content), 0644); err != nil {
			return err
		}
	}
	return nil
}
