package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/archive"
)

var (
	enhanceInstructions string
	enhanceName         string
	enhanceOut          string
	enhanceDir          string
	enhanceNoSave       bool
	enhanceJSON         bool
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance <project dir | archive.zip>",
	Short: "Improve an existing project",
	Long: `Send an existing project to the provider and get the full improved
project back.

The input is either a directory or a zip archive. Files are filtered the same
way in both cases: dependency and build folders are skipped, and only text
files with a known source extension are sent.

Without --instructions a general code quality pass is requested.

Example:
  stackforge enhance ./my-app
  stackforge enhance my-app.zip -i "Add input validation and unit tests"
  stackforge enhance ./my-app --out my-app-v2.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runEnhance,
}

func init() {
	enhanceCmd.Flags().StringVarP(&enhanceInstructions, "instructions", "i", "", "What to improve (default: general code quality)")
	enhanceCmd.Flags().StringVar(&enhanceName, "name", "", "Project name (default: directory or archive name)")
	enhanceCmd.Flags().StringVarP(&enhanceOut, "out", "o", "", "Write the result as a zip archive to this path")
	enhanceCmd.Flags().StringVar(&enhanceDir, "dir", "", "Write the improved files into this directory")
	enhanceCmd.Flags().BoolVar(&enhanceNoSave, "no-save", false, "Do not record the result in history")
	enhanceCmd.Flags().BoolVar(&enhanceJSON, "json", false, "Print the blueprint as JSON")
}

func runEnhance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.readProject(ctx, args[0])
	if err != nil {
		return err
	}
	if len(project.Files) == 0 {
		return apperr.Newf(apperr.KindInvalidInput, "no eligible files found in %s", args[0])
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Sending %d files (%d skipped)\n", len(project.Files), len(project.Skipped))

	name := strings.TrimSpace(enhanceName)
	if name == "" {
		name = project.ProjectName
	}

	settings, err := a.settings()
	if err != nil {
		return err
	}

	bp, err := a.gen.Enhance(ctx, project.Files, enhanceInstructions, name, settings, stageReporter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	return a.finish(cmd, bp, enhanceNoSave, enhanceJSON, enhanceOut, enhanceDir)
}

// readProject loads a project from a directory or a zip archive
func (a *app) readProject(ctx context.Context, path string) (*archive.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, "cannot read project")
	}
	if info.IsDir() {
		return a.decoder.DecodeDir(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, "cannot read archive")
	}
	return a.decoder.DecodeBytes(ctx, path, data)
}
