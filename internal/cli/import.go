package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/apperr"
)

var (
	importExtract string
	importJSON    bool
)

var importCmd = &cobra.Command{
	Use:   "import <archive.zip>",
	Short: "Inspect a project archive",
	Long: `Decode a project archive and list the files that would be sent for
enhancement, along with every skipped entry and the reason.

Example:
  stackforge import my-app.zip
  stackforge import my-app.zip --extract ./my-app
  stackforge import my-app.zip --json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importExtract, "extract", "", "Write the admitted files into this directory")
	importCmd.Flags().BoolVar(&importJSON, "json", false, "Print the decoded result as JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return apperr.Wrap(err, apperr.KindInvalidInput, "cannot read archive")
	}
	res, err := a.decoder.DecodeBytes(ctx, args[0], data)
	if err != nil {
		return err
	}

	if importExtract != "" {
		if err := writeFiles(importExtract, res.Files); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if importJSON {
		return printJSON(out, res)
	}

	fmt.Fprintf(out, "Project: %s (%s archive)\n", res.ProjectName, humanize.Bytes(uint64(len(data))))
	fmt.Fprintf(out, "Files (%d, %s):\n", len(res.Files), humanize.Bytes(contentSize(res.Files)))
	for _, f := range res.Files {
		fmt.Fprintf(out, "  %-40s %s\n", f.Path, f.Language)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped (%d):\n", len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(out, "  %-40s %s\n", s.Path, s.Reason)
		}
	}
	if importExtract != "" {
		fmt.Fprintf(out, "\nExtracted to %s\n", importExtract)
	}
	return nil
}
