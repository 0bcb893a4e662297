package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	exportOut string
	exportDir string
)

var exportCmd = &cobra.Command{
	Use:   "export <history id>",
	Short: "Export a history item as a zip archive",
	Long: `Export the files of a stored result.

By default the archive is written to <project>-blueprint.zip in the current
directory.

Example:
  stackforge export hist-1760000000000-1a2b3c4d
  stackforge export hist-1760000000000-1a2b3c4d --out ~/Downloads/todo.zip
  stackforge export hist-1760000000000-1a2b3c4d --dir ./todo-app`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Archive path (default <project>-blueprint.zip)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Write the files into this directory instead of an archive")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.store.HistoryItem(args[0])
	if err != nil {
		return err
	}

	if exportDir != "" {
		if err := writeFiles(exportDir, item.Blueprint.Files); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d files to %s\n", len(item.Blueprint.Files), exportDir)
		return nil
	}

	path, err := writeArchive(exportOut, item.ProjectName, item.Blueprint.Files)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%d files) to %s\n", item.ProjectName, len(item.Blueprint.Files), path)
	return nil
}
