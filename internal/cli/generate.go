package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/pkg/types"
)

var (
	generateStack  string
	generateOut    string
	generateDir    string
	generateNoSave bool
	generateJSON   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <project name>",
	Short: "Generate a new project blueprint",
	Long: `Generate a complete multi-file project for a stack.

The active provider from your settings is used. The result is saved to
history unless --no-save is given.

Example:
  stackforge generate "Todo App"
  stackforge generate "Weather Dashboard" --stack react --out weather.zip
  stackforge generate "Sensor Hub" --stack arduino --dir ./sensor-hub`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateStack, "stack", "s", "", "Stack id (see 'stackforge stacks'); defaults to settings")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "Write the result as a zip archive to this path")
	generateCmd.Flags().StringVar(&generateDir, "dir", "", "Write the generated files into this directory")
	generateCmd.Flags().BoolVar(&generateNoSave, "no-save", false, "Do not record the result in history")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print the blueprint as JSON")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	projectName := strings.TrimSpace(args[0])
	if projectName == "" {
		return apperr.New(apperr.KindInvalidInput, "project name is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.settings()
	if err != nil {
		return err
	}
	stack := generateStack
	if stack == "" {
		stack = settings.DefaultStack
	}
	if _, ok := a.gen.Catalog().Lookup(stack); !ok && stack != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Unknown stack %q, using %q\n", stack, a.gen.Catalog().Default())
	}

	bp, err := a.gen.Generate(ctx, projectName, stack, settings, stageReporter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	return a.finish(cmd, bp, generateNoSave, generateJSON, generateOut, generateDir)
}

// finish records, writes and prints a generated or enhanced blueprint
func (a *app) finish(cmd *cobra.Command, bp *types.Blueprint, noSave, asJSON bool, out, dir string) error {
	historyID := ""
	if !noSave {
		item, err := a.store.AddHistory(bp.ProjectName, bp)
		if err != nil {
			a.log.Warn("failed to record history", "error", err)
		} else {
			historyID = item.ID
		}
	}

	if out != "" {
		path, err := writeArchive(out, bp.ProjectName, bp.Files)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Archive written to %s\n", path)
	}
	if dir != "" {
		if err := writeFiles(dir, bp.Files); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Files written to %s\n", dir)
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), bp)
	}
	printBlueprint(cmd.OutOrStdout(), bp, historyID)
	return nil
}
