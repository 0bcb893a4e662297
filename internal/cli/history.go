package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/pkg/types"
)

var (
	historyLimit     int
	historyShowFiles bool
	historyForce     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage previous results",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored results, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			items, err := a.store.History()
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), items, historyLimit)
			return nil
		})
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search results by project name, description or file path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			items, err := a.store.SearchHistory(args[0])
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), items, historyLimit)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			item, err := a.store.HistoryItem(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created: %s\n", humanize.Time(time.UnixMilli(item.Timestamp)))
			printBlueprint(out, &item.Blueprint, item.ID)
			if historyShowFiles {
				for _, f := range item.Blueprint.Files {
					fmt.Fprintf(out, "\n=== %s ===\n%s\n", f.Path, f.Content)
				}
			}
			return nil
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.store.DeleteHistory(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !historyForce {
			return fmt.Errorf("refusing to clear history without --force")
		}
		return withApp(cmd, func(a *app) error {
			if err := a.store.ClearHistory(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Max items to show (0 for all)")
	historySearchCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Max items to show (0 for all)")
	historyShowCmd.Flags().BoolVar(&historyShowFiles, "files", false, "Print file contents")
	historyClearCmd.Flags().BoolVarP(&historyForce, "force", "f", false, "Confirm deleting every item")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// withApp runs fn with a bootstrapped app and closes it afterwards
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printHistory(w io.Writer, items []types.HistoryItem, limit int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No history items.")
		return
	}

	shown := items
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, item := range shown {
		fmt.Fprintf(w, "%s  %-14s %-30s %d files\n",
			item.ID,
			humanize.Time(time.UnixMilli(item.Timestamp)),
			truncate(item.ProjectName, 30),
			item.Blueprint.FileCount(),
		)
	}
	if len(shown) < len(items) {
		fmt.Fprintf(w, "... and %d more\n", len(items)-len(shown))
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Total: %d items\n", len(items))
}
