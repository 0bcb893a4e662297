package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/blueprint"
)

var stacksCmd = &cobra.Command{
	Use:   "stacks",
	Short: "List the stacks available to generate",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		catalog := blueprint.DefaultCatalog()
		out := cmd.OutOrStdout()
		for _, s := range catalog.List() {
			marker := " "
			if s.ID == catalog.Default() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-16s %s\n", marker, s.ID, s.Name)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "* default when a stack id is not recognized")
	},
}
