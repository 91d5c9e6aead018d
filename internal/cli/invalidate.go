package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sidas/internal/flags"
)

var invalidateCascade bool

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <asset>",
	Short: "Mark an asset stale so the next run recomputes it",
	Long: `Mark an asset stale so the next run recomputes it, even if nothing
upstream changed. With --cascade, every downstream asset is marked too.

Assets that were never materialized are left as they are.

Examples:
  sidas invalidate rates
  sidas invalidate rates --cascade
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, orch, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		names, err := orch.Invalidate(cmd.Context(), args[0], invalidateCascade)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated: %s\n", strings.Join(names, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
	invalidateCmd.Flags().BoolVar(&invalidateCascade, flags.FlagCascade, false, "Also invalidate every downstream asset")
}
