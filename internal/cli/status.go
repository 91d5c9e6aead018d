package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sidas/internal/asset"
	"sidas/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status [asset]",
	Short: "Show stored state and what a run would do",
	Long: `Show the stored state of each asset and whether the next run would
materialize it. Nothing is computed or written.

With an asset name, only that asset and its ancestors are shown.

Examples:
  sidas status
  sidas status daily_report
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, orch, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		var target string
		if len(args) == 1 {
			target = args[0]
		}
		sts, err := orch.Status(cmd.Context(), target)
		if err != nil {
			return err
		}
		return writeStatus(cmd.OutOrStdout(), sts)
	},
}

func writeStatus(w io.Writer, sts []orchestrator.AssetStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tSTATE\tNEXT RUN\tLAST MATERIALIZED\tFINGERPRINT")
	for _, st := range sts {
		last := "-"
		if t := st.State.LastMaterializedAt; t != nil {
			last = t.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			st.Name, stateLabel(st.State.Normalize().Status), nextRun(st), last, dash(st.State.Fingerprint))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, st := range sts {
		if st.State.LastError != "" {
			fmt.Fprintf(w, "\n%s: last error: %s\n", st.Name, st.State.LastError)
		}
	}
	return nil
}

func stateLabel(s asset.Status) string {
	switch s {
	case asset.StatusFresh:
		return color.GreenString(string(s))
	case asset.StatusFailed:
		return color.RedString(string(s))
	case asset.StatusStale:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func nextRun(st orchestrator.AssetStatus) string {
	switch {
	case st.Err != nil:
		return "error: " + st.Err.Error()
	case st.Decision.Stale:
		return fmt.Sprintf("materialize (%s)", st.Decision.Reason)
	default:
		return "skip (fresh)"
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
