package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sidas/internal/compute"
)

var kindsListQuiet bool

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List built-in compute kinds",
	Long: `Compute kinds turn an asset's params into its compute function.

Every asset in a project file names one kind.

Examples:
  sidas kinds list
  sidas kinds show filter
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var kindsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available kinds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range compute.List() {
			if kindsListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), k.Name())
			} else {
				printKind(cmd.OutOrStdout(), k)
			}
		}
		return nil
	},
}

var kindsShowCmd = &cobra.Command{
	Use:   "show <kind>",
	Short: "Show details of a kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := compute.Resolve(args[0])
		if err != nil {
			return err
		}
		printKind(cmd.OutOrStdout(), k)
		return nil
	},
}

func printKind(w io.Writer, k compute.Kind) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "KIND: %s\n", k.Name())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, k.Title())
	fmt.Fprintln(w, k.Description())

	if opts := k.Options(); len(opts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Params:")
		for _, opt := range opts {
			fmt.Fprintf(w, "  %s", opt.Name)
			if opt.Required {
				fmt.Fprint(w, " (required)")
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "    Description: %s\n", opt.Description)
			if opt.Default != "" {
				fmt.Fprintf(w, "    Default:     %s\n", opt.Default)
			}
		}
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(kindsCmd)
	kindsCmd.AddCommand(kindsListCmd)
	kindsListCmd.Flags().BoolVarP(&kindsListQuiet, "quiet", "q", false, "Only print kind names")
	kindsCmd.AddCommand(kindsShowCmd)
}
