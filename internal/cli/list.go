package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sidas/internal/asset"
)

var listQuiet bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the assets declared in the project",
	Long: `List every asset declared in the project file, sorted by name.

Examples:
  sidas list
  sidas list -q
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ds := make([]asset.Descriptor, 0, p.Registry.Len())
		for _, name := range p.Registry.Names() {
			d, _ := p.Registry.Get(name)
			ds = append(ds, d)
		}
		if listQuiet {
			for _, d := range ds {
				fmt.Fprintln(cmd.OutOrStdout(), d.Name)
			}
			return nil
		}
		return writeAssetList(cmd.OutOrStdout(), ds)
	},
}

func writeAssetList(w io.Writer, ds []asset.Descriptor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tKIND\tGROUP\tUPSTREAMS\tSCHEDULE\tADAPTER")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name, d.Kind, dash(d.Group), dash(strings.Join(d.SortedUpstreams(), ",")), dash(d.Schedule), d.AdapterName)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&listQuiet, "quiet", "q", false, "Only print asset names")
}
