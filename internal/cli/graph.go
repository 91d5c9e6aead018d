package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sidas/internal/flags"
	"sidas/internal/graph"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph [asset]",
	Short: "Print the asset dependency graph",
	Long: `Print the asset dependency graph in topological order.

The dot format can be rendered with Graphviz:

  sidas graph --format dot | dot -Tsvg > graph.svg

With an asset name, only that asset and its ancestors are printed.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch graphFormat {
		case "text", "dot":
		default:
			return fmt.Errorf("unsupported --%s: %q (must be one of: text, dot)", flags.FlagGraphFormat, graphFormat)
		}
		p, orch, err := openProject(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		g, err := orch.Graph()
		if err != nil {
			return err
		}
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		if graphFormat == "dot" {
			return writeDot(cmd.OutOrStdout(), g, target)
		}
		return writeGraphText(cmd.OutOrStdout(), g, target)
	},
}

func writeGraphText(w io.Writer, g *graph.Graph, target string) error {
	order, err := g.TopologicalOrder(target)
	if err != nil {
		return err
	}
	for _, name := range order {
		ups, _ := g.Upstreams(name)
		if len(ups) == 0 {
			fmt.Fprintln(w, name)
			continue
		}
		fmt.Fprintf(w, "%s <- %s\n", name, strings.Join(ups, ", "))
	}
	return nil
}

func writeDot(w io.Writer, g *graph.Graph, target string) error {
	order, err := g.TopologicalOrder(target)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "digraph sidas {")
	fmt.Fprintln(w, "  rankdir=LR;")
	for _, name := range order {
		fmt.Fprintf(w, "  %s;\n", strconv.Quote(name))
	}
	for _, name := range order {
		ups, _ := g.Upstreams(name)
		for _, u := range ups {
			fmt.Fprintf(w, "  %s -> %s;\n", strconv.Quote(u), strconv.Quote(name))
		}
	}
	fmt.Fprintln(w, "}")
	return nil
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVar(&graphFormat, flags.FlagGraphFormat, "text", "Output format: text|dot")
}
