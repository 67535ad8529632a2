package cli

import (
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"graphmind/internal/application/services"
	"graphmind/internal/render"
)

var (
	header = color.New(color.FgCyan, color.Bold)
	pinned = color.New(color.FgYellow)
)

func layoutCmd() *cobra.Command {
	var maxTicks int
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Settle the layout and print node positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			container, cleanup, err := openContainer(cmd.Context(), cfg, render.NopPainter{})
			if err != nil {
				return err
			}
			defer cleanup()

			ticks := container.Simulation.Settle(maxTicks)
			printLayout(cmd.OutOrStdout(), container.Service, ticks)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTicks, "ticks", 300, "Maximum number of ticks to run")
	return cmd
}

// printLayout writes one row per node, sorted by label.
func printLayout(w io.Writer, svc *services.GraphViewService, ticks int) {
	frame := svc.Frame()
	if frame == nil {
		subtle.Fprintln(w, "Graph is empty")
		return
	}
	nodes := append(frame.Nodes[:0:0], frame.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Label < nodes[j].Label })

	header.Fprintf(w, "%-24s %10s %10s %6s  %s\n", "LABEL", "X", "Y", "LINKS", "ID")
	for _, n := range nodes {
		c := subtle
		if n.Pinned {
			c = pinned
		}
		c.Fprintf(w, "%-24s %10.2f %10.2f %6d  %s\n",
			truncate(n.Label, 24), n.X, n.Y, len(svc.Model().NeighborsOf(n.ID)), n.ID)
	}
	brand.Fprintf(w, "\n%d nodes, %d links, %d ticks, alpha %.4f\n",
		len(frame.Nodes), len(frame.Links), ticks, frame.Alpha)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
