package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"graphmind/internal/render"
	"graphmind/internal/render/svg"
)

func exportCmd() *cobra.Command {
	var (
		out      string
		maxTicks int
		title    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Settle the layout and write it as SVG",
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

			container.Simulation.Settle(maxTicks)

			opts := svg.DefaultOptions()
			opts.Width = int(cfg.Layout.Width)
			opts.Height = int(cfg.Layout.Height)
			opts.Radius = cfg.Render.OutlineRadius
			if title != "" {
				opts.Title = title
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := svg.Write(w, container.Service.Scene(), cfg.Render.Palette, opts); err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				subtle.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, stdout when empty or -")
	cmd.Flags().IntVar(&maxTicks, "ticks", 300, "Maximum number of ticks to run before export")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	return cmd
}
