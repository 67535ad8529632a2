package cli

import (
	"github.com/spf13/cobra"

	"graphmind/internal/interfaces/tui"
	"graphmind/internal/render/terminal"
)

func viewCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Explore the graph in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// The terminal is owned by the UI.
			cfg.Logging.Output = logFile

			canvas := terminal.NewCanvas(80, 24, cfg.Layout.Width, cfg.Layout.Height, cfg.Render.Palette)
			container, cleanup, err := openContainer(cmd.Context(), cfg, canvas)
			if err != nil {
				return err
			}
			defer cleanup()

			m := tui.New(container.Service, canvas, 2*cfg.Layout.TickInterval, cfg.Sync.Timeout, container.Logger)
			return tui.Run(m)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "graphmind.log", "File receiving logs while the UI runs")
	return cmd
}
