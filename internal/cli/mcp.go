package cli

import (
	"github.com/spf13/cobra"

	"graphmind/internal/interfaces/mcp"
	"graphmind/internal/render"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the graph to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
				cfg.Logging.Output = "stderr"
			}
			container, cleanup, err := openContainer(cmd.Context(), cfg, render.NopPainter{})
			if err != nil {
				return err
			}
			defer cleanup()

			return mcp.NewServer(container.Service, version, container.Logger).Serve()
		},
	}
}
