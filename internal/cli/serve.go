package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphmind/internal/config"
	"graphmind/internal/interfaces/http/rest"
	"graphmind/internal/render"
)

func serveCmd() *cobra.Command {
	var (
		port  int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph view over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, cleanup, err := openContainer(ctx, cfg, render.NopPainter{})
			if err != nil {
				return err
			}
			defer cleanup()
			logger := container.Logger

			if watch {
				watcher, err := config.NewWatcher(loader(), cfg, logger.Named("config"))
				if err != nil {
					logger.Warn("Hot reload disabled", zap.Error(err))
				} else {
					defer watcher.Stop()
					reloader := config.NewComponentReloader("layout", container.Service.ApplyConfig, logger)
					watcher.OnChange(reloader.Reload)
				}
			}

			router := rest.NewRouter(container.Service, cfg, container.Collector, logger)
			err = rest.ListenAndServe(ctx, cfg.Server, router.Setup(), logger)
			container.Service.Stop()
			return err
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload layout settings when config files change")
	return cmd
}
