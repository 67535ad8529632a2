// Package cli implements the graphmind command.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"graphmind/internal/config"
	"graphmind/internal/di"
	"graphmind/internal/render"
)

var version = "0.1.0"

var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	bad    = color.New(color.FgRed)
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configDir string
	env       string
	source    string
	sqlite    string
	logLevel  string
}

var opts globalOptions

var rootCmd = &cobra.Command{
	Use:   "graphmind",
	Short: "graphmind lays out and edits a knowledge graph",
	Long: brand.Sprint("graphmind") + " lays out a knowledge graph with a force simulation\n" +
		subtle.Sprint("View it in the terminal, serve it over HTTP or MCP, or export it as SVG"),
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetVersionTemplate("graphmind {{ .Version }}\n")
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configDir, "config-dir", "", "Directory holding base/<env>/local config files")
	flags.StringVar(&opts.env, "env", "", "Environment: development, staging or production")
	flags.StringVar(&opts.source, "source", "", "Graph store: memory, graphql, sqlite or dynamodb")
	flags.StringVar(&opts.sqlite, "sqlite", "", "SQLite database path (implies --source sqlite)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		viewCmd(),
		serveCmd(),
		layoutCmd(),
		exportCmd(),
		mcpCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		bad.Fprintf(os.Stderr, "graphmind: %v\n", err)
		return err
	}
	return nil
}

func loader() *config.Loader {
	env := config.EnvironmentFromEnv()
	if opts.env != "" {
		env = config.Environment(opts.env)
	}
	dir := opts.configDir
	if dir == "" {
		dir = os.Getenv(config.EnvPrefix + "CONFIG_DIR")
	}
	return config.NewLoader(dir, env)
}

// loadConfig loads layered configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := loader().Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if opts.sqlite != "" {
		cfg.Sync.Source = config.SourceSQLite
		cfg.Sync.SQLite.Path = opts.sqlite
	}
	if opts.source != "" {
		cfg.Sync.Source = opts.source
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
}

// openContainer wires the graph view and loads the graph once.
func openContainer(ctx context.Context, cfg *config.Config, painter render.Painter) (*di.Container, func(), error) {
	container, cleanup, err := di.InitializeContainer(ctx, cfg, painter)
	if err != nil {
		return nil, nil, err
	}
	if _, err := container.Service.Refresh(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return container, cleanup, nil
}
