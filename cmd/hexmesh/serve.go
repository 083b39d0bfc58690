package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hexmesh/hexmesh/internal/config"
	"github.com/hexmesh/hexmesh/internal/logger"
	"github.com/hexmesh/hexmesh/internal/metrics"
	"github.com/hexmesh/hexmesh/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve hexagonal grids over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("log-console") {
				cfg.LogConsole, _ = cmd.Flags().GetBool("log-console")
			}
			if cmd.Flags().Changed("cache-size") {
				cfg.CacheSize, _ = cmd.Flags().GetInt("cache-size")
			}
			if cmd.Flags().Changed("max-cells") {
				cfg.MaxCells, _ = cmd.Flags().GetInt("max-cells")
			}

			log := logger.Build(logger.Config{
				Level:     cfg.LogLevel,
				Console:   cfg.LogConsole,
				Component: "serve",
			}, nil)
			prov := metrics.Init(metrics.BuildInfo{Version: version, Commit: commit, BuildDate: date})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("version", version).Str("addr", cfg.Addr).Msg("hexmesh serve starting")
			return server.Run(ctx, cfg, log, prov)
		},
	}

	cmd.SilenceUsage = true

	cmd.Flags().String("config", "", "Config file path (default: ./hexmesh.yaml if present)")
	cmd.Flags().String("addr", "", "Listen address, overrides config")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().Bool("log-console", false, "Human-readable console log output")
	cmd.Flags().Int("cache-size", 0, "Grid cache capacity, overrides config")
	cmd.Flags().Int("max-cells", 0, "Feature count ceiling per request, overrides config")

	return cmd
}
