package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/buzzer/internal/config"
	"github.com/oshokin/buzzer/internal/service/server"
	"github.com/oshokin/buzzer/internal/version"
)

var (
	// configPath to the configuration file (YAML, or TOML by extension).
	configPath string
	// backend overrides hardware.backend from the config.
	backend string
	// logLevel overrides log_level from the config.
	logLevel string

	// rootCmd represents the base command for running the buzzer.
	rootCmd = &cobra.Command{
		Use:   "buzzer-server [listen-address]",
		Short: "Run the buzzer and its WebSocket control channel.",
		Long: `Starts the buzzer server.

Clients connect to /ws and send short text frames: "start" makes the buzzer
sound, any other text silences it. While sounding, the scheduler plays the
configured note once per interval on the selected hardware backend
(sim, serial, wav or pwm).

The server also serves a control page on /, Prometheus metrics on /metrics
and, when admin_addr is set, the gRPC health service.
Listen address can be provided as argument to override config (e.g., :9090).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Backend:       backend,
				LogLevel:      logLevel,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the buzzer-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&backend, "backend", "b", "", "hardware backend: sim, serial, wav or pwm")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
}
