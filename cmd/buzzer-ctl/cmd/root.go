package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/buzzer/internal/api/grpc/health"
	"github.com/oshokin/buzzer/internal/config"
	"github.com/oshokin/buzzer/internal/service/client"
	"github.com/oshokin/buzzer/internal/service/common"
	"github.com/oshokin/buzzer/internal/version"
)

var (
	// configPath stores the configuration file path.
	configPath string
	// serverAddress overrides listen_addr from the config.
	serverAddress string
	// attempts is the number of connection attempts.
	attempts int
	// adminAddress overrides admin_addr from the config.
	adminAddress string
	// asJSON prints the health response as JSON.
	asJSON bool

	// rootCmd groups the control subcommands.
	rootCmd = &cobra.Command{
		Use:   "buzzer-ctl",
		Short: "Control a buzzer server.",
		Long: `Sends commands to a buzzer server over its WebSocket control channel
and queries its gRPC health endpoint.

The server address defaults to listen_addr from the configuration file and
can be overridden with --server (host:port or ws:// URL).`,
		SilenceUsage: true,
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Make the buzzer sound.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd.Context(), "start")
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Silence the buzzer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd.Context(), "stop")
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send <text>",
		Short: "Send raw text in one frame.",
		Long: `Sends arbitrary text in a single frame. The server accepts at most 8 bytes;
anything but "start" silences the buzzer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), args[0])
		},
	}

	healthCmd = &cobra.Command{
		Use:   "health [service]",
		Short: "Query the admin health endpoint.",
		Long: `Calls grpc.health.v1.Health/Check on admin_addr. The service defaults to
` + health.SchedulerService + `; pass "" for the overall server status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := health.SchedulerService
			if len(args) > 0 {
				service = args[0]
			}

			return checkHealth(cmd, service)
		},
	}
)

// Execute runs the buzzer-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// send delivers one command frame.
func send(ctx context.Context, command string) error {
	return client.Run(ctx, &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Command:       command,
		Attempts:      attempts,
	})
}

// checkHealth prints the serving status of service.
func checkHealth(cmd *cobra.Command, service string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	address := cfg.AdminAddress
	if adminAddress != "" {
		address = adminAddress
	}

	c, err := common.Dial(cmd.Context(), address, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = c.Close()
	}()

	resp, err := c.Check(cmd.Context(), service)
	if err != nil {
		return err
	}

	if asJSON {
		out, marshalErr := protojson.Marshal(resp)
		if marshalErr != nil {
			return fmt.Errorf("marshal response: %w", marshalErr)
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", service, resp.GetStatus())

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "server address (host:port or ws:// URL)")
	rootCmd.PersistentFlags().IntVarP(&attempts, "attempts", "a", 3, "connection attempts")

	healthCmd.Flags().StringVar(&adminAddress, "admin", "", "admin gRPC address")
	healthCmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")

	rootCmd.AddCommand(startCmd, stopCmd, sendCmd, healthCmd)
}
