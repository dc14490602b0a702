package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/oshokin/buzzer/internal/api/grpc/health"
	"github.com/oshokin/buzzer/internal/api/ws"
	"github.com/oshokin/buzzer/internal/config"
	"github.com/oshokin/buzzer/internal/domain/buzzer"
	"github.com/oshokin/buzzer/internal/hardware"
	"github.com/oshokin/buzzer/internal/logger"
	"github.com/oshokin/buzzer/internal/metrics"
	"github.com/oshokin/buzzer/internal/netif"
	"github.com/oshokin/buzzer/internal/service/instance"
	"github.com/oshokin/buzzer/internal/service/playback"
	"github.com/oshokin/buzzer/internal/service/scheduler"
	"github.com/oshokin/buzzer/internal/tone"
	"github.com/oshokin/buzzer/internal/web"
)

// Options controls the buzzer-server process.
type Options struct {
	// ConfigPath specifies the settings file; a missing file means defaults.
	ConfigPath string
	// ListenAddress overrides the HTTP listen address from the config.
	ListenAddress string
	// Backend overrides the hardware backend from the config.
	Backend string
	// LogLevel overrides the log level from the config.
	LogLevel string
}

// readHeaderTimeout bounds slow clients during the HTTP handshake.
const readHeaderTimeout = 10 * time.Second

// Run starts the buzzer and blocks until ctx is canceled or a listener fails.
// The note in progress is finished before Run returns.
//
//nolint:funlen // Process wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "buzzer-server")

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if lvl, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(lvl)
	}

	if _, err = netif.WaitReady(ctx, cfg.Network.WaitTimeout); err != nil {
		if cfg.Network.WaitTimeout > 0 {
			return fmt.Errorf("wait for network: %w", err)
		}

		logger.WarnKV(ctx, "No external IPv4 address, serving anyway", "error", err)
	}

	if exclusiveBackend(cfg.Hardware.Backend) {
		if err = instance.NewGuard().Check(ctx); err != nil {
			return err
		}
	}

	tx, err := openTransmitter(ctx, &cfg.Hardware)
	if err != nil {
		return err
	}

	driver, err := playback.New(tx)
	if err != nil {
		_ = tx.Close()

		return fmt.Errorf("initialise playback: %w", err)
	}

	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release transmitter", "error", closeErr)
		}
	}()

	note := buzzer.Tone{Frequency: cfg.Note.Frequency, Duration: cfg.Note.Duration}
	if note.Duration >= cfg.Scheduler.Interval {
		logger.WarnKV(ctx, "Note is not shorter than the scheduler interval, ticks will be skipped",
			"note", note.String(), "interval", cfg.Scheduler.Interval.String())
	}

	logPitch(ctx, tx, note)

	collector := metrics.New()
	healthServer := health.NewServer(ctx, cfg.Scheduler.FailureThreshold)
	state := buzzer.NewState()

	sched, err := scheduler.New(state, driver, scheduler.Options{
		Interval:  cfg.Scheduler.Interval,
		Note:      note,
		Reporters: []scheduler.Reporter{collector, healthServer},
	})
	if err != nil {
		return fmt.Errorf("initialise scheduler: %w", err)
	}

	controller := NewController(state, cfg.Command.AcceptNULTerminator, collector)
	channel := ws.NewChannel(ctx, controller, ws.Options{
		WriteTimeout: cfg.Timeout,
		Observer:     collector,
	})

	mux := http.NewServeMux()
	web.Register(mux)
	mux.Handle("GET /ws", channel)
	mux.Handle("GET /metrics", collector.Handler())

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var grpcServer *grpc.Server

	errs := make(chan error, 2)

	if cfg.AdminAddress != "" {
		adminListener, listenErr := lc.Listen(ctx, "tcp", cfg.AdminAddress)
		if listenErr != nil {
			_ = httpListener.Close()

			return fmt.Errorf("listen on %s: %w", cfg.AdminAddress, listenErr)
		}

		grpcServer = grpc.NewServer()
		healthServer.Register(grpcServer)

		logger.InfoKV(ctx, "Admin gRPC server listening", "admin_address", adminListener.Addr().String())

		go func() {
			if serveErr := grpcServer.Serve(adminListener); serveErr != nil &&
				!errors.Is(serveErr, grpc.ErrServerStopped) {
				errs <- fmt.Errorf("serve gRPC: %w", serveErr)
			}
		}()
	}

	go func() {
		if serveErr := httpServer.Serve(httpListener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errs <- fmt.Errorf("serve HTTP: %w", serveErr)
		}
	}()

	logger.InfoKV(ctx, "Buzzer server listening",
		"listen_address", httpListener.Addr().String(),
		"backend", cfg.Hardware.Backend,
		"interval", sched.Interval().String(),
		"note", sched.Note().String())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	schedulerDone := startScheduler(schedulerContext(runCtx, cfg.Scheduler.LogLevel), sched, healthServer)

	var runErr error

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down")
	case runErr = <-errs:
		logger.ErrorKV(ctx, "Listener failed", "error", runErr)
	}

	healthServer.Shutdown()

	sessions := channel.Sessions()
	channel.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
	defer cancel()

	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
	}

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	cancelRun()

	if err = <-schedulerDone; err != nil && runErr == nil {
		runErr = err
	}

	stats := sched.Stats()
	snap := state.Snapshot()
	logger.InfoKV(ctx, "Buzzer server stopped",
		"ticks", stats.Ticks, "played", stats.Played, "failed", stats.Failed, "skipped", stats.Skipped,
		"sessions_closed", sessions,
		"state", snap.Value.String(), "state_writes", snap.Writes, "state_changed_at", snap.ChangedAt)

	return runErr
}

// runner is the blocking loop started by startScheduler.
type runner interface {
	Run(ctx context.Context) error
}

// starter marks the scheduler live for health checks.
type starter interface {
	Start()
}

// startScheduler marks the scheduler live and then runs it in the background.
// Start always happens before the first tick is reported.
func startScheduler(ctx context.Context, sched runner, health starter) <-chan error {
	health.Start()

	done := make(chan error, 1)

	go func() {
		done <- sched.Run(ctx)
	}()

	return done
}

// logPitch logs the pitch the hardware actually emits for note and returns it.
// It returns zero when the pitch cannot be computed.
func logPitch(ctx context.Context, tx hardware.Transmitter, note buzzer.Tone) float64 {
	tickRate, err := tx.CounterClock()
	if err != nil {
		logger.WarnKV(ctx, "Counter clock unavailable", "error", err)

		return 0
	}

	actual, err := tone.Actual(note.Frequency, tickRate)
	if err != nil {
		logger.WarnKV(ctx, "Note cannot be encoded at this tick rate",
			"note", note.String(), "tick_rate", tickRate, "error", err)

		return 0
	}

	if actual != float64(note.Frequency) {
		logger.WarnKV(ctx, "Note pitch is quantized by the tick rate",
			"requested_hz", note.Frequency, "actual_hz", actual, "tick_rate", tickRate)
	} else {
		logger.DebugKV(ctx, "Note pitch is exact", "hz", actual, "tick_rate", tickRate)
	}

	return actual
}
