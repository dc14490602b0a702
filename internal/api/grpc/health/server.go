package health

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/buzzer/internal/logger"
	"github.com/oshokin/buzzer/internal/service/scheduler"
)

// SchedulerService is the health service name tracking the scheduler.
const SchedulerService = "buzzer.scheduler"

// Server tracks scheduler health and serves it over gRPC.
type Server struct {
	// health is the stock implementation holding per-service statuses.
	health *health.Server
	// threshold is the number of consecutive failures that degrades health.
	threshold uint64
	// failures counts consecutive failed notes; touched only by Observe.
	failures uint64
	// ctx carries the logger.
	ctx context.Context
}

// NewServer returns a server reporting NOT_SERVING until Start is called.
func NewServer(ctx context.Context, failureThreshold int) *Server {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}

	s := &Server{
		health:    health.NewServer(),
		threshold: uint64(failureThreshold),
		ctx:       logger.WithName(ctx, "health"),
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SchedulerService, healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Register attaches the health service to a gRPC server.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(registrar, s.health)
}

// Start marks the scheduler as serving.
func (s *Server) Start() {
	s.set(healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

// Observe implements scheduler.Reporter. It runs on the scheduler goroutine.
func (s *Server) Observe(e scheduler.Event) {
	switch e.Outcome {
	case scheduler.OutcomePlayed:
		if s.failures >= s.threshold {
			logger.InfoKV(s.ctx, "Scheduler recovered", "after_failures", s.failures)
		}

		s.failures = 0
		s.set(healthpb.HealthCheckResponse_SERVING)
	case scheduler.OutcomeFailed:
		s.failures++

		if s.failures == s.threshold {
			logger.WarnKV(s.ctx, "Scheduler degraded", "consecutive_failures", s.failures, "error", e.Err)
		}

		if s.failures >= s.threshold {
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		}
	case scheduler.OutcomeIdle, scheduler.OutcomeSkipped:
	}
}

// set updates the scheduler status.
func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(SchedulerService, status)
}
