// Package health implements the gRPC admin endpoint of the buzzer server.
//
// It serves the standard grpc.health.v1.Health service and derives the status
// of the scheduler from the tick outcomes it observes.
package health
