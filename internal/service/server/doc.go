// Package server runs the buzzer: it wires the control channel, the shared
// activation state, the scheduler and the selected transmit backend, and
// serves the HTTP and gRPC admin endpoints until the context ends.
package server
