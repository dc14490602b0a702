// Package logger wraps zap with the helpers the buzzer binaries share:
//   - a global sugared console logger,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - leveled shortcuts (Infof, WarnKV, ErrorKV, ...).
//
// Services receive a context and log through it, so every line written by a
// WebSocket session or by the scheduler carries its own logger name and fields.
package logger
