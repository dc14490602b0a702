// Package client sends commands to a buzzer server over its WebSocket
// control channel. It backs the start, stop and send subcommands of
// buzzer-ctl.
package client
