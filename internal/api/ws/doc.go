// Package ws implements the control channel: a WebSocket endpoint that
// receives short text commands and hands them to a Handler.
//
// Every inbound frame goes through a two-phase receive. Peek learns the
// payload length, then exactly one Read copies the payload into a fixed
// MaxPayload-byte buffer. Oversized frames are answered with a diagnostic,
// a close frame and connection teardown; frames that are not valid UTF-8 get
// a diagnostic and the connection stays open.
package ws
