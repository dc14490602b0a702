// Package instance guards hardware backends against a second server process
// driving the same transmitter.
package instance
