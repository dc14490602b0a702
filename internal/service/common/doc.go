// Package common holds helpers shared by the client binaries.
//
// It provides a gRPC client for the admin health endpoint with per-call
// timeouts and detects the current system actor (hostname/username) to
// build the User-Agent sent on the control channel.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
