// Package netif waits for the host to obtain an IPv4 address before the
// server binds its listeners.
package netif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oshokin/buzzer/internal/logger"
)

// ErrNoAddress is returned when no non-loopback IPv4 address appeared in time.
var ErrNoAddress = errors.New("no non-loopback IPv4 address")

// defaultPollInterval is how often interface addresses are re-read.
const defaultPollInterval = 250 * time.Millisecond

// AddrSource lists interface addresses (net.InterfaceAddrs by default).
type AddrSource func() ([]net.Addr, error)

// Waiter polls an AddrSource until a usable address exists.
type Waiter struct {
	source AddrSource
	poll   time.Duration
}

// NewWaiter returns a waiter over source; nil uses net.InterfaceAddrs.
func NewWaiter(source AddrSource) *Waiter {
	if source == nil {
		source = net.InterfaceAddrs
	}

	return &Waiter{source: source, poll: defaultPollInterval}
}

// WaitReady blocks until the host has a non-loopback IPv4 address using the
// system interfaces.
func WaitReady(ctx context.Context, timeout time.Duration) (net.IP, error) {
	return NewWaiter(nil).WaitReady(ctx, timeout)
}

// WaitReady blocks until LocalIPv4 succeeds, timeout elapses or ctx ends.
// A zero timeout checks once and never waits.
func (w *Waiter) WaitReady(ctx context.Context, timeout time.Duration) (net.IP, error) {
	ctx = logger.WithName(ctx, "netif")

	ip, err := w.LocalIPv4()
	if err == nil || timeout <= 0 {
		if err == nil {
			logger.InfoKV(ctx, "Network is ready", "ip", ip.String())
		}

		return ip, err
	}

	logger.InfoKV(ctx, "Waiting for network", "timeout", timeout.String())

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoAddress, ctx.Err())
		case <-ticker.C:
		}

		if ip, err = w.LocalIPv4(); err == nil {
			logger.InfoKV(ctx, "Network is ready", "ip", ip.String())
			return ip, nil
		}
	}
}

// LocalIPv4 returns the first non-loopback IPv4 address.
func (w *Waiter) LocalIPv4() (net.IP, error) {
	addrs, err := w.source()
	if err != nil {
		return nil, fmt.Errorf("list interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}

		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}

	return nil, ErrNoAddress
}
