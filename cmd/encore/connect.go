// =============================================================================
// connect.go - Server Discovery and Connection
// =============================================================================
//
// Resolves which server to talk to and opens the connection. The endpoint
// search order:
//   1. --socket, then --host/--port flags
//   2. MPD_HOST / MPD_PORT (environment or .env)
//   3. A local socket in the usual MPD locations
//   4. localhost:6600
//
// The bridge can be started before the server is up (for example from a
// service manager), so connectWithRetry keeps polling until a deadline.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ckaznable/encore/internal/config"
	"github.com/ckaznable/encore/internal/session"
	"github.com/ckaznable/encore/mpdprotocol"
)

const (
	// connectTimeout bounds a single dial plus handshake.
	connectTimeout = 5 * time.Second

	// retryInterval is how often connectWithRetry tries again while the
	// server is not accepting connections.
	retryInterval = 250 * time.Millisecond
)

// connect dials the configured server and authenticates.
func connect(ctx context.Context, cfg config.MPDConfig) (*mpdprotocol.Client, mpdprotocol.Endpoint, error) {
	endpoint := cfg.Endpoint()

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := session.Connect(dialCtx, endpoint, cfg.Password)
	if err != nil {
		return nil, endpoint, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return client, endpoint, nil
}

// GO CONCEPT: select for Sleep-or-Cancel
// --------------------------------------
// time.Sleep cannot be interrupted. Waiting in a select on ctx.Done() and
// time.After instead lets Ctrl-C end the retry loop right away, while a
// normal pass through the loop still pauses for retryInterval.

// connectWithRetry calls connect until it succeeds, wait elapses or ctx is
// cancelled. Server errors (a wrong password) are not retried.
func connectWithRetry(ctx context.Context, cfg config.MPDConfig, wait time.Duration) (*mpdprotocol.Client, mpdprotocol.Endpoint, error) {
	deadline := time.Now().Add(wait)

	for {
		client, endpoint, err := connect(ctx, cfg)
		if err == nil {
			return client, endpoint, nil
		}
		var serverErr *mpdprotocol.ServerError
		if errors.As(err, &serverErr) || !time.Now().Before(deadline) {
			return nil, endpoint, err
		}

		select {
		case <-ctx.Done():
			return nil, endpoint, err
		case <-time.After(retryInterval):
		}
	}
}

// secondsToDuration converts a non-negative flag value in seconds.
func secondsToDuration(seconds int) time.Duration {
	return time.Duration(max(seconds, 0)) * time.Second
}

// homeDir returns the user's home directory, or "" when unknown.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
