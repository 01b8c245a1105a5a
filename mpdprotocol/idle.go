package mpdprotocol

import (
	"context"
	"fmt"
	"io"
)

var idleTable = lineTable[IdleResult]{
	exact(ChangedPrefix+"options", func(r *IdleResult) { r.StatusChanged = true }),
	exact(ChangedPrefix+"player", func(r *IdleResult) { r.StatusChanged = true }),
	exact(ChangedPrefix+"playlist", func(r *IdleResult) { r.QueueChanged = true }),
}

// Idle blocks until the server reports a change to the player, its options
// or the queue, and returns which of them changed. There is no timeout.
//
// When ctx is cancelled while waiting, Idle sends noidle and reads the
// server's reply, leaving the connection ready for the next command. It
// then returns whatever changes were reported together with the context's
// error. If the idle had already completed when noidle went out, the
// server ignores it.
func (c *Client) Idle(ctx context.Context) (IdleResult, error) {
	result, err := c.idle(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to idle: %w", err)
	}
	return result, nil
}

func (c *Client) idle(ctx context.Context) (IdleResult, error) {
	var result IdleResult
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := c.sendLine(NewIdleCommand().Format()); err != nil {
		return result, err
	}

	// The only write that may overlap a read; it is joined below before
	// the connection is handed back.
	var unidleErr error
	unidled := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(unidled)
		_, unidleErr = io.WriteString(c.conn, NewNoIdleCommand().FormatLine())
	})

	err := c.readResponse(func(line string) error {
		return idleTable.apply(&result, line)
	})

	cancelled := !stop()
	if cancelled {
		<-unidled
		if unidleErr != nil {
			c.fail(NewConnectionError("failed to send noidle", unidleErr))
		}
	}
	if err != nil {
		return result, err
	}
	if c.err != nil {
		// The stream ended before the idle completed.
		return result, c.err
	}
	if cancelled {
		return result, context.Cause(ctx)
	}
	return result, nil
}
