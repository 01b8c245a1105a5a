package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ckaznable/encore/internal/session"
)

// Run shows the player until the user quits, ctx is cancelled or the
// session stops. A session failure is returned as the error.
func Run(ctx context.Context, sess *session.Session, tick time.Duration) error {
	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(New(ctx, sess, updates, tick), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if m, ok := final.(Model); ok && m.Closed() {
		return sess.Err()
	}
	return nil
}
