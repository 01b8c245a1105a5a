// Package tui is encore's full-screen player: a header with the playback
// state, the queue below it, and single-key controls.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/ckaznable/encore/internal/logging"
	"github.com/ckaznable/encore/internal/session"
	"github.com/ckaznable/encore/mpdprotocol"
)

var logger = logging.Module("tui")

// commandTimeout bounds a single key-triggered request.
const commandTimeout = 5 * time.Second

// Controller sends requests to the server. *session.Session implements it.
type Controller interface {
	Play(ctx context.Context, pos int) error
	Command(ctx context.Context, cmd mpdprotocol.Command) error
}

type snapshotMsg session.Snapshot
type sessionClosedMsg struct{}
type tickMsg time.Time

type commandDoneMsg struct {
	action string
	err    error
}

type Model struct {
	ctx     context.Context
	ctrl    Controller
	updates <-chan session.Snapshot
	tick    time.Duration

	// Data
	snap    session.Snapshot
	hasSnap bool
	elapsed time.Duration // Advanced locally between snapshots
	ticking bool

	// Navigation
	cursor         int
	viewportOffset int

	// UI state
	width     int
	height    int
	statusMsg string
	closed    bool
}

// New returns a model fed by updates. tick is the playback tick interval.
func New(ctx context.Context, ctrl Controller, updates <-chan session.Snapshot, tick time.Duration) Model {
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		updates: updates,
		tick:    tick,
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return sessionClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// run performs a request off the UI goroutine and reports the outcome.
func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, commandTimeout)
		defer cancel()
		return commandDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) command(action string, cmd mpdprotocol.Command) tea.Cmd {
	return m.run(action, func(ctx context.Context) error {
		return m.ctrl.Command(ctx, cmd)
	})
}

func (m Model) play(pos int) tea.Cmd {
	return m.run(fmt.Sprintf("play %d", pos+1), func(ctx context.Context) error {
		return m.ctrl.Play(ctx, pos)
	})
}

func (m Model) playing() bool {
	return m.hasSnap && m.snap.Status.State == mpdprotocol.StatePlay && m.snap.Status.Song != nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		first := !m.hasSnap
		m.snap = session.Snapshot(msg)
		m.hasSnap = true
		m.elapsed = 0
		if song := m.snap.Status.Song; song != nil {
			m.elapsed = time.Duration(song.Elapsed) * time.Second
			if first {
				m.cursor = song.Pos
			}
		}
		m = m.clampCursor()

		cmds := []tea.Cmd{waitForSnapshot(m.updates)}
		if m.playing() && !m.ticking {
			m.ticking = true
			cmds = append(cmds, m.tickCmd())
		}
		return m, tea.Batch(cmds...)

	case sessionClosedMsg:
		m.closed = true
		return m, tea.Quit

	case tickMsg:
		if !m.playing() {
			m.ticking = false
			return m, nil
		}
		m.elapsed += m.tick
		if track, ok := m.snap.CurrentTrack(); ok && track.Time > 0 {
			m.elapsed = min(m.elapsed, time.Duration(track.Time)*time.Second)
		}
		return m, m.tickCmd()

	case commandDoneMsg:
		if msg.err != nil {
			logger.WithError(msg.err).WithField("action", msg.action).Warn("Command failed")
			m.statusMsg = "Error: " + msg.err.Error()
		} else {
			m.statusMsg = ""
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.ensureCursorVisible(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	status := m.snap.Status
	queueLen := len(m.snap.Queue)

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.cursor--
	case "down", "j":
		m.cursor++
	case "pgup":
		m.cursor -= m.viewportHeight()
	case "pgdown":
		m.cursor += m.viewportHeight()
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = queueLen - 1
	}
	m = m.clampCursor()

	if !m.hasSnap {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		if queueLen > 0 {
			return m, m.play(m.cursor)
		}
	case " ":
		if status.State == mpdprotocol.StateStop {
			if queueLen > 0 {
				return m, m.play(m.cursor)
			}
			return m, nil
		}
		return m, m.command("pause", mpdprotocol.NewTogglePauseCommand())
	case "n":
		return m, m.command("next", mpdprotocol.NewNextCommand())
	case "b":
		return m, m.command("previous", mpdprotocol.NewPreviousCommand())
	case "s":
		return m, m.command("stop", mpdprotocol.NewStopCommand())
	case "right", "l":
		return m, m.command("seek", mpdprotocol.NewSeekCurCommand(5, true))
	case "left", "h":
		return m, m.command("seek", mpdprotocol.NewSeekCurCommand(-5, true))
	case "r":
		return m, m.command("repeat", mpdprotocol.NewRepeatCommand(!status.Repeat))
	case "z":
		return m, m.command("random", mpdprotocol.NewRandomCommand(!status.Random))
	case "c":
		return m, m.command("consume", mpdprotocol.NewConsumeCommand(!status.Consume))
	case "y":
		return m, m.command("single", mpdprotocol.NewSingleCommand(status.Single.Next()))
	case "d":
		if queueLen > 0 {
			return m, m.command("delete", mpdprotocol.NewDeleteCommand(m.cursor))
		}
	case "+", "=":
		return m, m.command("volume", mpdprotocol.NewChangeVolumeCommand(5))
	case "-":
		return m, m.command("volume", mpdprotocol.NewChangeVolumeCommand(-5))
	}
	return m, nil
}

func (m Model) clampCursor() Model {
	m.cursor = lo.Clamp(m.cursor, 0, max(len(m.snap.Queue)-1, 0))
	return m.ensureCursorVisible()
}

// ensureCursorVisible scrolls the queue to keep the cursor on screen.
func (m Model) ensureCursorVisible() Model {
	height := m.viewportHeight()
	if m.cursor < m.viewportOffset {
		m.viewportOffset = m.cursor
	}
	if m.cursor >= m.viewportOffset+height {
		m.viewportOffset = m.cursor - height + 1
	}
	m.viewportOffset = lo.Clamp(m.viewportOffset, 0, max(len(m.snap.Queue)-height, 0))
	return m
}

// Closed reports whether the model quit because the session ended.
func (m Model) Closed() bool {
	return m.closed
}
