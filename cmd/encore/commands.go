// =============================================================================
// commands.go - Subcommand Bodies
// =============================================================================
//
// Each subcommand is a function of a context, the resolved configuration
// and an output writer, so tests can run them against a fake server and
// inspect what they print. Formatting helpers are pure functions over the
// decoded protocol types.
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ckaznable/encore/internal/bridge"
	"github.com/ckaznable/encore/internal/config"
	"github.com/ckaznable/encore/internal/logging"
	"github.com/ckaznable/encore/internal/session"
	"github.com/ckaznable/encore/internal/tui"
	"github.com/ckaznable/encore/mpdprotocol"
)

var logger = logging.Module("cli")

// =============================================================================
// One-Shot Commands
// =============================================================================

func runStatus(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, _, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	defer client.Close()

	return printStatus(client, out)
}

// printStatus fetches the status, and the queue when a song is loaded so the
// current track can be named.
func printStatus(client *mpdprotocol.Client, out io.Writer) error {
	status, err := client.Status()
	if err != nil {
		return err
	}

	var current *mpdprotocol.Track
	if status.Song != nil {
		queue, err := client.Queue(status.QueueLen)
		if err != nil {
			return err
		}
		if status.Song.Pos < len(queue) {
			current = &queue[status.Song.Pos]
		}
	}

	fmt.Fprint(out, formatStatus(status, current))
	return nil
}

func runQueue(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, _, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	defer client.Close()

	return printQueue(client, out)
}

func printQueue(client *mpdprotocol.Client, out io.Writer) error {
	status, err := client.Status()
	if err != nil {
		return err
	}
	queue, err := client.Queue(status.QueueLen)
	if err != nil {
		return err
	}

	fmt.Fprint(out, formatQueue(queue, status))
	return nil
}

func runPlay(ctx context.Context, cfg *config.Config, position string, out io.Writer) error {
	pos, err := parsePosition(position)
	if err != nil {
		return err
	}

	client, _, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Play(pos); err != nil {
		return err
	}
	return printStatus(client, out)
}

// parsePosition parses a zero-based queue position.
func parsePosition(s string) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("invalid queue position %q", s)
	}
	return pos, nil
}

// runRaw sends words as one command line and prints the payload. A server
// rejection is returned as the error, so the process exits with status 1.
func runRaw(ctx context.Context, cfg *config.Config, words []string, out io.Writer) error {
	line := joinCommand(words)
	if line == "" {
		return fmt.Errorf("no command given")
	}

	client, _, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	defer client.Close()

	lines, err := client.Exec(line)
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}

// joinCommand rebuilds a command line from shell words. The shell has
// already removed the user's quoting, so arguments after the command name
// are quoted again where the server would split them. A single word is
// taken as a complete line.
func joinCommand(words []string) string {
	if len(words) == 1 {
		return strings.TrimSpace(words[0])
	}
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	parts[0] = words[0]
	for i, w := range words[1:] {
		parts[i+1] = mpdprotocol.QuoteArg(w)
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Watch
// =============================================================================

// runWatch idles until ctx is cancelled, printing a line per change.
func runWatch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, endpoint, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", endpoint)
	return watch(ctx, client, out, time.Now)
}

func watch(ctx context.Context, client *mpdprotocol.Client, out io.Writer, now func() time.Time) error {
	for {
		changed, err := client.Idle(ctx)
		if err != nil {
			if ctx.Err() != nil && client.Err() == nil {
				return nil
			}
			return err
		}

		stamp := now().Format(time.TimeOnly)
		if changed.StatusChanged {
			status, err := client.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  status: %s\n", stamp, formatStatusLine(status))
		}
		if changed.QueueChanged {
			status, err := client.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  queue: %d tracks\n", stamp, status.QueueLen)
		}
	}
}

// =============================================================================
// Player and Bridge
// =============================================================================

// GO CONCEPT: Running a Loop Beside the Caller
// --------------------------------------------
// Session.Run blocks for the life of the connection, so it runs in its own
// goroutine and reports through a channel with room for one value. The
// buffer lets the goroutine finish even if nobody reads, and reading
// from it after cancel() waits for Run to return before the client is
// closed by the deferred Close.

// runSession starts a session over a connected client, calls body while it
// runs, then stops the session and closes the client. The session's error
// is returned when body itself succeeded.
func runSession(ctx context.Context, client *mpdprotocol.Client, body func(ctx context.Context, sess *session.Session) error) error {
	defer client.Close()

	sess := session.New(client)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- sess.Run(runCtx)
	}()

	err := body(runCtx, sess)
	cancel()
	if sessErr := <-runErr; err == nil {
		err = sessErr
	}
	return err
}

// runPlayer opens the full-screen player.
func runPlayer(ctx context.Context, cfg *config.Config) error {
	client, _, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	return runSession(ctx, client, func(ctx context.Context, sess *session.Session) error {
		return tui.Run(ctx, sess, cfg.UI.TickInterval)
	})
}

// runServe serves the bridge until ctx is cancelled or the connection to
// the server is lost.
func runServe(ctx context.Context, cfg *config.Config, wait time.Duration) error {
	client, endpoint, err := connectWithRetry(ctx, cfg.MPD, wait)
	if err != nil {
		return err
	}
	logger.WithField("endpoint", endpoint.String()).Info("Serving bridge")

	return runSession(ctx, client, func(ctx context.Context, sess *session.Session) error {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			select {
			case <-sess.Done():
				stop()
			case <-srvCtx.Done():
			}
		}()

		err := bridge.ListenAndServe(srvCtx, cfg.Bridge.Addr, bridge.NewServer(sess).Router())
		if err != nil {
			return err
		}
		if sessErr := sess.Err(); sessErr != nil {
			return fmt.Errorf("lost connection to %s: %w", endpoint, sessErr)
		}
		return nil
	})
}

// =============================================================================
// Formatting
// =============================================================================

func stateLabel(state mpdprotocol.PlayerState) string {
	switch state {
	case mpdprotocol.StatePlay:
		return "playing"
	case mpdprotocol.StatePause:
		return "paused"
	default:
		return "stopped"
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func trackLabel(t mpdprotocol.Track) string {
	if artist := t.DisplayArtist(); artist != "" {
		return artist + " - " + t.DisplayTitle()
	}
	return t.DisplayTitle()
}

// formatOptions renders the four playback options on one line.
func formatOptions(status mpdprotocol.Status) string {
	return fmt.Sprintf("repeat: %s   random: %s   single: %s   consume: %s",
		onOff(status.Repeat), onOff(status.Random), status.Single, onOff(status.Consume))
}

// formatStatusLine renders the state and position without the track name.
func formatStatusLine(status mpdprotocol.Status) string {
	line := "[" + stateLabel(status.State) + "]"
	if status.Song != nil {
		line += fmt.Sprintf(" #%d/%d %s", status.Song.Pos, status.QueueLen,
			mpdprotocol.FormatDuration(status.Song.Elapsed))
	}
	return line
}

// formatStatus renders the status the way the status command prints it.
// current is the loaded track, when known.
func formatStatus(status mpdprotocol.Status, current *mpdprotocol.Track) string {
	var b strings.Builder
	if current != nil {
		b.WriteString(trackLabel(*current))
		b.WriteString("\n")
	}

	b.WriteString(formatStatusLine(status))
	if current != nil && current.Time > 0 {
		b.WriteString("/" + mpdprotocol.FormatDuration(current.Time))
	}
	b.WriteString("\n")

	b.WriteString(formatOptions(status))
	b.WriteString("\n")
	return b.String()
}

// formatQueue lists the queue with zero-based positions, the form play
// accepts. The current song is marked with '>'.
func formatQueue(queue []mpdprotocol.Track, status mpdprotocol.Status) string {
	if len(queue) == 0 {
		return "Queue is empty\n"
	}

	width := len(strconv.Itoa(len(queue) - 1))
	var b strings.Builder
	for pos, t := range queue {
		marker := " "
		if status.Song != nil && status.Song.Pos == pos {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %*d  %s", marker, width, pos, trackLabel(t))
		if t.Time > 0 {
			fmt.Fprintf(&b, "  (%s)", mpdprotocol.FormatDuration(t.Time))
		}
		b.WriteString("\n")
	}
	return b.String()
}
