// =============================================================================
// repl.go - Interactive Protocol Shell
// =============================================================================
//
// The shell reads a line, translates shortcuts (translate.go), sends the
// result to the server and prints the response payload. Lines starting
// with '.' are handled locally: help, formatted status and queue, waiting
// for a change, and quitting.
//
// A rejected command prints "Error: ..." and the shell carries on, since
// the connection stays usable after an ACK. A transport failure ends the
// shell with that error.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ckaznable/encore/internal/config"
	"github.com/ckaznable/encore/mpdprotocol"
)

// prompt is shown before each shell line.
const prompt = "mpd> "

// lineReader is the input side of the shell; *LineEditor implements it.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

// shell holds what a running shell needs between lines.
type shell struct {
	ctx    context.Context
	client *mpdprotocol.Client
	out    io.Writer
	errOut io.Writer
}

// runShell connects and runs the shell on the terminal.
func runShell(ctx context.Context, cfg *config.Config) error {
	client, endpoint, err := connect(ctx, cfg.MPD)
	if err != nil {
		return err
	}
	defer client.Close()

	editor := NewLineEditor(os.Stdin, os.Stdout)
	defer editor.Close()

	fmt.Print(welcomeBanner(endpoint, client.Version()))
	return runREPL(ctx, client, editor, os.Stdout, os.Stderr)
}

// runREPL reads and executes lines until end of input, .quit, ctx
// cancellation or a dead connection.
func runREPL(ctx context.Context, client *mpdprotocol.Client, input lineReader, out, errOut io.Writer) error {
	sh := &shell{ctx: ctx, client: client, out: out, errOut: errOut}

	for ctx.Err() == nil {
		line, err := input.GetLine(prompt)
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		quit, err := sh.execute(line)
		if dead := client.Err(); dead != nil {
			return dead
		}
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return nil
}

// execute runs one non-empty line. quit is true for .quit.
func (sh *shell) execute(line string) (quit bool, err error) {
	if len(line) > mpdprotocol.MaxLineLength {
		return false, fmt.Errorf("line too long (%d bytes, limit %d)", len(line), mpdprotocol.MaxLineLength)
	}
	if strings.HasPrefix(line, ".") {
		return sh.dotCommand(line)
	}

	protocolLine, err := translateCommand(line, sh.client.Status)
	if err != nil {
		return false, err
	}
	payload, err := sh.client.Exec(protocolLine)
	for _, l := range payload {
		fmt.Fprintln(sh.out, l)
	}
	if errors.Is(err, mpdprotocol.ErrInvalidCommand) && isIdleLine(protocolLine) {
		return false, fmt.Errorf("%w (type .idle to wait for changes)", err)
	}
	return false, err
}

func isIdleLine(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	return len(fields) > 0 && (fields[0] == "idle" || fields[0] == "noidle")
}

func (sh *shell) dotCommand(line string) (bool, error) {
	keyword, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(keyword) {
	case ".quit", ".exit":
		return true, nil
	case ".help":
		return false, printHelp(sh.out, arg)
	case ".status":
		return false, printStatus(sh.client, sh.out)
	case ".queue":
		return false, printQueue(sh.client, sh.out)
	case ".idle":
		return false, sh.waitForChange()
	default:
		return false, fmt.Errorf("unknown command '%s'. Type .help for available commands", keyword)
	}
}

// GO CONCEPT: Scoped Signal Handling with signal.NotifyContext
// ------------------------------------------------------------
// In shell mode the process does not trap SIGINT globally, so Ctrl-C at
// the prompt is left to readline. While .idle waits, NotifyContext derives
// a context from the shell's own and cancels it on os.Interrupt. Idle sees
// the cancellation, sends noidle and returns with the connection intact.
// The deferred stop() restores the previous signal behaviour as soon as the
// wait ends, so the trap lasts exactly as long as the wait.
//
// Compare with Python: signal.signal(SIGINT, handler) replaces a process
// wide handler that must be put back by hand; a KeyboardInterrupt raised
// mid-read would also leave the connection half-way through a response.

// waitForChange blocks in idle until something changes or the user presses
// Ctrl-C, which cancels the wait but keeps the connection.
func (sh *shell) waitForChange() error {
	ctx, stop := signal.NotifyContext(sh.ctx, os.Interrupt)
	defer stop()

	changed, err := sh.client.Idle(ctx)
	if err != nil {
		if ctx.Err() != nil && sh.client.Err() == nil {
			fmt.Fprintln(sh.out, "Stopped waiting")
			return nil
		}
		return err
	}

	if changed.StatusChanged {
		fmt.Fprintln(sh.out, "changed: status")
	}
	if changed.QueueChanged {
		fmt.Fprintln(sh.out, "changed: queue")
	}
	return nil
}
