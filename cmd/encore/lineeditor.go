// =============================================================================
// lineeditor.go - Line Editing with History
// =============================================================================
//
// Provides readline-style line editing for the shell: arrow keys, Emacs key
// bindings and persistent history in ~/.encore_history. When input is not
// a terminal (piped scripts, tests) or the shell runs inside Emacs comint,
// which does its own editing, a plain bufio.Scanner reads lines instead.
//
// =============================================================================

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	// historyFileName is the history file in the user's home directory.
	historyFileName = ".encore_history"

	// historySize is the maximum number of entries kept.
	historySize = 500
)

// GO CONCEPT: One Type, Two Input Paths
// -------------------------------------
// LineEditor holds either a readline instance or a bufio.Scanner, never
// both, and GetLine picks the path from the interactive flag. Callers see
// one method and one error convention (io.EOF at the end) whichever way
// the input arrives. The shell only needs GetLine, so it depends on the
// small lineReader interface in repl.go instead of *LineEditor, and tests
// pass a scripted reader.
//
// Compare with Python: the same split is usually `if sys.stdin.isatty():
// import readline` followed by plain input(), where readline patches
// input() globally. Go has no such hook, so the two paths are explicit.

// LineEditor reads shell input, with editing and history when stdin is an
// interactive terminal.
type LineEditor struct {
	// interactive is true when readline is in use.
	interactive bool

	// rl is the readline instance (nil in non-interactive mode).
	rl *readline.Instance

	// scanner and out serve non-interactive mode: the prompt is written to
	// out so transcripts still show it.
	scanner *bufio.Scanner
	out     io.Writer
}

// NewLineEditor returns an editor reading from in. Readline is used only
// when in is a terminal and INSIDE_EMACS is unset; if it fails to start
// the editor falls back to plain input with a warning.
func NewLineEditor(in *os.File, out io.Writer) *LineEditor {
	isInteractive := term.IsTerminal(int(in.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	plain := &LineEditor{
		scanner: newLineScanner(in),
		out:     out,
	}
	if !isInteractive {
		return plain
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath(),
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
		Stdin:                  in,
		Stdout:                 out,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return plain
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
		out:         out,
	}
}

// newLineScanner allows lines up to the protocol's line limit plus slack,
// so an over-long line is rejected by the shell with a message rather than
// by the scanner.
func newLineScanner(in io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	return scanner
}

// historyPath returns ~/.encore_history, or an empty string (no history
// file) when the home directory is unknown.
func historyPath() string {
	home := homeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, historyFileName)
}

// GetLine shows prompt and reads one line without its newline. It returns
// io.EOF at end of input, and for Ctrl-C or Ctrl-D at an interactive
// prompt.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

// GO CONCEPT: Translating Library Errors at the Boundary
// -----------------------------------------------------
// readline reports Ctrl-C as its own sentinel, readline.ErrInterrupt.
// errors.Is compares against it (and unwraps if the library ever wraps
// it), and the editor returns io.EOF instead, so the shell's loop handles
// a single end-of-input value and never imports readline itself.

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return "", err
	}

	// Blank lines stay out of the history.
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Fprint(le.out, prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close releases the terminal. It is safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether readline editing is active.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
