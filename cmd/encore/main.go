// =============================================================================
// main.go - encore CLI Entry Point
// =============================================================================
//
// This is the main entry point for encore, a terminal client for Music
// Player Daemon. Without a subcommand it connects to the server and opens
// the full-screen player; the subcommands cover one-shot queries, a change
// watcher, an interactive protocol shell and the HTTP/websocket bridge.
//
// Usage:
//
//	encore                        Open the player (local socket, then localhost:6600)
//	encore status                 Print the player status once
//	encore queue                  Print the queue
//	encore play 3                 Play queue position 3
//	encore cmd setvol 40          Send a raw protocol command
//	encore watch                  Print change notifications until Ctrl-C
//	encore repl                   Interactive protocol shell
//	encore serve                  Serve the HTTP/websocket bridge
//
// Connection settings come from MPD_HOST/MPD_PORT (and a .env file), and
// the --host, --port and --socket flags override them.
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/ckaznable/encore/internal/config"
	"github.com/ckaznable/encore/internal/logging"
	"github.com/ckaznable/encore/mpdprotocol"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// appName is the application name.
	appName = "encore"

	// description is the one-line summary shown by --help.
	description = "A terminal client for Music Player Daemon"
)

// appVersion reports the module version recorded in the binary.
func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}

// fullTitle returns the application name with version.
func fullTitle() string {
	return fmt.Sprintf("%s %s", appName, appVersion())
}

// welcomeBanner returns the banner displayed when the REPL starts.
func welcomeBanner(endpoint mpdprotocol.Endpoint, serverVersion string) string {
	return fmt.Sprintf(`%s - %s
Connected to %s (protocol %s)

Type '.help' for available commands.
Type '.quit' to exit.
`, fullTitle(), description, endpoint, serverVersion)
}

// =============================================================================
// Command-Line Arguments
// =============================================================================

// GO CONCEPT: Struct Tags as Flag Declarations
// --------------------------------------------
// boa builds cobra flags from a params struct: each exported field becomes
// a flag, and the backquoted struct tags carry the short name, help text
// and defaults. The library reads them at runtime through reflection, so
// adding a flag is adding a field.
//
// Every params struct repeats the three connection fields, and the command
// converts them back to a ConnParams.

// ConnParams are the connection flags shared by every command.
type ConnParams struct {
	Host   string `short:"H" optional:"true" help:"Server host, or password@host (overrides MPD_HOST)."`
	Port   int    `short:"p" optional:"true" help:"Server TCP port (overrides MPD_PORT)."`
	Socket string `short:"s" optional:"true" help:"Unix socket path (overrides host and port)."`
}

// PlayParams are the flags of the play command.
type PlayParams struct {
	Position string `pos:"true" help:"Zero-based queue position to play."`
	Host     string `short:"H" optional:"true" help:"Server host, or password@host (overrides MPD_HOST)."`
	Port     int    `short:"p" optional:"true" help:"Server TCP port (overrides MPD_PORT)."`
	Socket   string `short:"s" optional:"true" help:"Unix socket path (overrides host and port)."`
}

// CmdParams are the flags of the cmd command.
type CmdParams struct {
	Words  []string `pos:"true" required:"true" help:"Command and arguments to send."`
	Host   string   `short:"H" optional:"true" help:"Server host, or password@host (overrides MPD_HOST)."`
	Port   int      `short:"p" optional:"true" help:"Server TCP port (overrides MPD_PORT)."`
	Socket string   `short:"s" optional:"true" help:"Unix socket path (overrides host and port)."`
}

// ServeParams are the flags of the serve command.
type ServeParams struct {
	Addr   string `short:"a" optional:"true" help:"Listen address (overrides ENCORE_HTTP_ADDR)."`
	Wait   int    `short:"w" optional:"true" help:"Seconds to keep retrying until the server accepts connections." default:"0"`
	Host   string `short:"H" optional:"true" help:"Server host, or password@host (overrides MPD_HOST)."`
	Port   int    `short:"p" optional:"true" help:"Server TCP port (overrides MPD_PORT)."`
	Socket string `short:"s" optional:"true" help:"Unix socket path (overrides host and port)."`
}

func paramEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

// loadConfig reads .env and the environment, then applies the flags.
func loadConfig(conn ConnParams) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyConnFlags(&cfg.MPD, conn)
	return cfg, nil
}

// applyConnFlags overrides the environment with whichever flags were given.
// A socket path wins over host and port.
func applyConnFlags(mpd *config.MPDConfig, conn ConnParams) {
	if conn.Host != "" {
		password, host := mpdprotocol.SplitPassword(conn.Host)
		mpd.Host = host
		if password != "" {
			mpd.Password = password
		}
	}
	if conn.Port > 0 {
		mpd.Port = conn.Port
	}
	if conn.Socket != "" {
		mpd.Host = conn.Socket
	}
}

// printError prints a message to stderr with an "Error: " prefix.
func printError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// exitOnError prints err and exits with status 1 when err is non-nil.
func exitOnError(err error) {
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

// =============================================================================
// Signal Handling
// =============================================================================

// GO CONCEPT: Signals as Cancellation
// -----------------------------------
// Rather than exiting from the signal goroutine, the handler cancels a
// context. Dialing, idle, the player and the HTTP server all watch that
// context, so Ctrl-C returns through the normal paths and the connection
// and log file are closed on the way out.

// setupSignalHandler returns a context cancelled when one of signals
// arrives. The cause records which signal it was. A second signal exits
// immediately, for when a server stops answering mid-command.
func setupSignalHandler(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)

	stopped := make(chan struct{})
	go func() {
		defer signal.Stop(sigCh)
		for received := 0; ; received++ {
			select {
			case sig := <-sigCh:
				if received > 0 {
					fmt.Fprintln(os.Stderr)
					os.Exit(1)
				}
				cancel(fmt.Errorf("received %s", sig))
			case <-stopped:
				return
			}
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() { close(stopped) })
		cancel(context.Canceled)
	}
}

// runMode selects how a command sets up logging and signals.
type runMode int

const (
	// modeOneShot logs to stderr and stops on SIGINT or SIGTERM.
	modeOneShot runMode = iota

	// modePlayer logs to the log file so the full-screen UI stays intact.
	modePlayer

	// modeShell leaves SIGINT to the shell, which uses it to interrupt a
	// wait without leaving.
	modeShell
)

func (m runMode) signals() []os.Signal {
	if m == modeShell {
		return []os.Signal{syscall.SIGTERM}
	}
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// run wraps a command body with configuration, logging, signal handling
// and the error exit.
func run(cmd *cobra.Command, conn ConnParams, mode runMode, body func(ctx context.Context, cfg *config.Config) error) {
	cfg, err := loadConfig(conn)
	exitOnError(err)

	closer, err := logging.Setup(cfg.Logging, mode == modePlayer)
	exitOnError(err)

	ctx, stop := setupSignalHandler(cmd.Context(), mode.signals()...)
	err = body(ctx, cfg)
	stop()
	closer.Close()
	exitOnError(err)
}

// =============================================================================
// Command Tree
// =============================================================================

func rootCmd() *cobra.Command {
	return boa.CmdT[ConnParams]{
		Use:         appName,
		Short:       description,
		Long:        "Without a subcommand encore opens the full-screen player. Run 'encore repl' and type '.help' for the protocol shell.",
		Version:     appVersion(),
		ParamEnrich: paramEnricher(),
		SubCmds: []*cobra.Command{
			statusCmd(),
			queueCmd(),
			playCmd(),
			cmdCmd(),
			watchCmd(),
			replCmd(),
			serveCmd(),
		},
		RunFunc: func(params *ConnParams, cmd *cobra.Command, args []string) {
			run(cmd, *params, modePlayer, func(ctx context.Context, cfg *config.Config) error {
				return runPlayer(ctx, cfg)
			})
		},
	}.ToCobra()
}

func statusCmd() *cobra.Command {
	return boa.CmdT[ConnParams]{
		Use:         "status",
		Short:       "Print the player status",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ConnParams, cmd *cobra.Command, args []string) {
			run(cmd, *params, modeOneShot, func(ctx context.Context, cfg *config.Config) error {
				return runStatus(ctx, cfg, cmd.OutOrStdout())
			})
		},
	}.ToCobra()
}

func queueCmd() *cobra.Command {
	return boa.CmdT[ConnParams]{
		Use:         "queue",
		Short:       "Print the queue",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ConnParams, cmd *cobra.Command, args []string) {
			run(cmd, *params, modeOneShot, func(ctx context.Context, cfg *config.Config) error {
				return runQueue(ctx, cfg, cmd.OutOrStdout())
			})
		},
	}.ToCobra()
}

func playCmd() *cobra.Command {
	return boa.CmdT[PlayParams]{
		Use:         "play",
		Short:       "Play a queue position",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *PlayParams, cmd *cobra.Command, args []string) {
			conn := ConnParams{Host: params.Host, Port: params.Port, Socket: params.Socket}
			run(cmd, conn, modeOneShot, func(ctx context.Context, cfg *config.Config) error {
				return runPlay(ctx, cfg, params.Position, cmd.OutOrStdout())
			})
		},
	}.ToCobra()
}

func cmdCmd() *cobra.Command {
	return boa.CmdT[CmdParams]{
		Use:         "cmd",
		Short:       "Send a raw protocol command and print the response",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *CmdParams, cmd *cobra.Command, args []string) {
			conn := ConnParams{Host: params.Host, Port: params.Port, Socket: params.Socket}
			run(cmd, conn, modeOneShot, func(ctx context.Context, cfg *config.Config) error {
				return runRaw(ctx, cfg, params.Words, cmd.OutOrStdout())
			})
		},
	}.ToCobra()
}

func watchCmd() *cobra.Command {
	return boa.CmdT[ConnParams]{
		Use:         "watch",
		Short:       "Print change notifications until interrupted",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ConnParams, cmd *cobra.Command, args []string) {
			run(cmd, *params, modeOneShot, func(ctx context.Context, cfg *config.Config) error {
				return runWatch(ctx, cfg, cmd.OutOrStdout())
			})
		},
	}.ToCobra()
}

func replCmd() *cobra.Command {
	return boa.CmdT[ConnParams]{
		Use:         "repl",
		Short:       "Interactive protocol shell",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ConnParams, cmd *cobra.Command, args []string) {
			run(cmd, *params, modeShell, func(ctx context.Context, cfg *config.Config) error {
				return runShell(ctx, cfg)
			})
		},
	}.ToCobra()
}

func serveCmd() *cobra.Command {
	return boa.CmdT[ServeParams]{
		Use:         "serve",
		Short:       "Serve status, queue and playback over HTTP and websocket",
		ParamEnrich: paramEnricher(),
		RunFunc: func(params *ServeParams, cmd *cobra.Command, args []string) {
			conn := ConnParams{Host: params.Host, Port: params.Port, Socket: params.Socket}
			run(cmd, conn, modeOneShot, func(ctx context.Context, cfg *config.Config) error {
				if params.Addr != "" {
					cfg.Bridge.Addr = params.Addr
				}
				return runServe(ctx, cfg, secondsToDuration(params.Wait))
			})
		},
	}.ToCobra()
}

func main() {
	exitOnError(rootCmd().Execute())
}
