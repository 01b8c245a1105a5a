package mpdprotocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// Client is a connection to an MPD server that has completed the greeting
// handshake.
//
// A Client has a single owner: it performs no locking, never pipelines
// commands and must not be shared between goroutines. Once a transport
// error has been returned the client is dead; every later call returns
// that same error.
type Client struct {
	conn    io.ReadWriteCloser
	reader  *bufio.Reader
	version string

	// err is sticky: set on the first transport failure, or to ErrClosed
	// by Close.
	err    error
	closed bool
}

// DialTCP connects to a server at host:port and performs the handshake.
func DialTCP(ctx context.Context, addr string) (*Client, error) {
	return dial(ctx, NetworkTCP, addr)
}

// DialUnix connects to a server's local socket and performs the handshake.
func DialUnix(ctx context.Context, path string) (*Client, error) {
	return dial(ctx, NetworkUnix, path)
}

// Dial connects to an endpoint, choosing TCP or a Unix socket by its
// network.
func Dial(ctx context.Context, endpoint Endpoint) (*Client, error) {
	switch endpoint.Network {
	case NetworkTCP:
		return DialTCP(ctx, endpoint.Address)
	case NetworkUnix:
		return DialUnix(ctx, endpoint.Address)
	default:
		return nil, NewConnectionError(fmt.Sprintf("unsupported network '%s'", endpoint.Network), nil)
	}
}

func dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, NewConnectionError("failed to connect", err)
	}

	// Unblock the greeting read if ctx ends first.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	client, err := NewClient(conn)
	if !stop() {
		if client != nil {
			client.Close()
		}
		return nil, NewConnectionError("handshake interrupted", ctx.Err())
	}
	return client, err
}

// NewClient performs the greeting handshake over an already open stream
// and returns a client bound to it. Exactly one line is consumed. On
// failure the stream is closed.
func NewClient(conn io.ReadWriteCloser) (*Client, error) {
	reader := bufio.NewReader(conn)

	greeting := make([]byte, len(Greeting))
	if _, err := io.ReadFull(reader, greeting); err != nil {
		conn.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
		}
		return nil, NewConnectionError("failed to read greeting", err)
	}
	if string(greeting) != Greeting {
		conn.Close()
		return nil, ErrHandshake
	}

	rest, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, NewConnectionError("failed to read greeting", err)
	}

	return &Client{
		conn:    conn,
		reader:  reader,
		version: strings.TrimRight(rest, "\r\n"),
	}, nil
}

// Version returns the protocol version announced in the greeting.
func (c *Client) Version() string {
	return c.version
}

// Err returns the error that killed the client, or nil while it is usable.
func (c *Client) Err() error {
	return c.err
}

// Close closes the underlying stream. Calling Close more than once is safe.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.err == nil {
		c.err = ErrClosed
	}
	return c.conn.Close()
}

// Play starts playback at a queue position. A server rejection is
// returned as a *ServerError.
func (c *Client) Play(pos int) error {
	if err := c.Command(NewPlayCommand(pos)); err != nil {
		return fmt.Errorf("failed to play %d: %w", pos, err)
	}
	return nil
}

// Command sends a command that has no structured reply and consumes the
// response up to its sentinel, discarding any payload.
func (c *Client) Command(cmd Command) error {
	return c.CommandLine(cmd.Format())
}

// CommandLine sends a pre-formatted command line (without newline) and
// consumes the response like Command.
func (c *Client) CommandLine(line string) error {
	if err := checkPlainCommand(line); err != nil {
		return err
	}
	if err := c.sendLine(line); err != nil {
		return err
	}
	return c.readResponse(nil)
}

// Exec sends a pre-formatted command line and returns its payload lines
// verbatim.
func (c *Client) Exec(line string) ([]string, error) {
	if err := checkPlainCommand(line); err != nil {
		return nil, err
	}
	if err := c.sendLine(line); err != nil {
		return nil, err
	}
	var payload []string
	err := c.readResponse(func(l string) error {
		payload = append(payload, l)
		return nil
	})
	return payload, err
}

// checkPlainCommand rejects commands whose reply does not follow the
// one-request one-response framing. idle answers only when something
// changes (use Idle), noidle gets no answer outside an idle, and a command
// list gets none until its end line.
func checkPlainCommand(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch name := strings.ToLower(fields[0]); name {
	case "idle", "noidle", "command_list_begin", "command_list_ok_begin":
		return fmt.Errorf("%w: %q cannot be sent as a plain command", ErrInvalidCommand, name)
	}
	return nil
}

// Abort closes the transport without touching the client's state, so a
// read blocked on another goroutine fails and the owner sees a dead
// client. It is the only method that may be called concurrently with the
// owner.
func (c *Client) Abort() {
	c.conn.Close()
}
