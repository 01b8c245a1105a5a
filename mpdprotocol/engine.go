package mpdprotocol

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// sendLine writes one command line followed by a newline.
func (c *Client) sendLine(line string) error {
	if c.err != nil {
		return c.err
	}
	if line == "" || strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, line)
	}
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return c.fail(NewConnectionError("failed to send command", err))
	}
	return nil
}

// readLine returns the next line without its terminator. io.EOF is
// returned as-is when the server closed the stream; the client is marked
// dead either way.
func (c *Client) readLine() (string, error) {
	if c.err != nil {
		return "", c.err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.fail(NewConnectionError("closed by server", io.EOF))
			return "", io.EOF
		}
		return "", c.fail(NewConnectionError("failed to read response", err))
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// readResponse streams the lines of one response to handle until a
// sentinel. OK ends the response with nil, an ACK line with a
// *ServerError. If the stream ends first the loop stops without error and
// the caller decides whether what it saw is complete.
//
// A handle error aborts decoding; the rest of the response is still read
// and discarded so the next command starts on a fresh response.
func (c *Client) readResponse(handle func(line string) error) error {
	var decodeErr error
	for {
		line, err := c.readLine()
		if errors.Is(err, io.EOF) {
			return decodeErr
		}
		if err != nil {
			return err
		}

		if line == OKLine {
			return decodeErr
		}
		if strings.HasPrefix(line, AckPrefix) {
			if decodeErr != nil {
				return decodeErr
			}
			return parseAck(line)
		}

		if handle == nil || decodeErr != nil {
			continue
		}
		decodeErr = handle(line)
	}
}

// fail records err as the reason the client is dead, unless one is
// already recorded, and returns the recorded error.
func (c *Client) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}
