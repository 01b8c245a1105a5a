// Package mpdtest provides an in-process MPD server for tests.
//
// The server speaks enough of the text protocol for encore's client, session
// and front ends: status, playlistinfo, playback and option commands, and
// idle/noidle with per-connection pending change sets, the way the real
// daemon tracks them. It listens on a Unix socket under /tmp by default, or
// on 127.0.0.1 when created with WithTCP.
//
// It does not import mpdprotocol, so the protocol package's own tests can
// use it.
package mpdtest

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Track is a queue entry served by playlistinfo. Empty tags are omitted.
type Track struct {
	File   string
	Artist string
	Album  string
	Title  string
	Time   int
}

// State is the player state the server reports.
type State struct {
	Repeat  bool
	Random  bool
	Single  string // "0", "1" or "oneshot"
	Consume bool
	Volume  int
	Player  string // "stop", "play" or "pause"
	Song    int
	Elapsed float64
	Queue   []Track
}

// Handler intercepts a command before the built-in behavior. It returns
// the complete response (sentinel included) and true to handle it.
type Handler func(cmd string) (response string, handled bool)

// Option configures a Server.
type Option func(*Server)

// WithTCP makes the server listen on a loopback TCP port.
func WithTCP() Option {
	return func(s *Server) { s.network = "tcp" }
}

// WithGreeting replaces the greeting line sent on accept.
func WithGreeting(greeting string) Option {
	return func(s *Server) { s.greeting = greeting }
}

// WithHandler installs a command interceptor.
func WithHandler(h Handler) Option {
	return func(s *Server) { s.handler = h }
}

// WithState sets the initial player state.
func WithState(state State) Option {
	return func(s *Server) { s.state = state }
}

// Server is a fake MPD daemon.
type Server struct {
	network  string
	greeting string
	handler  Handler

	listener net.Listener
	address  string

	mu       sync.Mutex
	state    State
	conns    map[*conn]struct{}
	commands []string

	wg sync.WaitGroup
}

type conn struct {
	net.Conn

	// Guarded by Server.mu.
	idling  bool
	subs    []string
	pending []string
}

// Start creates a server and stops it when the test ends.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		network:  "unix",
		greeting: "OK MPD 0.23.5\n",
		state:    State{Single: "0", Player: "stop", Volume: 50},
		conns:    make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch s.network {
	case "tcp":
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		s.listener = listener
		s.address = listener.Addr().String()
	default:
		// t.TempDir paths can exceed the Unix socket address limit.
		dir, err := os.MkdirTemp("/tmp", "encore-mpd-")
		if err != nil {
			t.Fatalf("failed to create temp dir: %v", err)
		}
		t.Cleanup(func() { os.RemoveAll(dir) })
		s.address = filepath.Join(dir, "socket")
		listener, err := net.Listen("unix", s.address)
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		s.listener = listener
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Network returns "unix" or "tcp".
func (s *Server) Network() string { return s.network }

// Address returns the socket path or host:port.
func (s *Server) Address() string { return s.address }

// Close stops accepting, drops every connection and waits for the
// connection goroutines. It is safe to call more than once.
func (s *Server) Close() {
	s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

// DropConnections closes every client connection, as a daemon restart
// would.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Commands returns every command line received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

// State returns a copy of the current player state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	state.Queue = slices.Clone(s.state.Queue)
	return state
}

// Update mutates the state and raises the given change classes on every
// connection, waking idling clients.
func (s *Server) Update(fn func(*State), changed ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.notifyLocked(changed...)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		c := &conn{Conn: nc}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c *conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	if _, err := fmt.Fprint(c, s.greeting); err != nil {
		return
	}

	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		line := scanner.Text()
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		if s.handler != nil {
			if response, ok := s.handler(line); ok {
				if _, err := fmt.Fprint(c, response); err != nil {
					return
				}
				continue
			}
		}

		s.mu.Lock()
		response := s.dispatchLocked(c, line)
		s.mu.Unlock()
		if response == "" {
			continue
		}
		if _, err := fmt.Fprint(c, response); err != nil {
			return
		}
	}
}

// notifyLocked records changes for each connection and completes the idle
// of any connection waiting for one of them.
func (s *Server) notifyLocked(changed ...string) {
	if len(changed) == 0 {
		return
	}
	for c := range s.conns {
		for _, sub := range changed {
			if !slices.Contains(c.pending, sub) {
				c.pending = append(c.pending, sub)
			}
		}
		if c.idling {
			if response := c.takeIdleLocked(false); response != "" {
				c.idling = false
				fmt.Fprint(c, response)
			}
		}
	}
}

// takeIdleLocked returns the idle response for the pending changes that
// match the subscription. With force it returns a response (possibly with
// no changes) even when nothing matches.
func (c *conn) takeIdleLocked(force bool) string {
	var b strings.Builder
	var rest []string
	for _, sub := range c.pending {
		if len(c.subs) == 0 || slices.Contains(c.subs, sub) {
			fmt.Fprintf(&b, "changed: %s\n", sub)
		} else {
			rest = append(rest, sub)
		}
	}
	if b.Len() == 0 && !force {
		return ""
	}
	c.pending = rest
	b.WriteString("OK\n")
	return b.String()
}

func ack(code int, command, message string) string {
	return fmt.Sprintf("ACK [%d@0] {%s} %s\n", code, command, message)
}

func parseBool(arg string) (bool, bool) {
	switch arg {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}

// dispatchLocked runs one command and returns its response. An empty
// response means nothing is written.
func (s *Server) dispatchLocked(c *conn, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ack(5, "", "No command given")
	}
	name, args := fields[0], fields[1:]

	if c.idling {
		if name != "noidle" {
			// The daemon drops clients that send anything else while idle.
			c.Close()
			return ""
		}
		c.idling = false
		return c.takeIdleLocked(true)
	}

	st := &s.state
	switch name {
	case "ping", "password":
		return "OK\n"
	case "noidle":
		return ""
	case "idle":
		c.subs = args
		if response := c.takeIdleLocked(false); response != "" {
			return response
		}
		c.idling = true
		return ""
	case "status":
		return s.statusLocked()
	case "playlistinfo":
		return s.playlistLocked()
	case "play":
		pos := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return ack(2, name, "Integer expected: "+args[0])
			}
			pos = n
		}
		if pos < 0 || pos >= len(st.Queue) {
			return ack(2, name, "Bad song index")
		}
		st.Player, st.Song, st.Elapsed = "play", pos, 0
		s.notifyLocked("player")
		return "OK\n"
	case "pause":
		switch {
		case st.Player == "stop":
		case len(args) == 0 && st.Player == "play", len(args) > 0 && args[0] == "1":
			st.Player = "pause"
		default:
			st.Player = "play"
		}
		s.notifyLocked("player")
		return "OK\n"
	case "stop":
		st.Player, st.Elapsed = "stop", 0
		s.notifyLocked("player")
		return "OK\n"
	case "next", "previous":
		if st.Player == "stop" {
			return "OK\n"
		}
		if name == "next" {
			st.Song++
		} else {
			st.Song--
		}
		if st.Song < 0 || st.Song >= len(st.Queue) {
			st.Player, st.Song = "stop", 0
		}
		st.Elapsed = 0
		s.notifyLocked("player")
		return "OK\n"
	case "seekcur":
		if len(args) != 1 {
			return ack(2, name, "wrong number of arguments")
		}
		if st.Player == "stop" {
			return ack(55, name, "Not playing")
		}
		f, err := strconv.ParseFloat(strings.TrimPrefix(args[0], "+"), 64)
		if err != nil {
			return ack(2, name, "Float expected: "+args[0])
		}
		if strings.HasPrefix(args[0], "+") || strings.HasPrefix(args[0], "-") {
			f += st.Elapsed
		}
		st.Elapsed = max(f, 0)
		s.notifyLocked("player")
		return "OK\n"
	case "repeat", "random", "consume":
		if len(args) != 1 {
			return ack(2, name, "wrong number of arguments")
		}
		on, ok := parseBool(args[0])
		if !ok {
			return ack(2, name, "Boolean (0/1) expected: "+args[0])
		}
		switch name {
		case "repeat":
			st.Repeat = on
		case "random":
			st.Random = on
		default:
			st.Consume = on
		}
		s.notifyLocked("options")
		return "OK\n"
	case "single":
		if len(args) != 1 || !slices.Contains([]string{"0", "1", "oneshot"}, args[0]) {
			return ack(2, name, "Unrecognized single mode")
		}
		st.Single = args[0]
		s.notifyLocked("options")
		return "OK\n"
	case "setvol":
		if len(args) != 1 {
			return ack(2, name, "wrong number of arguments")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > 100 {
			return ack(2, name, "Invalid volume value")
		}
		st.Volume = n
		s.notifyLocked("mixer")
		return "OK\n"
	case "volume":
		if len(args) != 1 {
			return ack(2, name, "wrong number of arguments")
		}
		n, err := strconv.Atoi(strings.TrimPrefix(args[0], "+"))
		if err != nil {
			return ack(2, name, "Integer expected: "+args[0])
		}
		st.Volume = min(max(st.Volume+n, 0), 100)
		s.notifyLocked("mixer")
		return "OK\n"
	case "delete":
		if len(args) != 1 {
			return ack(2, name, "wrong number of arguments")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n >= len(st.Queue) {
			return ack(2, name, "Bad song index")
		}
		st.Queue = slices.Delete(st.Queue, n, n+1)
		if st.Song > n || st.Song >= len(st.Queue) {
			st.Song = max(st.Song-1, 0)
		}
		if len(st.Queue) == 0 {
			st.Player = "stop"
		}
		s.notifyLocked("playlist")
		return "OK\n"
	case "clear":
		st.Queue = nil
		st.Player, st.Song, st.Elapsed = "stop", 0, 0
		s.notifyLocked("playlist", "player")
		return "OK\n"
	default:
		return ack(5, "", fmt.Sprintf("unknown command \"%s\"", name))
	}
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func (s *Server) statusLocked() string {
	st := s.state
	var b strings.Builder
	fmt.Fprintf(&b, "volume: %d\n", st.Volume)
	fmt.Fprintf(&b, "repeat: %s\n", flag(st.Repeat))
	fmt.Fprintf(&b, "random: %s\n", flag(st.Random))
	fmt.Fprintf(&b, "single: %s\n", st.Single)
	fmt.Fprintf(&b, "consume: %s\n", flag(st.Consume))
	b.WriteString("playlist: 2\n")
	fmt.Fprintf(&b, "playlistlength: %d\n", len(st.Queue))
	fmt.Fprintf(&b, "state: %s\n", st.Player)
	if st.Player != "stop" && st.Song < len(st.Queue) {
		fmt.Fprintf(&b, "song: %d\n", st.Song)
		fmt.Fprintf(&b, "songid: %d\n", st.Song+1)
		fmt.Fprintf(&b, "elapsed: %.3f\n", st.Elapsed)
		fmt.Fprintf(&b, "duration: %d.000\n", st.Queue[st.Song].Time)
	}
	b.WriteString("OK\n")
	return b.String()
}

func (s *Server) playlistLocked() string {
	var b strings.Builder
	for i, t := range s.state.Queue {
		fmt.Fprintf(&b, "file: %s\n", t.File)
		if t.Artist != "" {
			fmt.Fprintf(&b, "Artist: %s\n", t.Artist)
		}
		if t.Album != "" {
			fmt.Fprintf(&b, "Album: %s\n", t.Album)
		}
		if t.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", t.Title)
		}
		fmt.Fprintf(&b, "Time: %d\n", t.Time)
		fmt.Fprintf(&b, "Pos: %d\n", i)
		fmt.Fprintf(&b, "Id: %d\n", i+1)
	}
	b.WriteString("OK\n")
	return b.String()
}
