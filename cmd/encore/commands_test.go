package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckaznable/encore/internal/config"
	"github.com/ckaznable/encore/internal/mpdtest"
	"github.com/ckaznable/encore/internal/session"
	"github.com/ckaznable/encore/mpdprotocol"
)

const idleLine = "idle options player playlist"

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reading
// test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func playingState() mpdtest.State {
	return mpdtest.State{
		Repeat:  true,
		Single:  "oneshot",
		Volume:  50,
		Player:  "play",
		Song:    1,
		Elapsed: 41.7,
		Queue: []mpdtest.Track{
			{File: "music/a.flac", Artist: "Alpha", Title: "First", Time: 200},
			{File: "music/b.flac", Title: "Second", Time: 95},
			{File: "music/c.mp3"},
		},
	}
}

// startServer runs a fake server on a Unix socket and returns a config
// pointing at it.
func startServer(t *testing.T, state mpdtest.State, opts ...mpdtest.Option) (*mpdtest.Server, *config.Config) {
	t.Helper()
	srv := mpdtest.Start(t, append(opts, mpdtest.WithState(state))...)
	cfg := &config.Config{
		MPD: config.MPDConfig{Host: srv.Address(), Port: mpdprotocol.DefaultPort},
	}
	return srv, cfg
}

func waitForCommand(t *testing.T, srv *mpdtest.Server, line string, count int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n := 0
		for _, c := range srv.Commands() {
			if c == line {
				n++
			}
		}
		return n >= count
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunStatus(t *testing.T) {
	_, cfg := startServer(t, playingState())

	var out bytes.Buffer
	require.NoError(t, runStatus(t.Context(), cfg, &out))
	assert.Equal(t, "Second\n"+
		"[playing] #1/3 0:42/1:35\n"+
		"repeat: on   random: off   single: oneshot   consume: off\n", out.String())
}

func TestRunStatusStopped(t *testing.T) {
	srv, cfg := startServer(t, mpdtest.State{Single: "0", Player: "stop"})

	var out bytes.Buffer
	require.NoError(t, runStatus(t.Context(), cfg, &out))
	assert.Equal(t, "[stopped]\nrepeat: off   random: off   single: 0   consume: off\n", out.String())
	assert.Equal(t, []string{"status"}, srv.Commands(), "no queue fetch without a current song")
}

func TestRunStatusConnectionRefused(t *testing.T) {
	cfg := &config.Config{MPD: config.MPDConfig{Host: "/tmp/encore-no-such-dir/socket"}}

	err := runStatus(t.Context(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to /tmp/encore-no-such-dir/socket")
	var connErr *mpdprotocol.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestRunQueue(t *testing.T) {
	_, cfg := startServer(t, playingState())

	var out bytes.Buffer
	require.NoError(t, runQueue(t.Context(), cfg, &out))
	assert.Equal(t, "  0  Alpha - First  (3:20)\n"+
		"> 1  Second  (1:35)\n"+
		"  2  c.mp3\n", out.String())
}

func TestRunQueueEmpty(t *testing.T) {
	_, cfg := startServer(t, mpdtest.State{Single: "0", Player: "stop"})

	var out bytes.Buffer
	require.NoError(t, runQueue(t.Context(), cfg, &out))
	assert.Equal(t, "Queue is empty\n", out.String())
}

func TestRunPlay(t *testing.T) {
	srv, cfg := startServer(t, playingState())

	var out bytes.Buffer
	require.NoError(t, runPlay(t.Context(), cfg, "0", &out))
	assert.Equal(t, "play", srv.State().Player)
	assert.Equal(t, 0, srv.State().Song)
	assert.True(t, strings.HasPrefix(out.String(), "Alpha - First\n[playing] #0/3 0:00/3:20\n"), out.String())
}

func TestRunPlayRejected(t *testing.T) {
	tests := []struct {
		name         string
		position     string
		wantCommands []string
		wantAck      bool
	}{
		{"past the end", "7", []string{"play 7"}, true},
		{"not a number", "seven", nil, false},
		{"negative", "-1", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, cfg := startServer(t, playingState())

			err := runPlay(t.Context(), cfg, tt.position, &bytes.Buffer{})
			require.Error(t, err)
			assert.Equal(t, tt.wantAck, mpdprotocol.IsServerError(err, mpdprotocol.AckArg))
			assert.Equal(t, tt.wantCommands, srv.Commands())
		})
	}
}

func TestRunRaw(t *testing.T) {
	_, cfg := startServer(t, playingState(), mpdtest.WithHandler(func(cmd string) (string, bool) {
		if cmd == "stats" {
			return "artists: 2\nsongs: 3\nOK\n", true
		}
		return "", false
	}))

	var out bytes.Buffer
	require.NoError(t, runRaw(t.Context(), cfg, []string{"stats"}, &out))
	assert.Equal(t, "artists: 2\nsongs: 3\n", out.String())

	err := runRaw(t.Context(), cfg, []string{"frobnicate"}, &bytes.Buffer{})
	assert.True(t, mpdprotocol.IsServerError(err, mpdprotocol.AckUnknown))

	assert.Error(t, runRaw(t.Context(), cfg, []string{"  "}, &bytes.Buffer{}))
}

func TestRunRawRejectsIdle(t *testing.T) {
	srv, cfg := startServer(t, playingState())

	for _, words := range [][]string{{"idle"}, {"noidle"}, {"idle", "player"}} {
		err := runRaw(t.Context(), cfg, words, &bytes.Buffer{})
		assert.ErrorIs(t, err, mpdprotocol.ErrInvalidCommand, words)
	}
	assert.Empty(t, srv.Commands())
}

func TestJoinCommand(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		want  string
	}{
		{"empty", nil, ""},
		{"single line", []string{"setvol 40"}, "setvol 40"},
		{"words", []string{"setvol", "40"}, "setvol 40"},
		{"argument with spaces", []string{"add", "My Song.mp3"}, `add "My Song.mp3"`},
		{"argument with quote", []string{"find", "title", `say "hi"`}, `find title "say \"hi\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinCommand(tt.words))
		})
	}
}

func TestWatchPrintsChanges(t *testing.T) {
	srv, cfg := startServer(t, playingState())
	client, _, err := connect(t.Context(), cfg.MPD)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	clock := func() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC) }

	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, client, &out, clock)
	}()

	waitForCommand(t, srv, idleLine, 1)
	srv.Update(func(s *mpdtest.State) { s.Player = "pause" }, "player")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "12:00:00  status: [paused] #1/3 0:42\n")
	}, 2*time.Second, 5*time.Millisecond)

	waitForCommand(t, srv, idleLine, 2)
	srv.Update(func(s *mpdtest.State) { s.Queue = s.Queue[:2] }, "playlist")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "12:00:00  queue: 2 tracks\n")
	}, 2*time.Second, 5*time.Millisecond)

	waitForCommand(t, srv, idleLine, 3)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.NoError(t, client.Err(), "cancelling the watch leaves the connection usable")
}

func TestWatchConnectionLost(t *testing.T) {
	srv, cfg := startServer(t, playingState())
	client, _, err := connect(t.Context(), cfg.MPD)
	require.NoError(t, err)
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- watch(t.Context(), client, &syncBuffer{}, time.Now)
	}()

	waitForCommand(t, srv, idleLine, 1)
	srv.DropConnections()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after the connection dropped")
	}
}

func TestRunSessionStopsWithBody(t *testing.T) {
	srv, cfg := startServer(t, playingState())
	client, _, err := connect(t.Context(), cfg.MPD)
	require.NoError(t, err)

	var seen session.Snapshot
	err = runSession(t.Context(), client, func(ctx context.Context, sess *session.Session) error {
		updates, unsubscribe := sess.Subscribe()
		defer unsubscribe()
		seen = <-updates
		return sess.Play(ctx, 2)
	})
	require.NoError(t, err)
	assert.Equal(t, mpdprotocol.StatePlay, seen.Status.State)
	assert.Len(t, seen.Queue, 3)
	assert.Equal(t, 2, srv.State().Song)
	assert.ErrorIs(t, client.Err(), mpdprotocol.ErrClosed, "runSession closes the client")
}

func TestRunSessionReportsLostConnection(t *testing.T) {
	srv, cfg := startServer(t, playingState())
	client, _, err := connect(t.Context(), cfg.MPD)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- runSession(t.Context(), client, func(ctx context.Context, sess *session.Session) error {
			<-sess.Done()
			return nil
		})
	}()

	waitForCommand(t, srv, idleLine, 1)
	srv.DropConnections()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runSession did not return after the connection dropped")
	}
}

func TestConnectWithRetryGivesUp(t *testing.T) {
	cfg := config.MPDConfig{Host: "/tmp/encore-no-such-dir/socket"}

	start := time.Now()
	_, _, err := connectWithRetry(t.Context(), cfg, 300*time.Millisecond)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestConnectWithRetryDoesNotRetryServerErrors(t *testing.T) {
	srv, cfg := startServer(t, playingState(), mpdtest.WithHandler(func(cmd string) (string, bool) {
		if strings.HasPrefix(cmd, "password ") {
			return "ACK [3@0] {password} incorrect password\n", true
		}
		return "", false
	}))
	cfg.MPD.Password = "secret"

	_, _, err := connectWithRetry(t.Context(), cfg.MPD, 5*time.Second)
	assert.True(t, mpdprotocol.IsServerError(err, mpdprotocol.AckPassword))
	assert.Equal(t, []string{"password secret"}, srv.Commands())
}

func TestConnectWithRetryHonoursContext(t *testing.T) {
	cfg := config.MPDConfig{Host: "/tmp/encore-no-such-dir/socket"}
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := connectWithRetry(ctx, cfg, time.Minute)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFormatStatusLine(t *testing.T) {
	tests := []struct {
		name   string
		status mpdprotocol.Status
		want   string
	}{
		{"stopped", mpdprotocol.Status{}, "[stopped]"},
		{"paused", mpdprotocol.Status{State: mpdprotocol.StatePause, QueueLen: 9, Song: &mpdprotocol.Song{Pos: 4, Elapsed: 3725}}, "[paused] #4/9 1:02:05"},
		{"playing", mpdprotocol.Status{State: mpdprotocol.StatePlay, QueueLen: 1, Song: &mpdprotocol.Song{Pos: 0, Elapsed: 5}}, "[playing] #0/1 0:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatStatusLine(tt.status))
		})
	}
}
