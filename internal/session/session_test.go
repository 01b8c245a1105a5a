package session

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckaznable/encore/internal/mpdtest"
	"github.com/ckaznable/encore/mpdprotocol"
)

var testQueue = []mpdtest.Track{
	{File: "a/one.flac", Artist: "A", Title: "One", Time: 200},
	{File: "a/two.flac", Artist: "A", Title: "Two", Time: 180},
	{File: "b/three.mp3", Time: 95},
}

type harness struct {
	srv     *mpdtest.Server
	session *Session
	cancel  context.CancelFunc
	runErr  chan error
}

func startSession(t *testing.T, opts ...mpdtest.Option) *harness {
	t.Helper()
	opts = append([]mpdtest.Option{mpdtest.WithState(mpdtest.State{
		Single: "0", Player: "stop", Volume: 50, Queue: slices.Clone(testQueue),
	})}, opts...)
	srv := mpdtest.Start(t, opts...)

	client, err := Connect(t.Context(), mpdprotocol.Endpoint{Network: srv.Network(), Address: srv.Address()}, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{srv: srv, session: New(client), cancel: cancel, runErr: make(chan error, 1)}
	go func() { h.runErr <- h.session.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.session.Done()
		client.Close()
	})
	return h
}

// next waits for a snapshot satisfying ok.
func next(t *testing.T, ch <-chan Snapshot, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-ch:
			require.True(t, open, "subscription closed")
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func anySnapshot(Snapshot) bool { return true }

func TestInitialSnapshot(t *testing.T) {
	h := startSession(t)
	sub, cancel := h.session.Subscribe()
	defer cancel()

	snap := next(t, sub, anySnapshot)
	assert.Equal(t, "0.23.5", snap.Version)
	assert.Equal(t, mpdprotocol.StateStop, snap.Status.State)
	assert.Equal(t, 3, snap.Status.QueueLen)
	require.Len(t, snap.Queue, 3)
	assert.Equal(t, "One", snap.Queue[0].DisplayTitle())

	latest, ok := h.session.Snapshot()
	require.True(t, ok)
	assert.Equal(t, snap.Status, latest.Status)
}

func TestPlayInterruptsIdle(t *testing.T) {
	h := startSession(t)
	sub, cancel := h.session.Subscribe()
	defer cancel()
	next(t, sub, anySnapshot)
	require.Eventually(t, func() bool {
		return slices.Contains(h.srv.Commands(), "idle options player playlist")
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.session.Play(t.Context(), 1))
	snap := next(t, sub, func(s Snapshot) bool { return s.Status.State == mpdprotocol.StatePlay })
	require.NotNil(t, snap.Status.Song)
	assert.Equal(t, 1, snap.Status.Song.Pos)

	track, ok := snap.CurrentTrack()
	require.True(t, ok)
	assert.Equal(t, "Two", track.DisplayTitle())

	commands := h.srv.Commands()
	i := slices.Index(commands, "play 1")
	require.Greater(t, i, 1)
	assert.Equal(t, "noidle", commands[i-1], "play must follow the idle cancellation")
}

func TestExternalChangeIsPublished(t *testing.T) {
	h := startSession(t)
	sub, cancel := h.session.Subscribe()
	defer cancel()
	next(t, sub, anySnapshot)

	h.srv.Update(func(s *mpdtest.State) { s.Random = true }, "options")
	snap := next(t, sub, func(s Snapshot) bool { return s.Status.Random })
	assert.Len(t, snap.Queue, 3, "queue is carried over when only options changed")
}

func TestQueueChangeRefreshesQueue(t *testing.T) {
	h := startSession(t)
	sub, cancel := h.session.Subscribe()
	defer cancel()
	next(t, sub, anySnapshot)

	require.NoError(t, h.session.Command(t.Context(), mpdprotocol.NewDeleteCommand(0)))
	snap := next(t, sub, func(s Snapshot) bool { return len(s.Queue) == 2 })
	assert.Equal(t, 2, snap.Status.QueueLen)
	assert.Equal(t, "Two", snap.Queue[0].DisplayTitle())
}

func TestServerErrorKeepsSessionAlive(t *testing.T) {
	h := startSession(t)

	err := h.session.Play(t.Context(), 42)
	assert.True(t, mpdprotocol.IsServerError(err, mpdprotocol.AckArg))

	payload, err := h.session.Exec(t.Context(), "status")
	require.NoError(t, err)
	assert.Contains(t, payload, "playlistlength: 3")
}

func TestShutdownIsClean(t *testing.T) {
	h := startSession(t)
	sub, _ := h.session.Subscribe()
	next(t, sub, anySnapshot)

	h.cancel()
	select {
	case err := <-h.runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	for range sub {
	}
	assert.ErrorIs(t, h.session.Play(t.Context(), 0), ErrStopped)

	late, _ := h.session.Subscribe()
	_, open := <-late
	assert.False(t, open)
}

func TestConnectionLossEndsRun(t *testing.T) {
	h := startSession(t)
	sub, _ := h.session.Subscribe()
	next(t, sub, anySnapshot)

	h.srv.DropConnections()
	select {
	case err := <-h.runErr:
		var ce *mpdprotocol.ConnectionError
		assert.ErrorAs(t, err, &ce)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	err := h.session.Command(t.Context(), mpdprotocol.NewStopCommand())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, h.session.Err())
}

func TestDoHonorsContext(t *testing.T) {
	h := startSession(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := h.session.Do(ctx, func(*mpdprotocol.Client) error {
		t.Error("request ran with a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectWithPassword(t *testing.T) {
	srv := mpdtest.Start(t, mpdtest.WithHandler(func(cmd string) (string, bool) {
		if cmd == "password wrong" {
			return "ACK [3@0] {password} incorrect password\n", true
		}
		return "", false
	}))
	endpoint := mpdprotocol.Endpoint{Network: srv.Network(), Address: srv.Address()}

	client, err := Connect(t.Context(), endpoint, "right")
	require.NoError(t, err)
	client.Close()

	_, err = Connect(t.Context(), endpoint, "wrong")
	assert.True(t, mpdprotocol.IsServerError(err, mpdprotocol.AckPassword))
	assert.Contains(t, err.Error(), "failed to authenticate")
}

func TestUnsubscribe(t *testing.T) {
	h := startSession(t)
	sub, cancel := h.session.Subscribe()
	cancel()
	cancel()

	for range sub {
	}
	h.srv.Update(func(s *mpdtest.State) { s.Repeat = true }, "options")
}

func TestExecRejectsIdleCommands(t *testing.T) {
	h := startSession(t)
	sub, cancel := h.session.Subscribe()
	defer cancel()
	next(t, sub, anySnapshot)

	for _, line := range []string{"noidle", "idle", "idle player"} {
		ctx, cancelReq := context.WithTimeout(t.Context(), 2*time.Second)
		_, err := h.session.Exec(ctx, line)
		cancelReq()
		assert.ErrorIs(t, err, mpdprotocol.ErrInvalidCommand, line)
	}

	ctx, cancelReq := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancelReq()
	require.NoError(t, h.session.Play(ctx, 0))
	next(t, sub, func(s Snapshot) bool { return s.Status.State == mpdprotocol.StatePlay })
	assert.NotContains(t, h.srv.Commands(), "idle player")
}

func TestShutdownAbortsStuckRequest(t *testing.T) {
	// The server never answers stats.
	h := startSession(t, mpdtest.WithHandler(func(cmd string) (string, bool) {
		return "", cmd == "stats"
	}))
	sub, cancel := h.session.Subscribe()
	defer cancel()
	next(t, sub, anySnapshot)

	execErr := make(chan error, 1)
	go func() {
		_, err := h.session.Exec(context.Background(), "stats")
		execErr <- err
	}()
	require.Eventually(t, func() bool {
		return slices.Contains(h.srv.Commands(), "stats")
	}, 2*time.Second, 10*time.Millisecond)

	h.cancel()
	select {
	case err := <-h.runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run stayed blocked on the unanswered request")
	}
	select {
	case err := <-execErr:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request was not answered after shutdown")
	}
}
