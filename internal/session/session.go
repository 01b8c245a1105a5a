// Package session shares one MPD connection between a change feed and
// on-demand commands.
//
// A Session owns its Client. Run keeps the client in idle whenever it is
// not serving a request; a request cancels the idle (noidle), waits for it
// to return, runs on the owning goroutine and resumes idling. After every
// change the session re-reads the status, and the queue when the playlist
// changed, and publishes a Snapshot to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ckaznable/encore/internal/logging"
	"github.com/ckaznable/encore/mpdprotocol"
)

var logger = logging.Module("session")

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("session stopped")

// Snapshot is the player state after the most recent change. Queue is
// shared between subscribers and must not be modified.
type Snapshot struct {
	Version string              `json:"version"`
	Status  mpdprotocol.Status  `json:"status"`
	Queue   []mpdprotocol.Track `json:"queue"`
}

// CurrentTrack returns the queue entry the status points at.
func (s Snapshot) CurrentTrack() (mpdprotocol.Track, bool) {
	if s.Status.Song == nil || s.Status.Song.Pos >= len(s.Queue) {
		return mpdprotocol.Track{}, false
	}
	return s.Queue[s.Status.Song.Pos], true
}

type request struct {
	fn    func(*mpdprotocol.Client) error
	reply chan error
}

type idleOutcome struct {
	result mpdprotocol.IdleResult
	err    error
}

type Session struct {
	client   *mpdprotocol.Client
	requests chan request
	done     chan struct{}

	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
	last *Snapshot
	err  error // Why Run returned, nil on a clean shutdown
}

// New wraps a connected client. The session takes ownership: the client
// must not be used directly once Run has started.
func New(client *mpdprotocol.Client) *Session {
	return &Session{
		client:   client,
		requests: make(chan request),
		done:     make(chan struct{}),
		subs:     make(map[chan Snapshot]struct{}),
	}
}

// Connect dials the endpoint and authenticates when a password is given.
func Connect(ctx context.Context, endpoint mpdprotocol.Endpoint, password string) (*mpdprotocol.Client, error) {
	client, err := mpdprotocol.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if password != "" {
		if err := client.Command(mpdprotocol.NewPasswordCommand(password)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	logger.WithFields(log.Fields{
		"endpoint": endpoint.String(),
		"version":  client.Version(),
	}).Debug("Connected")
	return client, nil
}

// Run serves requests and publishes snapshots until ctx is cancelled, in
// which case it returns nil, or until the connection fails. It must be
// called once. Subscriber channels are closed when it returns.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	if err != nil {
		logger.WithError(err).Warn("Session ended")
	}

	s.mu.Lock()
	s.err = err
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	close(s.done)
	s.mu.Unlock()
	return err
}

func (s *Session) run(ctx context.Context) error {
	var queue []mpdprotocol.Track
	changed := mpdprotocol.IdleResult{StatusChanged: true, QueueChanged: true}

	for {
		if changed.Any() {
			snap, err := s.refresh(changed, queue)
			if err != nil {
				return err
			}
			queue = snap.Queue
			s.publish(snap)
		}

		idleCtx, cancelIdle := context.WithCancel(ctx)
		idleDone := make(chan idleOutcome, 1)
		go func() {
			result, err := s.client.Idle(idleCtx)
			idleDone <- idleOutcome{result, err}
		}()

		select {
		case out := <-idleDone:
			cancelIdle()
			if out.err != nil {
				return s.interruptedIdleErr(ctx, out.err)
			}
			logger.WithFields(log.Fields{
				"status": out.result.StatusChanged,
				"queue":  out.result.QueueChanged,
			}).Debug("Idle returned")
			changed = out.result

		case req := <-s.requests:
			cancelIdle()
			out := <-idleDone
			if err := s.interruptedIdleErr(idleCtx, out.err); err != nil {
				req.reply <- err
				return err
			}
			changed = out.result

			// A request stuck on a silent server must not outlive ctx.
			abort := context.AfterFunc(ctx, s.client.Abort)
			err := req.fn(s.client)
			aborted := !abort()
			req.reply <- err
			if aborted {
				return nil
			}
			if dead := s.client.Err(); dead != nil {
				return dead
			}
			if err != nil {
				logger.WithError(err).Debug("Request failed")
			}

		case <-ctx.Done():
			cancelIdle()
			out := <-idleDone
			return s.interruptedIdleErr(idleCtx, out.err)
		}
	}
}

// interruptedIdleErr filters the cancellation error out of an idle that
// was interrupted on purpose. A dead connection is still an error.
func (s *Session) interruptedIdleErr(idleCtx context.Context, err error) error {
	if dead := s.client.Err(); dead != nil {
		return dead
	}
	if err != nil && idleCtx.Err() == nil {
		return err
	}
	return nil
}

func (s *Session) refresh(changed mpdprotocol.IdleResult, queue []mpdprotocol.Track) (Snapshot, error) {
	status, err := s.client.Status()
	if err != nil {
		return Snapshot{}, err
	}
	if changed.QueueChanged || queue == nil {
		queue, err = s.client.Queue(status.QueueLen)
		if err != nil {
			return Snapshot{}, err
		}
	}
	return Snapshot{Version: s.client.Version(), Status: status, Queue: queue}, nil
}

func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &snap
	for ch := range s.subs {
		// Keep only the newest snapshot.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Subscribe returns a channel that always holds the latest snapshot not
// yet received, starting with the current one when there is one. The
// channel is closed when the session stops or cancel is called.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		close(ch)
		return ch, func() {}
	default:
	}
	if s.last != nil {
		ch <- *s.last
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// Snapshot returns the most recently published snapshot.
func (s *Session) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Snapshot{}, false
	}
	return *s.last, true
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why Run stopped, or nil while it runs or after a clean
// shutdown.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Do runs fn with exclusive use of the client, between idles.
func (s *Session) Do(ctx context.Context, fn func(*mpdprotocol.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reply := make(chan error, 1)
	select {
	case s.requests <- request{fn: fn, reply: reply}:
	case <-s.done:
		return s.stoppedErr()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) stoppedErr() error {
	if err := s.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStopped, err)
	}
	return ErrStopped
}

// Play starts playback at a queue position.
func (s *Session) Play(ctx context.Context, pos int) error {
	return s.Do(ctx, func(c *mpdprotocol.Client) error {
		return c.Play(pos)
	})
}

// Command sends a command without a structured reply.
func (s *Session) Command(ctx context.Context, cmd mpdprotocol.Command) error {
	return s.Do(ctx, func(c *mpdprotocol.Client) error {
		return c.Command(cmd)
	})
}

// Exec sends a raw command line and returns its payload lines.
func (s *Session) Exec(ctx context.Context, line string) ([]string, error) {
	out := make(chan []string, 1)
	err := s.Do(ctx, func(c *mpdprotocol.Client) error {
		payload, err := c.Exec(line)
		out <- payload
		return err
	})
	select {
	case payload := <-out:
		return payload, err
	default:
		// Do gave up waiting; the request may still run.
		return nil, err
	}
}
