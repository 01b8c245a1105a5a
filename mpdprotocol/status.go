package mpdprotocol

import "fmt"

// statusField is a bit in statusAccumulator.seen.
type statusField uint8

const (
	seenRepeat statusField = 1 << iota
	seenRandom
	seenSingle
	seenConsume
	seenQueueLen
	seenPos
	seenElapsed
)

// requiredStatusFields must all be seen for a Status to be built.
const requiredStatusFields = seenRepeat | seenRandom | seenSingle | seenConsume | seenQueueLen

type statusAccumulator struct {
	status  Status
	seen    statusField
	pos     int
	elapsed int
}

func (a *statusAccumulator) mark(f statusField) {
	a.seen |= f
}

var statusTable = lineTable[statusAccumulator]{
	exact("repeat: 0", func(a *statusAccumulator) { a.status.Repeat = false; a.mark(seenRepeat) }),
	exact("repeat: 1", func(a *statusAccumulator) { a.status.Repeat = true; a.mark(seenRepeat) }),
	exact("random: 0", func(a *statusAccumulator) { a.status.Random = false; a.mark(seenRandom) }),
	exact("random: 1", func(a *statusAccumulator) { a.status.Random = true; a.mark(seenRandom) }),
	exact("single: 0", func(a *statusAccumulator) { a.status.Single = SingleOff; a.mark(seenSingle) }),
	exact("single: 1", func(a *statusAccumulator) { a.status.Single = SingleOn; a.mark(seenSingle) }),
	exact("single: oneshot", func(a *statusAccumulator) { a.status.Single = SingleOneShot; a.mark(seenSingle) }),
	exact("consume: 0", func(a *statusAccumulator) { a.status.Consume = false; a.mark(seenConsume) }),
	exact("consume: 1", func(a *statusAccumulator) { a.status.Consume = true; a.mark(seenConsume) }),
	prefixed("playlistlength: ", func(a *statusAccumulator, v string) error {
		n, err := parseUint("playlistlength", v)
		if err != nil {
			return err
		}
		a.status.QueueLen = n
		a.mark(seenQueueLen)
		return nil
	}),
	exact("state: play", func(a *statusAccumulator) { a.status.State = StatePlay }),
	exact("state: pause", func(a *statusAccumulator) { a.status.State = StatePause }),
	prefixed("song: ", func(a *statusAccumulator, v string) error {
		n, err := parseUint("song", v)
		if err != nil {
			return err
		}
		a.pos = n
		a.mark(seenPos)
		return nil
	}),
	prefixed("elapsed: ", func(a *statusAccumulator, v string) error {
		secs, err := parseSeconds("elapsed", v)
		if err != nil {
			return err
		}
		a.elapsed = secs
		a.mark(seenElapsed)
		return nil
	}),
}

// build returns the Status, or false if a required field is missing.
func (a *statusAccumulator) build() (Status, bool) {
	if a.seen&requiredStatusFields != requiredStatusFields {
		return Status{}, false
	}
	status := a.status
	if a.seen&(seenPos|seenElapsed) == seenPos|seenElapsed {
		status.Song = &Song{Pos: a.pos, Elapsed: a.elapsed}
	}
	return status, true
}

// Status queries the player's options and playback state. The query fails
// as a whole when repeat, random, single, consume or playlistlength is
// missing from the response; Song is set only when both the song position
// and the elapsed time were reported.
func (c *Client) Status() (Status, error) {
	status, err := c.status()
	if err != nil {
		return Status{}, fmt.Errorf("failed to query status: %w", err)
	}
	return status, nil
}

func (c *Client) status() (Status, error) {
	if err := c.sendLine(NewStatusCommand().Format()); err != nil {
		return Status{}, err
	}

	var acc statusAccumulator
	if err := c.readResponse(func(line string) error {
		return statusTable.apply(&acc, line)
	}); err != nil {
		return Status{}, err
	}

	status, ok := acc.build()
	if !ok {
		return Status{}, incomplete("status")
	}
	return status, nil
}
