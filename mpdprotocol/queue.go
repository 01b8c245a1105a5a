package mpdprotocol

import "fmt"

type queueAccumulator struct {
	tracks  []Track
	current Track
	started bool // a file: line has been seen
	hasFile bool // current carries a non-empty file
}

// flush appends the in-progress track. It fails if the record never got a
// file, which a well-formed stream cannot produce.
func (a *queueAccumulator) flush() error {
	if !a.hasFile {
		return incomplete("playlist")
	}
	a.tracks = append(a.tracks, a.current)
	return nil
}

func optional(v string) *string {
	return &v
}

var queueTable = lineTable[queueAccumulator]{
	prefixed("file: ", func(a *queueAccumulator, v string) error {
		if a.started {
			if err := a.flush(); err != nil {
				return err
			}
		}
		a.started = true
		a.current = Track{File: v}
		a.hasFile = v != ""
		return nil
	}),
	prefixed("Artist: ", func(a *queueAccumulator, v string) error {
		a.current.Artist = optional(v)
		return nil
	}),
	prefixed("Album: ", func(a *queueAccumulator, v string) error {
		a.current.Album = optional(v)
		return nil
	}),
	prefixed("Title: ", func(a *queueAccumulator, v string) error {
		a.current.Title = optional(v)
		return nil
	}),
	prefixed("Time: ", func(a *queueAccumulator, v string) error {
		n, err := parseUint("Time", v)
		if err != nil {
			return err
		}
		a.current.Time = n
		return nil
	}),
}

// Queue returns the tracks of the current queue in playback order.
// sizeHint, usually Status.QueueLen, only pre-sizes the result.
func (c *Client) Queue(sizeHint int) ([]Track, error) {
	tracks, err := c.queue(sizeHint)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	return tracks, nil
}

func (c *Client) queue(sizeHint int) ([]Track, error) {
	if err := c.sendLine(NewPlaylistInfoCommand().Format()); err != nil {
		return nil, err
	}

	acc := queueAccumulator{tracks: make([]Track, 0, max(sizeHint, 0))}
	if err := c.readResponse(func(line string) error {
		return queueTable.apply(&acc, line)
	}); err != nil {
		return nil, err
	}

	if acc.started {
		if err := acc.flush(); err != nil {
			return nil, err
		}
	}
	return acc.tracks, nil
}
