package mpdprotocol

import (
	"fmt"
	"path"
)

// PlayerState represents the playback state reported by status.
type PlayerState int

const (
	// StateStop is reported when neither "state: play" nor "state: pause"
	// was seen.
	StateStop PlayerState = iota
	// StatePlay indicates a track is playing.
	StatePlay
	// StatePause indicates playback is paused.
	StatePause
)

// String returns the protocol spelling of the state.
func (s PlayerState) String() string {
	switch s {
	case StatePlay:
		return "play"
	case StatePause:
		return "pause"
	default:
		return "stop"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PlayerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the
// spellings String produces.
func (s *PlayerState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stop":
		*s = StateStop
	case "play":
		*s = StatePlay
	case "pause":
		*s = StatePause
	default:
		return fmt.Errorf("unknown player state %q", text)
	}
	return nil
}

// SingleMode is the three-way "single" option.
type SingleMode int

const (
	// SingleOff plays through the queue.
	SingleOff SingleMode = iota
	// SingleOn stops (or repeats) after the current song.
	SingleOn
	// SingleOneShot stops after the current song once, then turns off.
	SingleOneShot
)

// String returns the protocol spelling of the mode.
func (m SingleMode) String() string {
	switch m {
	case SingleOn:
		return "1"
	case SingleOneShot:
		return "oneshot"
	default:
		return "0"
	}
}

// Next returns the mode that follows m in the off, on, oneshot cycle.
func (m SingleMode) Next() SingleMode {
	switch m {
	case SingleOff:
		return SingleOn
	case SingleOn:
		return SingleOneShot
	default:
		return SingleOff
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m SingleMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting the
// spellings String produces.
func (m *SingleMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "0":
		*m = SingleOff
	case "1":
		*m = SingleOn
	case "oneshot":
		*m = SingleOneShot
	default:
		return fmt.Errorf("unknown single mode %q", text)
	}
	return nil
}

// Song is the currently loaded track's place in the queue.
type Song struct {
	Pos     int `json:"pos"`
	Elapsed int `json:"elapsed"` // Seconds, rounded to the nearest second
}

// Status is a snapshot of the player's options and transient state.
type Status struct {
	Repeat   bool        `json:"repeat"`
	Random   bool        `json:"random"`
	Single   SingleMode  `json:"single"`
	Consume  bool        `json:"consume"`
	QueueLen int         `json:"queue_len"`
	State    PlayerState `json:"state"`
	Song     *Song       `json:"song,omitempty"` // nil unless a track is loaded
}

// Track is one queue entry.
type Track struct {
	File   string  `json:"file"`
	Artist *string `json:"artist,omitempty"`
	Album  *string `json:"album,omitempty"`
	Title  *string `json:"title,omitempty"`
	Time   int     `json:"time"` // Duration in seconds, 0 if unknown
}

// DisplayTitle returns the title tag, or the file's base name when the
// track has none.
func (t Track) DisplayTitle() string {
	if t.Title != nil && *t.Title != "" {
		return *t.Title
	}
	return path.Base(t.File)
}

// DisplayArtist returns the artist tag or an empty string.
func (t Track) DisplayArtist() string {
	if t.Artist == nil {
		return ""
	}
	return *t.Artist
}

// IdleResult summarizes the change notifications received by one idle call.
type IdleResult struct {
	StatusChanged bool `json:"status_changed"` // "player" or "options"
	QueueChanged  bool `json:"queue_changed"`  // "playlist"
}

// Any reports whether anything changed.
func (r IdleResult) Any() bool {
	return r.StatusChanged || r.QueueChanged
}

// Merge ORs other into r.
func (r IdleResult) Merge(other IdleResult) IdleResult {
	return IdleResult{
		StatusChanged: r.StatusChanged || other.StatusChanged,
		QueueChanged:  r.QueueChanged || other.QueueChanged,
	}
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
