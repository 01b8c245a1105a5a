package mpdprotocol

import (
	"strconv"
	"strings"
)

// CommandType represents the type of protocol command.
type CommandType int

const (
	// Connection commands
	CmdPing CommandType = iota
	CmdPassword

	// Queries
	CmdStatus
	CmdPlaylistInfo
	CmdIdle
	CmdNoIdle

	// Playback control
	CmdPlay
	CmdPause
	CmdTogglePause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeekCur
	CmdSetVolume
	CmdChangeVolume

	// Playback options
	CmdRepeat
	CmdRandom
	CmdSingle
	CmdConsume

	// Queue editing
	CmdDelete
	CmdClear
)

// IdleSubsystems are the change classes the client subscribes to when idling.
var IdleSubsystems = []string{"options", "player", "playlist"}

// Command represents a protocol command with its arguments.
// Use the constructor functions (NewPlayCommand, NewPauseCommand, etc.)
// to create Command instances.
type Command struct {
	Type CommandType

	// Fields used by various commands (only relevant fields are populated)
	Pos      int        // For play, delete
	On       bool       // For pause, repeat, random, consume
	Single   SingleMode // For single
	Volume   int        // For setvol, or the change for volume
	Seconds  float64    // For seekcur
	Relative bool       // For seekcur: Seconds is an offset, not a position
	Password string     // For password
	Subs     []string   // For idle
}

// Command constructors - these provide a clean API for creating commands.

// NewPingCommand creates a ping command.
func NewPingCommand() Command {
	return Command{Type: CmdPing}
}

// NewPasswordCommand authenticates the connection.
func NewPasswordCommand(password string) Command {
	return Command{Type: CmdPassword, Password: password}
}

// NewStatusCommand creates a status query.
func NewStatusCommand() Command {
	return Command{Type: CmdStatus}
}

// NewPlaylistInfoCommand creates a queue query.
func NewPlaylistInfoCommand() Command {
	return Command{Type: CmdPlaylistInfo}
}

// NewIdleCommand waits for changes in the given subsystems, or in
// IdleSubsystems when none are given.
func NewIdleCommand(subs ...string) Command {
	if len(subs) == 0 {
		subs = IdleSubsystems
	}
	return Command{Type: CmdIdle, Subs: subs}
}

// NewNoIdleCommand ends a pending idle.
func NewNoIdleCommand() Command {
	return Command{Type: CmdNoIdle}
}

// NewPlayCommand starts playback at a queue position.
func NewPlayCommand(pos int) Command {
	return Command{Type: CmdPlay, Pos: pos}
}

// NewPauseCommand pauses (true) or resumes (false).
func NewPauseCommand(pause bool) Command {
	return Command{Type: CmdPause, On: pause}
}

// NewTogglePauseCommand flips between play and pause.
func NewTogglePauseCommand() Command {
	return Command{Type: CmdTogglePause}
}

// NewStopCommand stops playback.
func NewStopCommand() Command {
	return Command{Type: CmdStop}
}

// NewNextCommand skips to the next song.
func NewNextCommand() Command {
	return Command{Type: CmdNext}
}

// NewPreviousCommand goes back to the previous song.
func NewPreviousCommand() Command {
	return Command{Type: CmdPrevious}
}

// NewSeekCurCommand seeks within the current song. A relative seek moves by
// seconds (which may be negative) from the current position.
func NewSeekCurCommand(seconds float64, relative bool) Command {
	return Command{Type: CmdSeekCur, Seconds: seconds, Relative: relative}
}

// NewSetVolumeCommand sets the volume, clamped to 0-100.
func NewSetVolumeCommand(volume int) Command {
	return Command{Type: CmdSetVolume, Volume: max(0, min(100, volume))}
}

// NewChangeVolumeCommand changes the volume by delta percent.
func NewChangeVolumeCommand(delta int) Command {
	return Command{Type: CmdChangeVolume, Volume: delta}
}

// NewRepeatCommand sets the repeat option.
func NewRepeatCommand(on bool) Command {
	return Command{Type: CmdRepeat, On: on}
}

// NewRandomCommand sets the random option.
func NewRandomCommand(on bool) Command {
	return Command{Type: CmdRandom, On: on}
}

// NewSingleCommand sets the single option.
func NewSingleCommand(mode SingleMode) Command {
	return Command{Type: CmdSingle, Single: mode}
}

// NewConsumeCommand sets the consume option.
func NewConsumeCommand(on bool) Command {
	return Command{Type: CmdConsume, On: on}
}

// NewDeleteCommand removes the song at a queue position.
func NewDeleteCommand(pos int) Command {
	return Command{Type: CmdDelete, Pos: pos}
}

// NewClearCommand empties the queue.
func NewClearCommand() Command {
	return Command{Type: CmdClear}
}

// Format returns the command line without the trailing newline.
func (c Command) Format() string {
	switch c.Type {
	case CmdPing:
		return "ping"
	case CmdPassword:
		return "password " + QuoteArg(c.Password)
	case CmdStatus:
		return "status"
	case CmdPlaylistInfo:
		return "playlistinfo"
	case CmdIdle:
		if len(c.Subs) == 0 {
			return "idle"
		}
		return "idle " + strings.Join(c.Subs, " ")
	case CmdNoIdle:
		return "noidle"
	case CmdPlay:
		return "play " + strconv.Itoa(c.Pos)
	case CmdPause:
		return "pause " + boolArg(c.On)
	case CmdTogglePause:
		return "pause"
	case CmdStop:
		return "stop"
	case CmdNext:
		return "next"
	case CmdPrevious:
		return "previous"
	case CmdSeekCur:
		arg := strconv.FormatFloat(c.Seconds, 'f', -1, 64)
		if c.Relative && c.Seconds >= 0 {
			arg = "+" + arg
		}
		return "seekcur " + arg
	case CmdSetVolume:
		return "setvol " + strconv.Itoa(c.Volume)
	case CmdChangeVolume:
		if c.Volume >= 0 {
			return "volume +" + strconv.Itoa(c.Volume)
		}
		return "volume " + strconv.Itoa(c.Volume)
	case CmdRepeat:
		return "repeat " + boolArg(c.On)
	case CmdRandom:
		return "random " + boolArg(c.On)
	case CmdSingle:
		return "single " + c.Single.String()
	case CmdConsume:
		return "consume " + boolArg(c.On)
	case CmdDelete:
		return "delete " + strconv.Itoa(c.Pos)
	case CmdClear:
		return "clear"
	default:
		return ""
	}
}

// FormatLine returns the command ready to be written, newline included.
func (c Command) FormatLine() string {
	return c.Format() + "\n"
}

func boolArg(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// QuoteArg quotes an argument if it contains characters the server would
// otherwise split on. Backslashes and double quotes are escaped.
func QuoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\"'\\") {
		return arg
	}
	var b strings.Builder
	b.Grow(len(arg) + 2)
	b.WriteByte('"')
	for i := 0; i < len(arg); i++ {
		if arg[i] == '"' || arg[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(arg[i])
	}
	b.WriteByte('"')
	return b.String()
}
