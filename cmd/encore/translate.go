// =============================================================================
// translate.go - Shell Shortcut Translation
// =============================================================================
//
// The shell accepts raw protocol commands, plus a handful of shortcuts that
// are friendlier to type:
//
//	toggle            pause/resume           -> pause
//	next, n           next song              -> next
//	prev, p           previous song          -> previous
//	vol 40 | +5 | -5  set or change volume   -> setvol 40 | volume +5
//	seek 1:30 | +10   seek in current song   -> seekcur 90 | seekcur +10
//	repeat [on|off]   flip or set an option  -> repeat 0|1
//	single [mode]     cycle or set single    -> single 0|1|oneshot
//	play [n]          play (at a position)   -> play [n]
//
// Anything else is sent unchanged, so every protocol command still works.
//
// =============================================================================

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ckaznable/encore/mpdprotocol"
)

// GO CONCEPT: Function Types and Method Values
// --------------------------------------------
// statusFunc is a named function type. The shell passes sh.client.Status,
// a method value: the method bound to that client, usable like any other
// function. translateCommand calls it only for shortcuts that need the
// current state, and tests pass a closure that counts calls instead of a
// real connection.

// statusFunc fetches the current status. Only shortcuts that flip or cycle
// an option call it.
type statusFunc func() (mpdprotocol.Status, error)

// translateCommand maps a shell line to the protocol line to send.
func translateCommand(line string, status statusFunc) (string, error) {
	trimmed := strings.TrimSpace(line)
	parts := strings.Fields(trimmed)
	if len(parts) == 0 {
		return "", nil
	}
	keyword := strings.ToLower(parts[0])
	args := parts[1:]

	switch keyword {
	case "toggle":
		if len(args) == 0 {
			return mpdprotocol.NewTogglePauseCommand().Format(), nil
		}

	case "n", "next":
		if len(args) == 0 {
			return mpdprotocol.NewNextCommand().Format(), nil
		}

	case "p", "prev":
		if len(args) == 0 {
			return mpdprotocol.NewPreviousCommand().Format(), nil
		}

	case "vol":
		return translateVolume(args)

	case "seek":
		return translateSeek(args)

	case "repeat", "random", "consume":
		return translateToggle(keyword, args, status)

	case "single":
		return translateSingle(args, status)

	case "play":
		if len(args) == 1 {
			pos, err := parsePosition(args[0])
			if err != nil {
				return "", err
			}
			return mpdprotocol.NewPlayCommand(pos).Format(), nil
		}
	}

	return trimmed, nil
}

func translateVolume(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: vol <0-100|+n|-n>")
	}
	arg := args[0]
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("invalid volume %q", arg)
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		return mpdprotocol.NewChangeVolumeCommand(n).Format(), nil
	}
	if n > 100 {
		return "", fmt.Errorf("volume %d out of range 0-100", n)
	}
	return mpdprotocol.NewSetVolumeCommand(n).Format(), nil
}

func translateSeek(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: seek <[+|-]seconds|m:ss>")
	}
	arg := args[0]
	relative := strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-")
	negative := strings.HasPrefix(arg, "-")

	seconds, err := parseSeekTime(strings.TrimLeft(arg, "+-"))
	if err != nil {
		return "", fmt.Errorf("invalid seek target %q", arg)
	}
	if negative {
		seconds = -seconds
	}
	return mpdprotocol.NewSeekCurCommand(seconds, relative).Format(), nil
}

// parseSeekTime accepts seconds ("90", "12.5") or clock form ("1:30",
// "1:02:03").
func parseSeekTime(s string) (float64, error) {
	if !strings.Contains(s, ":") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		return v, nil
	}

	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	total := 0
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + n
	}
	return float64(total), nil
}

// GO CONCEPT: Multi-Value Switch Cases
// ------------------------------------
// A case can list several values; the first matching case runs and there
// is no fall-through unless asked for with the fallthrough keyword. The
// switch below accepts four spellings of each answer.

// parseSwitch reads an explicit on/off argument.
func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", arg)
	}
}

// translateToggle sets repeat, random or consume, flipping the current value
// when no argument is given.
func translateToggle(option string, args []string, status statusFunc) (string, error) {
	var on bool
	switch len(args) {
	case 0:
		st, err := status()
		if err != nil {
			return "", err
		}
		switch option {
		case "repeat":
			on = !st.Repeat
		case "random":
			on = !st.Random
		default:
			on = !st.Consume
		}
	case 1:
		var err error
		if on, err = parseSwitch(args[0]); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("usage: %s [on|off]", option)
	}

	switch option {
	case "repeat":
		return mpdprotocol.NewRepeatCommand(on).Format(), nil
	case "random":
		return mpdprotocol.NewRandomCommand(on).Format(), nil
	default:
		return mpdprotocol.NewConsumeCommand(on).Format(), nil
	}
}

// translateSingle sets the single mode, cycling off, on, oneshot when no
// argument is given.
func translateSingle(args []string, status statusFunc) (string, error) {
	switch len(args) {
	case 0:
		st, err := status()
		if err != nil {
			return "", err
		}
		return mpdprotocol.NewSingleCommand(st.Single.Next()).Format(), nil
	case 1:
		if strings.EqualFold(args[0], "oneshot") {
			return mpdprotocol.NewSingleCommand(mpdprotocol.SingleOneShot).Format(), nil
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			return "", fmt.Errorf("expected on, off or oneshot, got %q", args[0])
		}
		if on {
			return mpdprotocol.NewSingleCommand(mpdprotocol.SingleOn).Format(), nil
		}
		return mpdprotocol.NewSingleCommand(mpdprotocol.SingleOff).Format(), nil
	default:
		return "", fmt.Errorf("usage: single [on|off|oneshot]")
	}
}
