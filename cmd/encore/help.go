// =============================================================================
// help.go - Shell Help System
// =============================================================================
//
// .help prints an overview of dot-commands and shortcuts; .help <topic>
// prints the detailed entry for one of them. Topics are matched case
// insensitively and a leading dot is optional, so ".help .idle" and
// ".help IDLE" both work.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"
)

// GO CONCEPT: Map Lookup with Comma-Ok
// ------------------------------------
// Indexing a map with a missing key returns the zero value ("" here), so
// `text, ok := helpTopics[key]` is used to tell "no such topic" apart
// from an empty entry. The topic is normalised first (lower case, leading
// dot dropped) so ".IDLE" and "idle" reach the same entry.

// printHelp writes the overview, or the entry for topic.
func printHelp(out io.Writer, topic string) error {
	if topic == "" {
		fmt.Fprint(out, helpOverview)
		return nil
	}

	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(topic)), ".")
	if text, ok := helpTopics[key]; ok {
		fmt.Fprintln(out, text)
		return nil
	}
	return fmt.Errorf("no help for '%s'. Type .help to see available commands", topic)
}

// GO CONCEPT: Raw String Literals for Multi-Line Text
// ---------------------------------------------------
// Backquoted strings keep newlines and backslashes exactly as written, so
// help text reads in the source the way it prints. They cannot contain a
// backquote, which help text never needs.

const helpOverview = `Shell Commands:
  .help [topic]     Show help (or help for one command)
  .status           Show the player status
  .queue            List the queue with zero-based positions
  .idle             Wait for the next change (Ctrl-C to stop waiting)
  .quit             Exit the shell

Shortcuts:
  toggle            Pause or resume
  next, n           Next song
  prev, p           Previous song
  play [n]          Start playback (at queue position n)
  stop              Stop playback
  vol <n|+n|-n>     Set or change the volume
  seek <t|+t|-t>    Seek in the current song (seconds or m:ss)
  repeat [on|off]   Flip or set repeat
  random [on|off]   Flip or set random
  consume [on|off]  Flip or set consume
  single [mode]     Cycle or set single (on, off, oneshot)

Any other line is sent to the server as a protocol command and its
response is printed, e.g. "stats", "outputs" or "list artist".
`

// helpTopics holds the detailed entry for each command and shortcut.
var helpTopics = map[string]string{
	"help": `  .help [topic]
    Without a topic, list the shell commands and shortcuts.
    With a topic, show its entry. Examples: .help seek, .help .idle`,

	"status": `  .status
    Print the current song, the player state with position and elapsed
    time, and the repeat, random, single and consume options.`,

	"queue": `  .queue
    List the queue. Positions are zero-based, the same numbers "play"
    accepts. The current song is marked with '>'.`,

	"idle": `  .idle
    Block until the server reports a change to the player, its options
    or the queue, then print what changed. Ctrl-C stops waiting and
    returns to the prompt with the connection intact.`,

	"quit": `  .quit
    Close the connection and exit. Ctrl-D at the prompt does the same.`,

	"toggle": `  toggle
    Pause if playing, resume if paused. Sends "pause" without argument.`,

	"next": `  next, n
    Skip to the next song in the queue.`,

	"prev": `  prev, p
    Go back to the previous song in the queue.`,

	"play": `  play [n]
    Start playback. With n, play the song at zero-based queue position
    n; the server rejects positions past the end of the queue.`,

	"stop": `  stop
    Stop playback.`,

	"vol": `  vol <n|+n|-n>
    Set the volume to n (0-100), or change it by n percent.
    Examples: vol 40, vol +5, vol -10`,

	"seek": `  seek <t|+t|-t>
    Seek to t in the current song, or move by t from the current
    position. t is seconds (90, 12.5) or clock time (1:30, 1:02:03).
    Examples: seek 1:30, seek +10, seek -5`,

	"repeat": `  repeat [on|off]
    Without an argument, flip repeat. With on/off (or 1/0), set it.`,

	"random": `  random [on|off]
    Without an argument, flip random. With on/off (or 1/0), set it.`,

	"consume": `  consume [on|off]
    Without an argument, flip consume: played songs are removed from
    the queue. With on/off (or 1/0), set it.`,

	"single": `  single [on|off|oneshot]
    Without an argument, cycle off -> on -> oneshot -> off. With a mode,
    set it. oneshot stops after the current song once, then turns off.`,
}
