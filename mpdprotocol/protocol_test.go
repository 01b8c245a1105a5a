package mpdprotocol

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolConstants(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Greeting", Greeting, "OK MPD "},
		{"OKLine", OKLine, "OK"},
		{"AckPrefix", AckPrefix, "ACK "},
		{"ChangedPrefix", ChangedPrefix, "changed: "},
		{"DefaultHost", DefaultHost, "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}

	if DefaultPort != 6600 {
		t.Errorf("DefaultPort = %d, want 6600", DefaultPort)
	}
}

func TestCommandFormatting(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		expected string
	}{
		{"Ping", NewPingCommand(), "ping"},
		{"Password", NewPasswordCommand("secret"), "password secret"},
		{"Password quoted", NewPasswordCommand("two words"), `password "two words"`},
		{"Status", NewStatusCommand(), "status"},
		{"PlaylistInfo", NewPlaylistInfoCommand(), "playlistinfo"},
		{"Idle default", NewIdleCommand(), "idle options player playlist"},
		{"Idle custom", NewIdleCommand("mixer"), "idle mixer"},
		{"NoIdle", NewNoIdleCommand(), "noidle"},
		{"Play", NewPlayCommand(4), "play 4"},
		{"Pause", NewPauseCommand(true), "pause 1"},
		{"Resume", NewPauseCommand(false), "pause 0"},
		{"TogglePause", NewTogglePauseCommand(), "pause"},
		{"Stop", NewStopCommand(), "stop"},
		{"Next", NewNextCommand(), "next"},
		{"Previous", NewPreviousCommand(), "previous"},
		{"Seek absolute", NewSeekCurCommand(90, false), "seekcur 90"},
		{"Seek forward", NewSeekCurCommand(5, true), "seekcur +5"},
		{"Seek back", NewSeekCurCommand(-5, true), "seekcur -5"},
		{"Seek fraction", NewSeekCurCommand(1.5, false), "seekcur 1.5"},
		{"SetVolume", NewSetVolumeCommand(55), "setvol 55"},
		{"SetVolume clamp high", NewSetVolumeCommand(150), "setvol 100"},
		{"SetVolume clamp low", NewSetVolumeCommand(-3), "setvol 0"},
		{"Volume up", NewChangeVolumeCommand(5), "volume +5"},
		{"Volume down", NewChangeVolumeCommand(-5), "volume -5"},
		{"Repeat on", NewRepeatCommand(true), "repeat 1"},
		{"Random off", NewRandomCommand(false), "random 0"},
		{"Consume on", NewConsumeCommand(true), "consume 1"},
		{"Single off", NewSingleCommand(SingleOff), "single 0"},
		{"Single on", NewSingleCommand(SingleOn), "single 1"},
		{"Single oneshot", NewSingleCommand(SingleOneShot), "single oneshot"},
		{"Delete", NewDeleteCommand(2), "delete 2"},
		{"Clear", NewClearCommand(), "clear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Format(); got != tt.expected {
				t.Errorf("Format() = %q, want %q", got, tt.expected)
			}
			if got := tt.cmd.FormatLine(); got != tt.expected+"\n" {
				t.Errorf("FormatLine() = %q, want %q", got, tt.expected+"\n")
			}
		})
	}
}

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{"two words", `"two words"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
		{"it's", `"it's"`},
		{"tab\there", "\"tab\there\""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteArg(tt.in))
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		want Endpoint
	}{
		{"defaults", "", 0, Endpoint{NetworkTCP, "localhost:6600"}},
		{"host only", "music.lan", 0, Endpoint{NetworkTCP, "music.lan:6600"}},
		{"host and port", "10.0.0.2", 6601, Endpoint{NetworkTCP, "10.0.0.2:6601"}},
		{"ipv6", "::1", 6600, Endpoint{NetworkTCP, "[::1]:6600"}},
		{"negative port", "localhost", -1, Endpoint{NetworkTCP, "localhost:6600"}},
		{"socket path", "/run/mpd/socket", 6600, Endpoint{NetworkUnix, "/run/mpd/socket"}},
		{"abstract socket", "@mpd", 0, Endpoint{NetworkUnix, "@mpd"}},
		{"whitespace", "  localhost ", 0, Endpoint{NetworkTCP, "localhost:6600"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEndpoint(tt.host, tt.port)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Network == NetworkUnix, got.IsUnix())
		})
	}
}

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "tcp://localhost:6600", ParseEndpoint("", 0).String())
	assert.Equal(t, "/run/mpd/socket", ParseEndpoint("/run/mpd/socket", 0).String())
}

func TestSplitPassword(t *testing.T) {
	tests := []struct {
		in           string
		wantPassword string
		wantHost     string
	}{
		{"localhost", "", "localhost"},
		{"secret@localhost", "secret", "localhost"},
		{"a@b@host", "a@b", "host"},
		{"@abstract", "", "@abstract"},
		{"pw@/run/mpd/socket", "pw", "/run/mpd/socket"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			password, host := SplitPassword(tt.in)
			assert.Equal(t, tt.wantPassword, password)
			assert.Equal(t, tt.wantHost, host)
		})
	}
}

func TestDiscoverSockets(t *testing.T) {
	// Keep the path short enough for a Unix socket address.
	dir, err := os.MkdirTemp("/tmp", "encore-xdg-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("XDG_RUNTIME_DIR", dir)

	socketPath := filepath.Join(dir, "mpd", "socket")
	require.NoError(t, os.MkdirAll(filepath.Dir(socketPath), 0o755))
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	found := DiscoverSockets()
	require.NotEmpty(t, found)
	assert.Equal(t, socketPath, found[0])
	assert.Equal(t, Endpoint{NetworkUnix, socketPath}, DiscoverEndpoint())
}

func TestDiscoverSocketsSkipsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	path := filepath.Join(dir, "mpd", "socket")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a socket"), 0o644))

	assert.NotContains(t, DiscoverSockets(), path)
}

func TestParseAck(t *testing.T) {
	tests := []struct {
		line string
		want ServerError
	}{
		{
			`ACK [2@0] {play} Bad song index`,
			ServerError{Code: AckArg, Index: 0, Command: "play", Message: "Bad song index"},
		},
		{
			`ACK [50@3] {} No such song`,
			ServerError{Code: AckNoExist, Index: 3, Command: "", Message: "No such song"},
		},
		{
			`ACK [5@0] {foo} unknown command "foo"`,
			ServerError{Code: AckUnknown, Command: "foo", Message: `unknown command "foo"`},
		},
		{
			`ACK garbage`,
			ServerError{Message: "garbage"},
		},
		{
			`ACK [4@0 missing bracket`,
			ServerError{Message: "[4@0 missing bracket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := parseAck(tt.line)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestServerErrorMessage(t *testing.T) {
	err := error(&ServerError{Code: 2, Command: "play", Message: "Bad song index"})
	assert.Equal(t, "server error 2 in 'play': Bad song index", err.Error())
	assert.Equal(t, "server error 52: boom", (&ServerError{Code: 52, Message: "boom"}).Error())
	assert.False(t, IsServerError(errors.New("plain"), 2))
	assert.True(t, IsServerError(err, AckArg))
}

func TestParseSecondsRounds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0", 0},
		{"12.4", 12},
		{"12.5", 13},
		{"12.6", 13},
		{"199.999", 200},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSeconds("elapsed", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSecondsRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-0.5", "NaN", "+Inf", "1e20"} {
		t.Run(in, func(t *testing.T) {
			_, err := parseSeconds("elapsed", in)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, in, decodeErr.Value)
		})
	}
}

func TestParseUint(t *testing.T) {
	n, err := parseUint("song", "42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	for _, in := range []string{"", "-1", "+1", "4.2", "x", strconv.Itoa(1 << 40)} {
		_, err := parseUint("song", in)
		assert.Error(t, err, "parseUint(%q)", in)
	}
}

func TestLineTableFirstMatchWins(t *testing.T) {
	type acc struct{ hits []string }
	table := lineTable[acc]{
		exact("key: special", func(a *acc) { a.hits = append(a.hits, "exact") }),
		prefixed("key: ", func(a *acc, v string) error {
			a.hits = append(a.hits, "prefix:"+v)
			return nil
		}),
	}

	var a acc
	require.NoError(t, table.apply(&a, "key: special"))
	require.NoError(t, table.apply(&a, "key: other"))
	require.NoError(t, table.apply(&a, "unrelated: line"))
	assert.Equal(t, []string{"exact", "prefix:other"}, a.hits)
}

func TestSingleModeCycle(t *testing.T) {
	assert.Equal(t, SingleOn, SingleOff.Next())
	assert.Equal(t, SingleOneShot, SingleOn.Next())
	assert.Equal(t, SingleOff, SingleOneShot.Next())

	text, err := SingleOneShot.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "oneshot", string(text))
}

func TestPlayerStateString(t *testing.T) {
	assert.Equal(t, "stop", StateStop.String())
	assert.Equal(t, "play", StatePlay.String())
	assert.Equal(t, "pause", StatePause.String())
}

func TestStatusJSONRoundTrip(t *testing.T) {
	tests := []struct {
		state  PlayerState
		single SingleMode
		text   string
	}{
		{StateStop, SingleOff, `"state":"stop"`},
		{StatePlay, SingleOn, `"state":"play"`},
		{StatePause, SingleOneShot, `"state":"pause"`},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			status := Status{Repeat: true, Single: tt.single, QueueLen: 4, State: tt.state}
			if tt.state != StateStop {
				status.Song = &Song{Pos: 2, Elapsed: 31}
			}

			data, err := json.Marshal(status)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"single":"`+tt.single.String()+`"`)
			assert.Contains(t, string(data), tt.text)

			var decoded Status
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, status, decoded)
		})
	}
}

func TestUnmarshalTextRejectsUnknownValues(t *testing.T) {
	var state PlayerState
	assert.Error(t, state.UnmarshalText([]byte("playing")))
	assert.Error(t, state.UnmarshalText(nil))

	var single SingleMode
	assert.Error(t, single.UnmarshalText([]byte("true")))
	assert.Error(t, json.Unmarshal([]byte(`"twice"`), &single))
}

func TestTrackDisplay(t *testing.T) {
	untagged := Track{File: "music/artist/01 - song.flac"}
	assert.Equal(t, "01 - song.flac", untagged.DisplayTitle())
	assert.Equal(t, "", untagged.DisplayArtist())

	tagged := Track{File: "x.mp3", Title: optional("Song"), Artist: optional("Band")}
	assert.Equal(t, "Song", tagged.DisplayTitle())
	assert.Equal(t, "Band", tagged.DisplayArtist())
}

func TestIdleResultMerge(t *testing.T) {
	a := IdleResult{StatusChanged: true}
	b := IdleResult{QueueChanged: true}
	assert.Equal(t, IdleResult{StatusChanged: true, QueueChanged: true}, a.Merge(b))
	assert.False(t, IdleResult{}.Any())
	assert.True(t, b.Any())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-4, "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}
