package mpdprotocol

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Protocol constants.
const (
	// Greeting is the fixed prefix of the line the server sends on connect.
	Greeting = "OK MPD "

	// OKLine terminates a successful response.
	OKLine = "OK"

	// AckPrefix starts the line that terminates a failed response.
	AckPrefix = "ACK "

	// ChangedPrefix starts each change notification in an idle response.
	ChangedPrefix = "changed: "

	// DefaultHost is used when no host is configured.
	DefaultHost = "localhost"

	// DefaultPort is the port MPD listens on by default.
	DefaultPort = 6600

	// MaxLineLength bounds a single line accepted by the REPL and the
	// bridge before it is sent to the server.
	MaxLineLength = 4096
)

// Network names accepted by Dial.
const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"
)

// Endpoint names a server address: a TCP host:port or a Unix socket path.
type Endpoint struct {
	Network string
	Address string
}

// String returns the endpoint in a form suitable for messages.
func (e Endpoint) String() string {
	if e.Network == NetworkUnix {
		return e.Address
	}
	return e.Network + "://" + e.Address
}

// IsUnix reports whether the endpoint is a local socket.
func (e Endpoint) IsUnix() bool {
	return e.Network == NetworkUnix
}

// ParseEndpoint builds an Endpoint from a host and port the way MPD clients
// interpret MPD_HOST/MPD_PORT. A host that is an absolute path or starts
// with '@' (Linux abstract socket) is a Unix socket and the port is ignored.
// An empty host means DefaultHost, a port <= 0 means DefaultPort.
func ParseEndpoint(host string, port int) Endpoint {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "/") || strings.HasPrefix(host, "@") {
		return Endpoint{Network: NetworkUnix, Address: host}
	}
	if host == "" {
		host = DefaultHost
	}
	if port <= 0 {
		port = DefaultPort
	}
	return Endpoint{Network: NetworkTCP, Address: net.JoinHostPort(host, strconv.Itoa(port))}
}

// SplitPassword splits an MPD_HOST value of the form "password@host".
// A leading '@' is part of an abstract socket name, not a separator.
func SplitPassword(host string) (password, rest string) {
	if strings.HasPrefix(host, "@") {
		return "", host
	}
	if i := strings.LastIndex(host, "@"); i > 0 {
		return host[:i], host[i+1:]
	}
	return "", host
}

// DefaultSocketPaths returns the socket locations MPD uses in common
// configurations, most specific first.
func DefaultSocketPaths() []string {
	var paths []string
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		paths = append(paths, filepath.Join(dir, "mpd", "socket"))
	}
	paths = append(paths, "/run/mpd/socket", "/var/run/mpd/socket")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".mpd", "socket"),
			filepath.Join(home, ".config", "mpd", "socket"),
		)
	}
	return paths
}

// DiscoverSockets returns the default socket paths that exist and are
// sockets, in DefaultSocketPaths order.
func DiscoverSockets() []string {
	var found []string
	for _, path := range DefaultSocketPaths() {
		info, err := os.Stat(path)
		if err != nil {
			continue // Not there or not accessible
		}
		if info.Mode()&os.ModeSocket != 0 {
			found = append(found, path)
		}
	}
	return found
}

// DiscoverEndpoint returns the first local socket found, falling back to
// TCP on DefaultHost:DefaultPort.
func DiscoverEndpoint() Endpoint {
	if sockets := DiscoverSockets(); len(sockets) > 0 {
		return Endpoint{Network: NetworkUnix, Address: sockets[0]}
	}
	return ParseEndpoint("", 0)
}
