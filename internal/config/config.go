// Package config reads encore's settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ckaznable/encore/mpdprotocol"
)

type Config struct {
	MPD     MPDConfig
	Logging LoggingConfig
	Bridge  BridgeConfig
	UI      UIConfig
}

type MPDConfig struct {
	Host     string // Empty means discover a local socket first
	Port     int
	Password string
}

type LoggingConfig struct {
	Level log.Level
	File  string
}

type BridgeConfig struct {
	Addr string
}

type UIConfig struct {
	TickInterval time.Duration
}

const (
	DefaultHTTPAddr = "127.0.0.1:6680"
	DefaultTick     = time.Second
	MinTick         = 100 * time.Millisecond
)

// Endpoint resolves the configured server address. Without MPD_HOST a
// local socket is preferred, then localhost:6600.
func (m MPDConfig) Endpoint() mpdprotocol.Endpoint {
	if m.Host == "" {
		if m.Port > 0 && m.Port != mpdprotocol.DefaultPort {
			return mpdprotocol.ParseEndpoint("", m.Port)
		}
		return mpdprotocol.DiscoverEndpoint()
	}
	return mpdprotocol.ParseEndpoint(m.Host, m.Port)
}

// Load reads .env files (default: ./.env) into the environment without
// overriding variables already set, then builds a Config. A missing .env
// file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment.
func FromEnv() *Config {
	password, host := mpdprotocol.SplitPassword(strings.TrimSpace(os.Getenv("MPD_HOST")))
	return &Config{
		MPD: MPDConfig{
			Host:     host,
			Port:     getPort(),
			Password: password,
		},
		Logging: LoggingConfig{
			Level: getLogLevel(),
			File:  getLogFile(),
		},
		Bridge: BridgeConfig{
			Addr: getHTTPAddr(),
		},
		UI: UIConfig{
			TickInterval: getTickInterval(),
		},
	}
}

func getPort() int {
	portStr := os.Getenv("MPD_PORT")
	if portStr == "" {
		return mpdprotocol.DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return mpdprotocol.DefaultPort
	}
	return port
}

func getLogLevel() log.Level {
	level, err := log.ParseLevel(os.Getenv("ENCORE_LOG_LEVEL"))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func getLogFile() string {
	if file := os.Getenv("ENCORE_LOG_FILE"); file != "" {
		return file
	}
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "encore.log")
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "encore", "encore.log")
}

func getHTTPAddr() string {
	if addr := os.Getenv("ENCORE_HTTP_ADDR"); addr != "" {
		return addr
	}
	return DefaultHTTPAddr
}

func getTickInterval() time.Duration {
	msStr := os.Getenv("ENCORE_TICK_MS")
	if msStr == "" {
		return DefaultTick
	}
	ms, err := strconv.Atoi(msStr)
	if err != nil || ms <= 0 {
		return DefaultTick
	}
	return max(time.Duration(ms)*time.Millisecond, MinTick)
}
