package server

import (
	"time"

	"fedis/internal/protocol"
)

// Config holds everything the connection loop needs that isn't owned
// by a collaborator (store, auth table, dispatcher) constructed
// upstream in cmd/fedis-server.
type Config struct {
	ListenAddr     string
	MaxConnections int
	IdleTimeout    time.Duration

	Limits protocol.Limits

	// NonRedisMode and DebugResponseIDs together enable the RID
	// wrapping described in spec §4.8; DebugResponseIDs alone, without
	// NonRedisMode, has no effect.
	NonRedisMode     bool
	DebugResponseIDs bool
}

// DefaultConfig mirrors the conservative defaults a freshly started
// server applies absent explicit configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:6379",
		MaxConnections: 10000,
		IdleTimeout:    5 * time.Minute,
		Limits:         protocol.DefaultLimits(),
	}
}

func (c *Config) wrapsDebugIDs() bool {
	return c.NonRedisMode && c.DebugResponseIDs
}
