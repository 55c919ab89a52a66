package demoserver

import "time"

// Config holds configuration for the demo server.
type Config struct {
	// Addr is the listen address of the demo chat backend.
	Addr string `yaml:"addr"`

	// ChunkDelay is the pause between streamed reply chunks.
	ChunkDelay time.Duration `yaml:"chunk_delay"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:       "127.0.0.1:9999",
		ChunkDelay: 50 * time.Millisecond,
	}
}
