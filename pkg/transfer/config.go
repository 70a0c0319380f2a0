package transfer

import (
	"errors"
	"time"
)

const (
	// DefaultChunkSize is the payload size of every chunk but the last one
	// of a file, which carries the remainder.
	DefaultChunkSize = 16 * 1024

	// DefaultPacingInterval is the pause between chunk sends. The channel
	// does not expose its outbound buffer depth, so a fixed delay is the
	// session's only concession to backpressure.
	DefaultPacingInterval = 10 * time.Millisecond
)

// TransferConfig holds the tunables of one transfer session.
type TransferConfig struct {
	ChunkSize      int           `json:"chunk_size"`
	PacingInterval time.Duration `json:"pacing_interval"`
}

// DefaultTransferConfig returns a configuration with sensible defaults.
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		ChunkSize:      DefaultChunkSize,
		PacingInterval: DefaultPacingInterval,
	}
}

// Validate checks if the configuration values are valid.
func (tc *TransferConfig) Validate() error {
	if tc.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if tc.PacingInterval < 0 {
		return errors.New("pacing_interval cannot be negative")
	}
	return nil
}
