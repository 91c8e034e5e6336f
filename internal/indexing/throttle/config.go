package throttle

// ChunkConfig holds configuration for adaptive chunk sizing.
type ChunkConfig struct {
	// NominalSize is the configured number of blocks per fetch (default: 100)
	NominalSize int

	// RecoverAfter is the number of consecutive successes at a reduced size
	// before the nominal size is restored (default: 3)
	RecoverAfter int
}

// DefaultConfig returns the default chunk sizing policy.
func DefaultConfig() ChunkConfig {
	return ChunkConfig{
		NominalSize:  100,
		RecoverAfter: 3,
	}
}
