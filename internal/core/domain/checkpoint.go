package domain

import "time"

// Checkpoint is the durable "last indexed block" marker of a chain.
type Checkpoint struct {
	ChainID   ChainID
	Block     uint64
	UpdatedAt time.Time
}
