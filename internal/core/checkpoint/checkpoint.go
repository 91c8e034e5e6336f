// Package checkpoint keeps the "last indexed block" of each chain.
//
// # Purpose
//
// The checkpoint is the single authoritative progress pointer of a chain
// indexer. Everything below it has been scanned and handed to the event
// processors; everything above it will be scanned on the next iteration.
//
// # Key Features
//
// Monotonic Writes - Set refuses to move the pointer backwards:
//
//	Set(ctx, 1, 1000, false)  // ✓ 1000
//	Set(ctx, 1, 990, false)   // ✗ ErrRegression, stays at 1000
//
// Authorized Rollback - only a chain reindex may rewind the pointer, and it
// says so explicitly:
//
//	Set(ctx, 1, 50, true)     // ✓ 50
//
// Throughput Metrics - each successful advance is recorded so the status
// endpoint can report blocks per second.
//
// # Quick Start
//
//	store := checkpoint.NewManager(repo)
//
//	last, ok, _ := store.Get(ctx, chainID)
//	if !ok {
//	    last = deploymentBlock
//	}
//
//	// after a batch [last+1, to] was processed
//	last, err = store.Set(ctx, chainID, to, false)
//	if errors.Is(err, checkpoint.ErrRegression) {
//	    // someone else moved further; keep our local view
//	}
//
// # Package Structure
//
//   - manager.go - Store interface and the repository-backed Manager
//   - metrics.go - Throughput metrics (blocks/sec, recent rollbacks)
package checkpoint

import (
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// Checkpoint re-exports the domain type for callers of this package.
type Checkpoint = domain.Checkpoint

// NewManager creates a checkpoint manager on top of repo.
func NewManager(repo storage.CheckpointRepository) *Manager {
	return &Manager{
		repo:    repo,
		history: make(map[domain.ChainID]*MetricsCollector),
	}
}

// NewMetricsCollector creates a collector keeping windowSize samples.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &MetricsCollector{
		windowSize: windowSize,
		samples:    make([]blockRecord, 0, windowSize),
		rollbacks:  make([]Rollback, 0, 10),
	}
}
