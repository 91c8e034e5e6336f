package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// ErrRegression is returned by Set when the requested block is lower than
// the stored one and no rollback was authorized.
var ErrRegression = errors.New("checkpoint regression refused")

// Store is the checkpoint contract used by chain indexers.
type Store interface {
	// Get returns the stored block and whether one exists.
	Get(ctx context.Context, chainID domain.ChainID) (uint64, bool, error)

	// Set stores block and returns the value now stored. Lowering the
	// pointer fails with ErrRegression unless allowRollback is set.
	Set(ctx context.Context, chainID domain.ChainID, block uint64, allowRollback bool) (uint64, error)

	// GetMetrics returns throughput metrics for a chain.
	GetMetrics(chainID domain.ChainID) Metrics
}

// Manager implements Store on top of a CheckpointRepository.
type Manager struct {
	repo    storage.CheckpointRepository
	mu      sync.Mutex
	history map[domain.ChainID]*MetricsCollector
}

// Get returns the stored block of a chain.
func (m *Manager) Get(ctx context.Context, chainID domain.ChainID) (uint64, bool, error) {
	cp, err := m.repo.Get(ctx, chainID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp.Block, true, nil
}

// Set moves the checkpoint of a chain.
func (m *Manager) Set(
	ctx context.Context,
	chainID domain.ChainID,
	block uint64,
	allowRollback bool,
) (uint64, error) {
	if allowRollback {
		prev, _, err := m.Get(ctx, chainID)
		if err != nil {
			return 0, err
		}
		if err := m.repo.Put(ctx, chainID, block); err != nil {
			return 0, fmt.Errorf("failed to rollback checkpoint: %w", err)
		}
		m.record(chainID, func(c *MetricsCollector) {
			c.RecordRollback(prev, block, time.Now())
		})
		return block, nil
	}

	stored, err := m.repo.CompareAndSet(ctx, chainID, block)
	if errors.Is(err, storage.ErrStaleCheckpoint) {
		return stored, fmt.Errorf("%w: stored %d, requested %d", ErrRegression, stored, block)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update checkpoint: %w", err)
	}

	m.record(chainID, func(c *MetricsCollector) {
		c.RecordBlock(stored, time.Now())
	})
	return stored, nil
}

// GetMetrics returns throughput metrics for a chain.
func (m *Manager) GetMetrics(chainID domain.ChainID) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.history[chainID]; ok {
		return c.GetMetrics()
	}
	return Metrics{}
}

func (m *Manager) record(chainID domain.ChainID, fn func(*MetricsCollector)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.history[chainID]
	if !ok {
		c = NewMetricsCollector(100)
		m.history[chainID] = c
	}
	fn(c)
}
