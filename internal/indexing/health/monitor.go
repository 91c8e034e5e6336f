package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ocean-indexer/internal/indexing/indexer"
)

const defaultCacheTTL = 10 * time.Second

// StatusSource lists the status of every chain indexer.
type StatusSource interface {
	Statuses(ctx context.Context) []indexer.Status
}

// Thresholds decide when a chain is degraded or critical.
type Thresholds struct {
	DegradedLag uint64
	CriticalLag uint64
	QueueLimit  int64
}

// DefaultThresholds returns the thresholds used by the node.
func DefaultThresholds() Thresholds {
	return Thresholds{DegradedLag: 100, CriticalLag: 10_000, QueueLimit: 1000}
}

// Monitor aggregates health status from the chain indexers.
type Monitor struct {
	source     StatusSource
	thresholds Thresholds
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport map[string]ChainHealth
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(source StatusSource, thresholds Thresholds) *Monitor {
	return &Monitor{
		source:     source,
		thresholds: thresholds,
		cacheTTL:   defaultCacheTTL,
		lastReport: make(map[string]ChainHealth),
	}
}

// CheckHealth performs a health check for all chains.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ChainHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Status reads the queue and the checkpoint store, so keep a short cache
	if time.Since(m.lastCheck) < m.cacheTTL && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ChainHealth)
	for _, s := range m.source.Statuses(ctx) {
		report[s.Network] = m.evaluate(s)
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) evaluate(s indexer.Status) ChainHealth {
	h := ChainHealth{
		ChainID:      s.ChainID,
		Network:      s.Network,
		Status:       StatusHealthy,
		Indexing:     s.State == indexer.StateRunning || s.State == indexer.StateStarting,
		ReindexQueue: s.QueueLength,
		LastError:    s.LastError,
	}
	if s.Lag > 0 {
		h.BlockLag = uint64(s.Lag)
	}

	switch {
	case !h.Indexing, h.BlockLag > m.thresholds.CriticalLag:
		h.Status = StatusCritical
	case h.BlockLag > m.thresholds.DegradedLag, h.ReindexQueue > m.thresholds.QueueLimit, h.LastError != "":
		h.Status = StatusDegraded
	}
	return h
}
