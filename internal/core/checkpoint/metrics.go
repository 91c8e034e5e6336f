package checkpoint

import (
	"time"
)

// blockRecord holds timing data for a checkpoint advance.
type blockRecord struct {
	Block      uint64
	AdvancedAt time.Time
}

// Rollback records an authorized rewind of the checkpoint.
type Rollback struct {
	From      uint64
	To        uint64
	Timestamp time.Time
}

// Metrics holds checkpoint throughput data.
type Metrics struct {
	BlocksPerSecond float64
	LastAdvanceAt   *time.Time
	LastRollbackAt  *time.Time
	Rollbacks       []Rollback
}

// MetricsCollector tracks checkpoint progress over time.
type MetricsCollector struct {
	windowSize int           // number of advances to track
	samples    []blockRecord // ring buffer of advances
	rollbacks  []Rollback    // recent rollbacks
}

// RecordBlock records an advance to block.
func (mc *MetricsCollector) RecordBlock(block uint64, at time.Time) {
	record := blockRecord{Block: block, AdvancedAt: at}

	if len(mc.samples) >= mc.windowSize {
		copy(mc.samples, mc.samples[1:])
		mc.samples[len(mc.samples)-1] = record
	} else {
		mc.samples = append(mc.samples, record)
	}
}

// RecordRollback records a rewind. Samples taken before the rewind no
// longer describe throughput and are dropped.
func (mc *MetricsCollector) RecordRollback(from, to uint64, at time.Time) {
	r := Rollback{From: from, To: to, Timestamp: at}
	if len(mc.rollbacks) >= 10 {
		copy(mc.rollbacks, mc.rollbacks[1:])
		mc.rollbacks[len(mc.rollbacks)-1] = r
	} else {
		mc.rollbacks = append(mc.rollbacks, r)
	}
	mc.samples = mc.samples[:0]
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		Rollbacks: make([]Rollback, len(mc.rollbacks)),
	}
	copy(m.Rollbacks, mc.rollbacks)
	if n := len(mc.rollbacks); n > 0 {
		at := mc.rollbacks[n-1].Timestamp
		m.LastRollbackAt = &at
	}
	if n := len(mc.samples); n > 0 {
		at := mc.samples[n-1].AdvancedAt
		m.LastAdvanceAt = &at
	}

	// blocks covered by the window over the time it took
	if len(mc.samples) >= 2 {
		first := mc.samples[0]
		last := mc.samples[len(mc.samples)-1]
		duration := last.AdvancedAt.Sub(first.AdvancedAt)

		if duration > 0 && last.Block > first.Block {
			m.BlocksPerSecond = float64(last.Block-first.Block) / duration.Seconds()
		}
	}

	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.samples = mc.samples[:0]
	mc.rollbacks = mc.rollbacks[:0]
}
