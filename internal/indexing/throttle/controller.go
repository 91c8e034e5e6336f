package throttle

import (
	"sync"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
)

// ChunkController sizes log fetches from recent fetch outcomes.
//
// Algorithm:
//   - failure: halve the size (floor 1), reset the success count
//   - success at nominal size: nothing to do
//   - success at reduced size: count it; after RecoverAfter in a row,
//     jump straight back to the nominal size
type ChunkController struct {
	chainID domain.ChainID
	config  ChunkConfig

	mu        sync.Mutex
	size      int
	successes int
}

// NewChunkController creates a controller starting at the nominal size.
func NewChunkController(chainID domain.ChainID, config ChunkConfig) *ChunkController {
	if config.NominalSize < 1 {
		config.NominalSize = DefaultConfig().NominalSize
	}
	if config.RecoverAfter < 1 {
		config.RecoverAfter = DefaultConfig().RecoverAfter
	}
	c := &ChunkController{
		chainID: chainID,
		config:  config,
		size:    config.NominalSize,
	}
	c.report()
	return c
}

// Size returns the number of blocks to request next.
func (c *ChunkController) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Nominal returns the configured chunk size.
func (c *ChunkController) Nominal() int {
	return c.config.NominalSize
}

// OnFailure records a failed fetch.
func (c *ChunkController) OnFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.size = max(1, c.size/2)
	c.successes = 0
	metrics.FetchFailures.WithLabelValues(c.chainID.Name()).Inc()
	c.report()
	return c.size
}

// OnSuccess records a successful fetch.
func (c *ChunkController) OnSuccess() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size >= c.config.NominalSize {
		c.successes = 0
		return c.size
	}
	c.successes++
	if c.successes >= c.config.RecoverAfter {
		c.size = c.config.NominalSize
		c.successes = 0
		c.report()
	}
	return c.size
}

// Successes returns the consecutive success count at the reduced size.
func (c *ChunkController) Successes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.successes
}

func (c *ChunkController) report() {
	metrics.ChunkSize.WithLabelValues(c.chainID.Name()).Set(float64(c.size))
}
