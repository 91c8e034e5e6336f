// Package reindex collects reindex requests for a chain indexer.
//
// Requests arrive from admin callers on any goroutine and are applied from
// inside the chain loop:
//
//   - transaction tasks are queued and popped one per iteration
//   - a chain reindex is a single pending target; a newer request replaces
//     an older one that was not applied yet
package reindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// ErrTargetBeyondHeight rejects a chain reindex above the network height.
var ErrTargetBeyondHeight = errors.New("reindex target is beyond network height")

// Coordinator owns the reindex requests of one chain.
type Coordinator struct {
	chainID domain.ChainID
	queue   TaskQueue
	log     *slog.Logger

	mu        sync.Mutex
	pending   bool
	pendingAt *uint64
}

// NewCoordinator creates a coordinator on queue. A nil queue uses memory.
func NewCoordinator(chainID domain.ChainID, queue TaskQueue, log *slog.Logger) *Coordinator {
	if queue == nil {
		queue = NewMemoryQueue()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		chainID: chainID,
		queue:   queue,
		log:     log.With("chain", chainID.Name()),
	}
}

// AddTask queues a transaction reindex and returns its job id.
func (c *Coordinator) AddTask(ctx context.Context, task domain.ReindexTask) (string, error) {
	if task.JobID == "" {
		task.JobID = uuid.New().String()
	}
	task.ChainID = c.chainID
	if err := c.queue.Push(ctx, task); err != nil {
		return "", fmt.Errorf("queue reindex task: %w", err)
	}
	c.reportLen(ctx)
	c.log.Info("Queued transaction reindex", "job_id", task.JobID, "tx", task.TxID)
	return task.JobID, nil
}

// Pop returns the next task, or nil.
func (c *Coordinator) Pop(ctx context.Context) (*domain.ReindexTask, error) {
	task, err := c.queue.Pop(ctx)
	if err != nil {
		return nil, fmt.Errorf("pop reindex task: %w", err)
	}
	if task != nil {
		c.reportLen(ctx)
	}
	return task, nil
}

// Requeue puts a task back for a later iteration.
func (c *Coordinator) Requeue(ctx context.Context, task domain.ReindexTask) error {
	if err := c.queue.Push(ctx, task); err != nil {
		return fmt.Errorf("requeue reindex task: %w", err)
	}
	c.reportLen(ctx)
	return nil
}

// Len returns the number of queued tasks.
func (c *Coordinator) Len(ctx context.Context) int64 {
	n, err := c.queue.Len(ctx)
	if err != nil {
		c.log.Warn("Failed to read reindex queue length", "error", err)
		return 0
	}
	return n
}

func (c *Coordinator) reportLen(ctx context.Context) {
	metrics.ReindexQueueLength.WithLabelValues(c.chainID.Name()).Set(float64(c.Len(ctx)))
}

// TriggerChain requests a chain reindex. A nil block means "from the
// configured start".
func (c *Coordinator) TriggerChain(block *uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = true
	c.pendingAt = nil
	if block != nil {
		b := *block
		c.pendingAt = &b
	}
}

// TakePendingChain returns and clears the pending chain reindex.
func (c *Coordinator) TakePendingChain() (*uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return nil, false
	}
	block := c.pendingAt
	c.pending, c.pendingAt = false, nil
	return block, true
}

// HasPendingChain reports whether a chain reindex is waiting.
func (c *Coordinator) HasPendingChain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Target resolves the block a chain reindex rewinds to. An explicit block
// wins when it is above the deployment block, then the configured start
// block, then the deployment block.
func Target(explicit *uint64, startBlock, deployBlock uint64) uint64 {
	switch {
	case explicit != nil && *explicit > deployBlock:
		return *explicit
	case startBlock >= deployBlock:
		return startBlock
	default:
		return deployBlock
	}
}

// Rewinder applies a chain reindex to the checkpoint and document stores.
type Rewinder struct {
	Checkpoints checkpoint.Store
	Documents   storage.DDORepository
}

// Rewind moves the checkpoint to target and deletes every document of the
// chain. If the delete fails the previous checkpoint is restored.
func (r *Rewinder) Rewind(ctx context.Context, chainID domain.ChainID, target, height uint64) error {
	if target > height {
		metrics.ChainReindexTotal.WithLabelValues(chainID.Name(), "rejected").Inc()
		return fmt.Errorf("%w: target %d, height %d", ErrTargetBeyondHeight, target, height)
	}

	previous, hadPrevious, err := r.Checkpoints.Get(ctx, chainID)
	if err != nil {
		return err
	}
	if _, err := r.Checkpoints.Set(ctx, chainID, target, true); err != nil {
		metrics.ChainReindexTotal.WithLabelValues(chainID.Name(), "error").Inc()
		return err
	}

	if _, err := r.Documents.DeleteAllByChain(ctx, chainID); err != nil {
		metrics.ChainReindexTotal.WithLabelValues(chainID.Name(), "error").Inc()
		if hadPrevious {
			if _, rerr := r.Checkpoints.Set(ctx, chainID, previous, true); rerr != nil {
				return fmt.Errorf("delete documents: %w (checkpoint restore failed: %v)", err, rerr)
			}
		}
		return fmt.Errorf("delete documents: %w", err)
	}

	metrics.ChainReindexTotal.WithLabelValues(chainID.Name(), "ok").Inc()
	return nil
}
