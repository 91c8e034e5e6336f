package indexer

import (
	"context"
	"errors"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/recovery"
	"github.com/vietddude/ocean-indexer/internal/indexing/reindex"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
)

// drainReindexQueue processes the tasks queued before this call. A task
// whose receipt is not available yet, or whose processing failed
// transiently, goes back to the queue and ends the drain. A task that can
// never succeed is dropped.
func (c *ChainIndexer) drainReindexQueue(ctx context.Context) {
	pending := c.cfg.Reindex.Len(ctx)
	for i := int64(0); i < pending && !c.shouldStop(ctx); i++ {
		task, err := c.cfg.Reindex.Pop(ctx)
		if err != nil {
			c.log.Error("Failed to pop reindex task", "error", err)
			return
		}
		if task == nil {
			return
		}
		if !c.reindexTransaction(ctx, *task) {
			if err := c.cfg.Reindex.Requeue(ctx, *task); err != nil {
				c.log.Error("Failed to requeue reindex task", "job_id", task.JobID, "tx", task.TxID, "error", err)
			}
			return
		}
	}
}

// reindexTransaction reprocesses the logs of one transaction. It returns
// false when the task should be retried later.
func (c *ChainIndexer) reindexTransaction(ctx context.Context, task domain.ReindexTask) bool {
	log := c.log.With("job_id", task.JobID, "tx", task.TxID)

	receipt, err := c.cfg.Client.TransactionReceipt(ctx, task.TxID)
	if err != nil {
		if isTerminal(err) {
			log.Error("Reindex task dropped, receipt request refused", "error", err)
			c.popped(ctx, task, err)
			return true
		}
		log.Warn("Failed to get receipt for reindex", "error", err)
		return false
	}
	if receipt == nil {
		log.Info("Receipt not available yet, requeueing")
		return false
	}

	records := receipt.Logs
	if task.EventIndex != nil && *task.EventIndex >= 0 && *task.EventIndex < len(receipt.Logs) {
		records = receipt.Logs[*task.EventIndex : *task.EventIndex+1]
	}

	results, err := c.process(ctx, records)
	if err != nil {
		if isTerminal(err) {
			log.Error("Reindex task dropped", "error", err)
			c.popped(ctx, task, err)
			return true
		}
		log.Warn("Reindex processing failed, requeueing", "error", err)
		return false
	}
	c.emitResults(ctx, results)

	log.Info("Transaction reindexed", "documents", len(results))
	c.popped(ctx, task, nil)
	return true
}

// popped reports a task leaving the queue for good.
func (c *ChainIndexer) popped(ctx context.Context, task domain.ReindexTask, err error) {
	pop := domain.ReindexQueuePop{JobID: task.JobID, TxID: task.TxID, Success: err == nil}
	if err != nil {
		pop.Error = err.Error()
	}
	c.emit(ctx, domain.NotifyReindexQueuePop, pop)
}

// isTerminal reports errors that retrying the same task cannot fix.
func isTerminal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, chain.ErrInvalidRequest) ||
		recovery.Classify(err) != recovery.CategoryTransient
}

// applyChainReindex performs a pending chain reindex. current is the block
// the chain is indexed up to.
func (c *ChainIndexer) applyChainReindex(ctx context.Context, current uint64) {
	explicit, ok := c.cfg.Reindex.TakePendingChain()
	if !ok {
		return
	}
	target := reindex.Target(explicit, c.cfg.StartBlock, c.deployBlock)

	height, err := c.fetcher.Height(ctx)
	if err != nil {
		c.log.Error("Chain reindex aborted, cannot read height", "error", err)
		c.emit(ctx, domain.NotifyReindexChain, domain.ReindexChainResult{Block: target, Error: err.Error()})
		return
	}

	result := domain.ReindexChainResult{Block: target, Success: true}
	if err := c.rewinder.Rewind(ctx, c.cfg.ChainID, target, height); err != nil {
		c.log.Error("Chain reindex failed, continuing normally", "target", target, "height", height, "error", err)
		result.Success = false
		result.Error = err.Error()
	} else {
		c.log.Info("Chain reindexed", "from_block", current, "target", target)
	}
	c.emit(ctx, domain.NotifyReindexChain, result)
}
