package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
	"github.com/vietddude/ocean-indexer/internal/indexing/processor"
	"github.com/vietddude/ocean-indexer/internal/indexing/recovery"
	"github.com/vietddude/ocean-indexer/internal/indexing/reindex"
	"github.com/vietddude/ocean-indexer/internal/indexing/throttle"
)

const stopPollInterval = 100 * time.Millisecond

// ChainIndexer crawls one chain: it fetches logs in adaptive chunks, hands
// them to the processors and advances the checkpoint, then serves reindex
// requests between chunks.
type ChainIndexer struct {
	cfg      Config
	fetcher  *BlockRangeFetcher
	chunk    *throttle.ChunkController
	failures *recovery.Handler
	rewinder *reindex.Rewinder
	log      *slog.Logger

	running       atomic.Bool
	stopRequested atomic.Bool
	processing    atomic.Bool
	started       atomic.Bool
	height        atomic.Uint64

	mu    sync.Mutex
	state State
	stop  chan struct{}

	// set once the start block is resolved
	deployBlock   uint64
	crawlingStart uint64
}

var _ Indexer = (*ChainIndexer)(nil)

// NewChainIndexer creates a chain indexer.
func NewChainIndexer(cfg Config) *ChainIndexer {
	cfg.applyDefaults()
	return &ChainIndexer{
		cfg:      cfg,
		fetcher:  NewBlockRangeFetcher(cfg.Client, cfg.Classifier.Topics()),
		chunk:    throttle.NewChunkController(cfg.ChainID, cfg.Chunk),
		failures: recovery.NewHandler(cfg.Backoff, recovery.Classify),
		rewinder: &reindex.Rewinder{Checkpoints: cfg.Checkpoints, Documents: cfg.Documents},
		log:      cfg.Logger.With("chain", cfg.ChainID.Name()),
		state:    StateStopped,
	}
}

func (c *ChainIndexer) ChainID() domain.ChainID { return c.cfg.ChainID }

// Start launches the crawl loop. Starting a running indexer logs a warning
// and returns ErrAlreadyRunning.
func (c *ChainIndexer) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Warn("Indexer is already running")
		return ErrAlreadyRunning
	}
	c.stopRequested.Store(false)

	c.mu.Lock()
	c.stop = make(chan struct{})
	c.mu.Unlock()
	c.transition(StateStarting, "start requested")

	go c.loop(ctx)
	return nil
}

// Stop requests a stop and waits until the loop has exited or ctx is done.
func (c *ChainIndexer) Stop(ctx context.Context) error {
	if !c.running.Load() {
		return nil
	}
	if c.stopRequested.CompareAndSwap(false, true) {
		c.transition(StateStopping, "stop requested")
		c.mu.Lock()
		close(c.stop)
		c.mu.Unlock()
	}

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()
	for c.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	c.log.Info("Indexer stopped")
	return nil
}

func (c *ChainIndexer) IsIndexing() bool {
	return c.running.Load()
}

func (c *ChainIndexer) AddReindexTask(ctx context.Context, task domain.ReindexTask) (string, error) {
	return c.cfg.Reindex.AddTask(ctx, task)
}

func (c *ChainIndexer) TriggerReindexChain(block *uint64) {
	c.cfg.Reindex.TriggerChain(block)
	if block != nil {
		c.log.Info("Chain reindex requested", "block", *block)
	} else {
		c.log.Info("Chain reindex requested")
	}
}

func (c *ChainIndexer) Status(ctx context.Context) Status {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	s := Status{
		ChainID:         c.cfg.ChainID,
		Network:         c.cfg.ChainID.Name(),
		State:           state,
		NetworkHeight:   c.height.Load(),
		ChunkSize:       c.chunk.Size(),
		BlocksPerSecond: c.cfg.Checkpoints.GetMetrics(c.cfg.ChainID).BlocksPerSecond,
		QueueLength:     c.cfg.Reindex.Len(ctx),
		PendingReindex:  c.cfg.Reindex.HasPendingChain(),
		CrawlingStarted: c.started.Load(),
	}
	if last, ok, err := c.cfg.Checkpoints.Get(ctx, c.cfg.ChainID); err == nil && ok {
		s.LastIndexedBlock = last
		s.Lag = int64(s.NetworkHeight) - int64(last)
	}
	if err := c.failures.LastError(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

func (c *ChainIndexer) transition(to State, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := NewTransition(c.state, to, reason)
	if !t.IsValid() {
		c.log.Debug("Ignoring state transition", "from", t.From, "to", t.To, "reason", reason, "error", ErrInvalidTransition)
		return
	}
	c.state = to
	c.log.Debug("State changed", "from", t.From, "to", t.To, "reason", reason)
}

func (c *ChainIndexer) stopChan() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

// sleep waits for d, returning early on stop or cancellation.
func (c *ChainIndexer) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-c.stopChan():
	case <-t.C:
	}
}

func (c *ChainIndexer) shouldStop(ctx context.Context) bool {
	return c.stopRequested.Load() || ctx.Err() != nil
}

func (c *ChainIndexer) loop(ctx context.Context) {
	defer func() {
		c.transition(StateStopped, "loop exited")
		c.running.Store(false)
	}()

	if err := c.resolveStart(ctx); err != nil {
		c.log.Error("Cannot start indexing", "error", err)
		return
	}
	c.transition(StateRunning, "start block resolved")
	c.log.Info("Indexer started",
		"deploy_block", c.deployBlock,
		"start_block", c.cfg.StartBlock,
		"crawling_start", c.crawlingStart,
		"chunk_size", c.chunk.Nominal(),
	)

	for !c.shouldStop(ctx) {
		if !c.processing.CompareAndSwap(false, true) {
			c.log.Debug("Processing already in progress, waiting")
			c.sleep(ctx, time.Second)
			continue
		}
		err := c.iterate(ctx)
		c.processing.Store(false)

		if err == nil {
			c.failures.Reset()
			continue
		}
		if c.shouldStop(ctx) {
			break
		}
		category, delay, _ := c.failures.HandleFailure(err)
		if category == recovery.CategoryFatal {
			c.log.Error("Indexing stopped on fatal error", "error", err)
			return
		}
		c.log.Error("Indexing iteration failed",
			"error", err,
			"category", category,
			"attempt", c.failures.Attempts(),
			"retry_in", delay,
		)
		c.sleep(ctx, delay)
	}
}

// resolveStart computes the crawling start block. The development chain
// always has a start block of 0.
func (c *ChainIndexer) resolveStart(ctx context.Context) error {
	switch {
	case c.cfg.DeployBlock != nil:
		c.deployBlock = *c.cfg.DeployBlock
	case c.cfg.ChainID == domain.ChainIDDevelopment:
		c.log.Warn("No deployment block for local network, starting from block 0")
		c.deployBlock = 0
	default:
		_, ok, err := c.cfg.Checkpoints.Get(ctx, c.cfg.ChainID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoStartBlock
		}
	}

	c.crawlingStart = c.deployBlock
	if c.cfg.StartBlock > c.deployBlock {
		c.crawlingStart = c.cfg.StartBlock
	}
	return nil
}

// iterate runs one crawl step followed by reindex work.
func (c *ChainIndexer) iterate(ctx context.Context) error {
	last, hasCheckpoint, err := c.cfg.Checkpoints.Get(ctx, c.cfg.ChainID)
	if err != nil {
		return err
	}
	start := c.crawlingStart
	if hasCheckpoint && last > start {
		start = last
	}

	height, err := c.fetcher.Height(ctx)
	if err != nil {
		return err
	}
	c.height.Store(height)

	current := start
	if height > start {
		if c.started.CompareAndSwap(false, true) {
			c.emit(ctx, domain.NotifyCrawlingStarted, domain.CrawlingStarted{StartBlock: start, NetworkHeight: height})
		}

		current, err = c.crawl(ctx, start, height)
		if err != nil {
			return err
		}
	} else {
		c.log.Debug("Waiting for new blocks", "start_block", start, "network_height", height)
		c.sleep(ctx, c.cfg.PollInterval)
	}

	c.drainReindexQueue(ctx)
	c.applyChainReindex(ctx, current)
	return nil
}

// crawl fetches and processes the next chunk after start, returning the
// block the chain is indexed up to afterwards.
func (c *ChainIndexer) crawl(ctx context.Context, start, height uint64) (uint64, error) {
	count := min(uint64(c.chunk.Size()), height-start)

	records, err := c.fetcher.FetchLogs(ctx, start, count)
	if err != nil {
		size := c.chunk.OnFailure()
		c.log.Warn("Failed to get events, reducing chunk size",
			"from", start+1,
			"to", start+count,
			"chunk_size", size,
			"error", err,
		)
		return start, err
	}
	c.chunk.OnSuccess()

	lastBlock := start + count
	c.log.Debug("Processing blocks", "from", start+1, "to", lastBlock, "logs", len(records))

	results, err := c.process(ctx, records)
	if err != nil {
		c.log.Error("Processing events failed, retrying chunk", "from", start+1, "to", lastBlock, "error", err)
		c.sleep(ctx, c.cfg.PollInterval)
		return start, nil
	}

	stored, err := c.cfg.Checkpoints.Set(ctx, c.cfg.ChainID, lastBlock, false)
	if errors.Is(err, checkpoint.ErrRegression) {
		c.log.Error("Newest block is lower than the stored checkpoint", "block", lastBlock, "stored", stored)
		return start, nil
	}
	if err != nil {
		return start, fmt.Errorf("update checkpoint: %w", err)
	}

	chain := c.cfg.ChainID.Name()
	metrics.BlocksProcessed.WithLabelValues(chain).Add(float64(count))
	metrics.IndexerLatestBlock.WithLabelValues(chain).Set(float64(stored))
	c.log.Info("Indexed blocks", "last_indexed_block", stored, "network_height", height, "documents", len(results))

	c.emitResults(ctx, results)
	return stored, nil
}

type indexed struct {
	kind   domain.EventKind
	result *processor.Result
}

// process classifies records and runs each event through its processor.
// Rejected events are skipped; any other failure aborts the batch.
func (c *ChainIndexer) process(ctx context.Context, records []domain.EventRecord) ([]indexed, error) {
	events := c.cfg.Classifier.ClassifyAll(c.cfg.ChainID, records)

	var out []indexed
	for _, ev := range events {
		res, err := c.cfg.Processor.Process(ctx, ev)
		if err != nil {
			if processor.IsRejected(err) {
				continue
			}
			return nil, err
		}
		if res != nil {
			out = append(out, indexed{kind: ev.Kind, result: res})
		}
	}
	return out, nil
}

func (c *ChainIndexer) emitResults(ctx context.Context, results []indexed) {
	for _, r := range results {
		c.emit(ctx, domain.NotificationForEvent(r.kind), domain.DocumentIndexed{
			DID:   r.result.DID,
			TxID:  r.result.TxID,
			Block: r.result.Block,
		})
	}
}

func (c *ChainIndexer) emit(ctx context.Context, kind domain.NotificationKind, payload any) {
	n := domain.Notification{Kind: kind, ChainID: c.cfg.ChainID, Payload: payload}
	if err := c.cfg.Emitter.Emit(ctx, n); err != nil {
		c.log.Warn("Failed to emit notification", "kind", kind, "error", err)
	}
}
