package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/classifier"
	"github.com/vietddude/ocean-indexer/internal/indexing/emitter"
	"github.com/vietddude/ocean-indexer/internal/indexing/processor"
	"github.com/vietddude/ocean-indexer/internal/indexing/recovery"
	"github.com/vietddude/ocean-indexer/internal/indexing/reindex"
	"github.com/vietddude/ocean-indexer/internal/indexing/throttle"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// ErrNoStartBlock stops a chain that has neither a deployment block nor a
// checkpoint to resume from.
var ErrNoStartBlock = fmt.Errorf("no deployment block and no checkpoint: %w", recovery.ErrFatal)

// ErrAlreadyRunning is returned by Start on a running indexer.
var ErrAlreadyRunning = errors.New("indexer already running")

// Indexer is the per-chain crawl loop
type Indexer interface {
	// Start launches the loop in the background
	Start(ctx context.Context) error

	// Stop requests a stop and waits for the current iteration to finish
	Stop(ctx context.Context) error

	// IsIndexing reports whether the loop is running
	IsIndexing() bool

	// AddReindexTask queues a transaction for reprocessing
	AddReindexTask(ctx context.Context, task domain.ReindexTask) (string, error)

	// TriggerReindexChain asks the loop to rewind the chain
	TriggerReindexChain(block *uint64)

	// Status returns current indexing status
	Status(ctx context.Context) Status
}

type Status struct {
	ChainID          domain.ChainID `json:"chainId"`
	Network          string         `json:"network"`
	State            State          `json:"state"`
	LastIndexedBlock uint64         `json:"lastIndexedBlock"`
	NetworkHeight    uint64         `json:"networkHeight"`
	Lag              int64          `json:"lag"`
	ChunkSize        int            `json:"chunkSize"`
	BlocksPerSecond  float64        `json:"blocksPerSecond"`
	QueueLength      int64          `json:"reindexQueueLength"`
	PendingReindex   bool           `json:"pendingChainReindex"`
	CrawlingStarted  bool           `json:"crawlingStarted"`
	LastError        string         `json:"lastError,omitempty"`
}

// EventProcessor turns a classified event into a stored document.
type EventProcessor interface {
	Process(ctx context.Context, ev domain.Event) (*processor.Result, error)
}

// Config holds indexer configuration
type Config struct {
	ChainID     domain.ChainID
	Client      chain.Client
	Checkpoints checkpoint.Store
	Documents   storage.DDORepository
	Processor   EventProcessor
	Classifier  *classifier.Classifier
	Reindex     *reindex.Coordinator
	Emitter     emitter.Emitter

	// DeployBlock is the block the Ocean contracts were deployed at. Nil
	// means unknown.
	DeployBlock *uint64

	// StartBlock overrides the deployment block when it is higher.
	StartBlock uint64

	PollInterval time.Duration
	Chunk        throttle.ChunkConfig

	// Backoff paces retries after a failed iteration. Nil uses an
	// exponential backoff starting at PollInterval.
	Backoff recovery.RetryStrategy

	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Classifier == nil {
		c.Classifier = classifier.New()
	}
	if c.Reindex == nil {
		c.Reindex = reindex.NewCoordinator(c.ChainID, nil, c.Logger)
	}
	if c.Emitter == nil {
		c.Emitter = emitter.Nop{}
	}
	if c.Backoff == nil {
		c.Backoff = &recovery.ExponentialBackoff{
			InitialDelay: c.PollInterval,
			MaxDelay:     10 * c.PollInterval,
			Classifier:   recovery.Classify,
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
