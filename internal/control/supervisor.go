// Package control wires the chain indexers of a node and owns their
// lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/config"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/emitter"
	"github.com/vietddude/ocean-indexer/internal/indexing/health"
	"github.com/vietddude/ocean-indexer/internal/indexing/indexer"
	"github.com/vietddude/ocean-indexer/internal/indexing/processor"
	"github.com/vietddude/ocean-indexer/internal/indexing/reindex"
	"github.com/vietddude/ocean-indexer/internal/indexing/throttle"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
	"github.com/vietddude/ocean-indexer/internal/infra/chain/evm"
	redisclient "github.com/vietddude/ocean-indexer/internal/infra/redis"
)

// Dialer opens the RPC client of a chain.
type Dialer func(ctx context.Context, cfg config.ChainConfig) (chain.Client, error)

// DialEVM is the default Dialer.
func DialEVM(ctx context.Context, cfg config.ChainConfig) (chain.Client, error) {
	return evm.Dial(ctx, cfg.ChainID, cfg.RPCs, cfg.RPCTimeout)
}

// Config holds the supervisor configuration.
type Config struct {
	App *config.AppConfig

	// Dial defaults to DialEVM.
	Dial Dialer

	// Contracts builds the contract reader of a chain. Nil uses the
	// ABI-encoded eth_call reader over the chain client.
	Contracts func(client chain.Client) chain.ContractReader

	// DisableHTTP skips the health and admin server.
	DisableHTTP bool
}

// Supervisor builds every chain indexer of the node, starts and stops them,
// and serves the admin surface.
type Supervisor struct {
	cfg       Config
	indexers  map[domain.ChainID]*indexer.ChainIndexer
	clients   []chain.Client
	storage   *stores
	redis     *redisclient.Client
	bus       *emitter.Bus
	jobs      *JobTracker
	purgatory *processor.Purgatory
	server    *health.Server
	log       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ health.Admin = (*Supervisor)(nil)

// NewSupervisor creates the storage, the chain clients and one indexer per
// configured chain.
func NewSupervisor(ctx context.Context, cfg Config) (*Supervisor, error) {
	if cfg.App == nil {
		return nil, errors.New("missing application config")
	}
	if cfg.Dial == nil {
		cfg.Dial = DialEVM
	}
	if cfg.Contracts == nil {
		cfg.Contracts = func(client chain.Client) chain.ContractReader { return evm.NewContracts(client) }
	}
	app := cfg.App

	s := &Supervisor{
		cfg:      cfg,
		indexers: make(map[domain.ChainID]*indexer.ChainIndexer),
		bus:      emitter.NewBus(emitter.DefaultBufferSize, nil),
		jobs:     NewJobTracker(),
		log:      slog.Default().With("component", "supervisor"),
	}

	var err error
	s.storage, err = openStores(ctx, app)
	if err != nil {
		return nil, err
	}

	if app.Redis.URL != "" {
		s.redis, err = redisclient.NewClient(app.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, reindex queues stay in memory", "error", err)
		}
	}

	httpClient := &http.Client{Timeout: app.Indexer.HTTPTimeout}
	s.purgatory = processor.NewPurgatory(app.Indexer.AssetPurgatoryURL, app.Indexer.AccountPurgatory, httpClient, nil)

	var policy processor.PolicyChecker = processor.AllowAll{}
	if app.Indexer.PolicyServerURL != "" {
		policy = processor.NewPolicyServer(app.Indexer.PolicyServerURL, httpClient)
	}

	decrypter := &processor.Decryptors{NodeID: app.Indexer.NodeID}
	if app.Indexer.PrivateKey != "" {
		signer, err := processor.NewKeySigner(app.Indexer.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		decrypter.HTTP = processor.NewHTTPDecrypter(signer, nil)
	} else {
		s.log.Warn("No private key configured, encrypted documents will be rejected")
	}

	for _, ch := range app.Chains {
		client, err := cfg.Dial(ctx, ch)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("chain %d: %w", ch.ChainID, err)
		}
		s.clients = append(s.clients, client)

		log := slog.Default()
		var queue reindex.TaskQueue
		if s.redis != nil {
			queue = s.redis.ReindexQueue(ch.ChainID)
		}

		registry := processor.NewRegistry(processor.Deps{
			ChainID: ch.ChainID,
			Config: processor.Config{
				FactoryAddress:       ch.FactoryAddress,
				RouterAddress:        ch.RouterAddress,
				AuthorizedPublishers: app.Indexer.AuthorizedPublishers,
				AccessLists:          ch.AccessLists,
			},
			Contracts: cfg.Contracts(client),
			DDOs:      s.storage.ddos,
			States:    s.storage.states,
			Orders:    s.storage.orders,
			Decrypter: decrypter,
			Policy:    policy,
			Purgatory: s.purgatory,
			Logger:    log,
		})

		s.indexers[ch.ChainID] = indexer.NewChainIndexer(indexer.Config{
			ChainID:      ch.ChainID,
			Client:       client,
			Checkpoints:  s.storage.checkpoints,
			Documents:    s.storage.ddos,
			Processor:    registry,
			Reindex:      reindex.NewCoordinator(ch.ChainID, queue, log),
			Emitter:      s.bus,
			DeployBlock:  ch.DeployBlock,
			StartBlock:   ch.StartBlock,
			PollInterval: app.Indexer.Interval,
			Chunk: throttle.ChunkConfig{
				NominalSize:  ch.ChunkSize,
				RecoverAfter: app.Indexer.RecoverAfter,
			},
			Logger: log,
		})
		s.log.Info("Chain configured", "chain", ch.ChainID.Name(), "rpcs", len(ch.RPCs), "chunk_size", ch.ChunkSize)
	}

	if !cfg.DisableHTTP {
		monitor := health.NewMonitor(s, health.DefaultThresholds())
		s.server = health.NewServer(monitor, s, app.Server.Port, nil)
	}
	return s, nil
}

// Start launches background workers and every chain indexer.
func (s *Supervisor) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	all, unsubscribeAll := s.bus.Subscribe()
	s.goRun(func() {
		defer unsubscribeAll()
		emitter.LogSink(runCtx, all, slog.Default().With("component", "notifications"))
	})
	pops, unsubscribePops := s.bus.Subscribe(domain.NotifyReindexQueuePop)
	s.goRun(func() {
		defer unsubscribePops()
		s.jobs.Run(runCtx, pops)
	})
	s.goRun(func() { s.purgatory.Run(runCtx, s.cfg.App.Indexer.PurgatoryInterval) })
	if s.storage.db != nil {
		s.storage.db.StartMetricsCollector(runCtx)
	}
	if s.server != nil {
		go func() {
			if err := s.server.Start(); err != nil {
				s.log.Error("HTTP server failed", "error", err)
			}
		}()
	}

	var g errgroup.Group
	for id, idx := range s.indexers {
		s.log.Info("Starting indexer", "chain", id.Name())
		g.Go(func() error {
			if err := idx.Start(runCtx); err != nil {
				return fmt.Errorf("chain %s: %w", id.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop stops every indexer, waits for their loops and closes resources.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.log.Info("Stopping indexers...")

	var g errgroup.Group
	for id, idx := range s.indexers {
		g.Go(func() error {
			if err := idx.Stop(ctx); err != nil {
				return fmt.Errorf("chain %s: %w", id.Name(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	_ = s.bus.Close()
	s.wg.Wait()

	if s.server != nil {
		if serr := s.server.Stop(ctx); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	s.closeClients()
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			s.log.Warn("Failed to close Redis", "error", rerr)
		}
	}
	if cerr := s.storage.close(); cerr != nil {
		s.log.Warn("Failed to close database", "error", cerr)
	}
	return err
}

func (s *Supervisor) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Supervisor) closeClients() {
	for _, c := range s.clients {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	s.clients = nil
}

// Indexer returns the indexer of a chain.
func (s *Supervisor) Indexer(chainID domain.ChainID) (indexer.Indexer, bool) {
	idx, ok := s.indexers[chainID]
	return idx, ok
}

// Checkpoints exposes the shared checkpoint store.
func (s *Supervisor) Checkpoints() checkpoint.Store {
	return s.storage.checkpoints
}

// Statuses returns the status of every chain, ordered by chain id.
func (s *Supervisor) Statuses(ctx context.Context) []indexer.Status {
	out := make([]indexer.Status, 0, len(s.indexers))
	for _, idx := range s.indexers {
		out = append(out, idx.Status(ctx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

func (s *Supervisor) AddReindexTask(ctx context.Context, chainID domain.ChainID, txID string, eventIndex *int) (string, error) {
	idx, ok := s.indexers[chainID]
	if !ok {
		return "", fmt.Errorf("chain %d: %w", chainID, domain.ErrUnknownChain)
	}
	jobID, err := idx.AddReindexTask(ctx, domain.ReindexTask{TxID: txID, EventIndex: eventIndex})
	if err != nil {
		return "", err
	}
	s.jobs.Track(jobID, chainID, txID)
	return jobID, nil
}

func (s *Supervisor) TriggerReindexChain(chainID domain.ChainID, block *uint64) error {
	idx, ok := s.indexers[chainID]
	if !ok {
		return fmt.Errorf("chain %d: %w", chainID, domain.ErrUnknownChain)
	}
	idx.TriggerReindexChain(block)
	return nil
}

func (s *Supervisor) Job(id string) (domain.Job, bool) {
	return s.jobs.Get(id)
}

func (s *Supervisor) Subscribe(kinds ...domain.NotificationKind) (<-chan domain.Notification, func()) {
	return s.bus.Subscribe(kinds...)
}
