package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// MemoryStorage keeps every repository in process memory. It is used when no
// database is configured and by tests.
type MemoryStorage struct {
	checkpoints map[domain.ChainID]*domain.Checkpoint
	ddos        map[string]*domain.DDO
	states      map[string]*domain.DDOState
	orders      map[string]*domain.Order
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		checkpoints: make(map[domain.ChainID]*domain.Checkpoint),
		ddos:        make(map[string]*domain.DDO),
		states:      make(map[string]*domain.DDOState),
		orders:      make(map[string]*domain.Order),
	}
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Get(ctx context.Context, chainID domain.ChainID) (*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cp, ok := r.store.checkpoints[chainID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *cp
	return &c, nil
}

func (r *CheckpointRepo) CompareAndSet(ctx context.Context, chainID domain.ChainID, block uint64) (uint64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if cp, ok := r.store.checkpoints[chainID]; ok && cp.Block > block {
		return cp.Block, storage.ErrStaleCheckpoint
	}
	r.store.checkpoints[chainID] = &domain.Checkpoint{ChainID: chainID, Block: block, UpdatedAt: time.Now()}
	return block, nil
}

func (r *CheckpointRepo) Put(ctx context.Context, chainID domain.ChainID, block uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.checkpoints[chainID] = &domain.Checkpoint{ChainID: chainID, Block: block, UpdatedAt: time.Now()}
	return nil
}

// -----------------------------------------------------------------------------
// DDO Repository
// -----------------------------------------------------------------------------

type DDORepo struct {
	store *MemoryStorage
}

func NewDDORepo(store *MemoryStorage) *DDORepo {
	return &DDORepo{store: store}
}

func (r *DDORepo) Retrieve(ctx context.Context, did string) (*domain.DDO, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, ok := r.store.ddos[did]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d.Clone(), nil
}

func (r *DDORepo) Create(ctx context.Context, ddo *domain.DDO) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id := ddo.ID()
	if _, ok := r.store.ddos[id]; ok {
		return fmt.Errorf("ddo %s already exists", id)
	}
	r.store.ddos[id] = ddo.Clone()
	return nil
}

func (r *DDORepo) Update(ctx context.Context, ddo *domain.DDO) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id := ddo.ID()
	if _, ok := r.store.ddos[id]; !ok {
		return storage.ErrNotFound
	}
	r.store.ddos[id] = ddo.Clone()
	return nil
}

func (r *DDORepo) Delete(ctx context.Context, did string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.ddos, did)
	return nil
}

func (r *DDORepo) DeleteAllByChain(ctx context.Context, chainID domain.ChainID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, d := range r.store.ddos {
		if d.ChainID() == chainID {
			delete(r.store.ddos, id)
			n++
		}
	}
	return n, nil
}

func (r *DDORepo) CountByChain(ctx context.Context, chainID domain.ChainID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int64
	for _, d := range r.store.ddos {
		if d.ChainID() == chainID {
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// DDO State Repository
// -----------------------------------------------------------------------------

type DDOStateRepo struct {
	store *MemoryStorage
}

func NewDDOStateRepo(store *MemoryStorage) *DDOStateRepo {
	return &DDOStateRepo{store: store}
}

func (r *DDOStateRepo) Upsert(ctx context.Context, state *domain.DDOState) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s := *state
	r.store.states[state.DID] = &s
	return nil
}

func (r *DDOStateRepo) Get(ctx context.Context, did string) (*domain.DDOState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.states[did]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *DDOStateRepo) Delete(ctx context.Context, did string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.states, did)
	return nil
}

// -----------------------------------------------------------------------------
// Order Repository
// -----------------------------------------------------------------------------

type OrderRepo struct {
	store *MemoryStorage
}

func NewOrderRepo(store *MemoryStorage) *OrderRepo {
	return &OrderRepo{store: store}
}

func (r *OrderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o := *order
	r.store.orders[order.ID] = &o
	return nil
}

func (r *OrderRepo) CreateWithDocument(ctx context.Context, order *domain.Order, ddo *domain.DDO) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id := ddo.ID()
	if _, ok := r.store.ddos[id]; !ok {
		return storage.ErrNotFound
	}
	r.store.ddos[id] = ddo.Clone()
	o := *order
	r.store.orders[order.ID] = &o
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	o, ok := r.store.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *o
	return &c, nil
}
