package control

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// JobTracker keeps the status of admin reindex jobs. Jobs are marked done
// or failed when the chain loop reports them popped.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*domain.Job), now: time.Now}
}

// Track records a queued job.
func (t *JobTracker) Track(id string, chainID domain.ChainID, txID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.jobs[id] = &domain.Job{
		ID:        id,
		ChainID:   chainID,
		TxID:      txID,
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Get returns a copy of a job.
func (t *JobTracker) Get(id string) (domain.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

func (t *JobTracker) complete(pop domain.ReindexQueuePop) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[pop.JobID]
	if !ok {
		return
	}
	job.Status = domain.JobDone
	if !pop.Success {
		job.Status = domain.JobFailed
		job.Error = pop.Error
	}
	job.UpdatedAt = t.now()
}

// Run consumes REINDEX_QUEUE_POP notifications until ch is closed or ctx
// is done.
func (t *JobTracker) Run(ctx context.Context, ch <-chan domain.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if pop, ok := n.Payload.(domain.ReindexQueuePop); ok {
				t.complete(pop)
			}
		}
	}
}
