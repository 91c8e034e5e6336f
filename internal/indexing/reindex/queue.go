package reindex

import (
	"context"
	"sync"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// TaskQueue holds the pending transaction reindex tasks of one chain.
// Producers may push from any goroutine; the chain loop is the only
// consumer.
type TaskQueue interface {
	// Push appends a task.
	Push(ctx context.Context, task domain.ReindexTask) error

	// Pop removes the oldest task. It returns nil when the queue is empty.
	Pop(ctx context.Context) (*domain.ReindexTask, error)

	// Len returns the number of queued tasks.
	Len(ctx context.Context) (int64, error)
}

// MemoryQueue is a mutex-protected FIFO.
type MemoryQueue struct {
	mu    sync.Mutex
	tasks []domain.ReindexTask
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(ctx context.Context, task domain.ReindexTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context) (*domain.ReindexTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return &task, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.tasks)), nil
}
