package reindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage/memory"
)

const chain = domain.ChainIDDevelopment

func ptr(v uint64) *uint64 { return &v }

func TestCoordinator_TaskQueueIsFIFO(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(chain, nil, nil)

	id1, err := c.AddTask(ctx, domain.ReindexTask{TxID: "0x1"})
	require.NoError(t, err)
	id2, err := c.AddTask(ctx, domain.ReindexTask{TxID: "0x2", JobID: "job-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, id1)
	assert.Equal(t, "job-2", id2)
	assert.Equal(t, int64(2), c.Len(ctx))

	task, err := c.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x1", task.TxID)
	assert.Equal(t, chain, task.ChainID)

	require.NoError(t, c.Requeue(ctx, *task))
	task, _ = c.Pop(ctx)
	assert.Equal(t, "0x2", task.TxID)
	task, _ = c.Pop(ctx)
	assert.Equal(t, "0x1", task.TxID)

	task, err = c.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestCoordinator_PendingChain(t *testing.T) {
	c := NewCoordinator(chain, nil, nil)

	_, ok := c.TakePendingChain()
	assert.False(t, ok)

	c.TriggerChain(ptr(10))
	c.TriggerChain(ptr(50))
	assert.True(t, c.HasPendingChain())

	block, ok := c.TakePendingChain()
	require.True(t, ok)
	assert.Equal(t, uint64(50), *block)

	_, ok = c.TakePendingChain()
	assert.False(t, ok)

	c.TriggerChain(nil)
	block, ok = c.TakePendingChain()
	assert.True(t, ok)
	assert.Nil(t, block)
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name     string
		explicit *uint64
		start    uint64
		deploy   uint64
		want     uint64
	}{
		{"explicit above deploy", ptr(50), 0, 10, 50},
		{"explicit below deploy uses start", ptr(5), 20, 10, 20},
		{"no explicit uses start", nil, 20, 10, 20},
		{"start below deploy", nil, 5, 10, 10},
		{"explicit equal deploy", ptr(10), 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Target(tt.explicit, tt.start, tt.deploy))
		})
	}
}

// failingDocs fails DeleteAllByChain.
type failingDocs struct {
	*memory.DDORepo
}

func (failingDocs) DeleteAllByChain(context.Context, domain.ChainID) (int64, error) {
	return 0, errors.New("database unavailable")
}

func TestRewinder_Rewind(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	cps := checkpoint.NewManager(memory.NewCheckpointRepo(store))
	docs := memory.NewDDORepo(store)

	_, err := cps.Set(ctx, chain, 200, false)
	require.NoError(t, err)
	doc, err := domain.ParseDDO([]byte(`{"id":"did:op:1","chainId":8996}`))
	require.NoError(t, err)
	require.NoError(t, docs.Create(ctx, doc))

	r := &Rewinder{Checkpoints: cps, Documents: docs}
	require.NoError(t, r.Rewind(ctx, chain, 50, 300))

	block, _, _ := cps.Get(ctx, chain)
	assert.Equal(t, uint64(50), block)
	n, _ := docs.CountByChain(ctx, chain)
	assert.Equal(t, int64(0), n)
}

func TestRewinder_BeyondHeight(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	cps := checkpoint.NewManager(memory.NewCheckpointRepo(store))
	_, _ = cps.Set(ctx, chain, 200, false)

	r := &Rewinder{Checkpoints: cps, Documents: memory.NewDDORepo(store)}
	err := r.Rewind(ctx, chain, 400, 300)
	assert.ErrorIs(t, err, ErrTargetBeyondHeight)

	block, _, _ := cps.Get(ctx, chain)
	assert.Equal(t, uint64(200), block)
}

func TestRewinder_RestoresCheckpointOnDeleteFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	cps := checkpoint.NewManager(memory.NewCheckpointRepo(store))
	_, _ = cps.Set(ctx, chain, 200, false)

	r := &Rewinder{Checkpoints: cps, Documents: failingDocs{memory.NewDDORepo(store)}}
	err := r.Rewind(ctx, chain, 50, 300)
	require.Error(t, err)

	block, _, _ := cps.Get(ctx, chain)
	assert.Equal(t, uint64(200), block)
}
