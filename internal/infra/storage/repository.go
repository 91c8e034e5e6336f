package storage

import (
	"context"
	"errors"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

var (
	// ErrNotFound is returned by repositories when no record matches.
	ErrNotFound = errors.New("record not found")

	// ErrStaleCheckpoint is returned by CheckpointRepository.CompareAndSet
	// when the stored block is already ahead of the requested one.
	ErrStaleCheckpoint = errors.New("stored checkpoint is ahead")
)

// CheckpointRepository persists the last indexed block of each chain.
type CheckpointRepository interface {
	// Get returns the checkpoint, or ErrNotFound.
	Get(ctx context.Context, chainID domain.ChainID) (*domain.Checkpoint, error)

	// CompareAndSet stores block only if it is not lower than the stored
	// block. It returns ErrStaleCheckpoint together with the stored value
	// when the write is refused.
	CompareAndSet(ctx context.Context, chainID domain.ChainID, block uint64) (uint64, error)

	// Put stores block unconditionally.
	Put(ctx context.Context, chainID domain.ChainID, block uint64) error
}

// DDORepository persists asset documents.
type DDORepository interface {
	// Retrieve returns the document with the given DID, or ErrNotFound.
	Retrieve(ctx context.Context, did string) (*domain.DDO, error)

	// Create inserts a document.
	Create(ctx context.Context, ddo *domain.DDO) error

	// Update replaces a stored document.
	Update(ctx context.Context, ddo *domain.DDO) error

	// Delete removes a document. Missing documents are not an error.
	Delete(ctx context.Context, did string) error

	// DeleteAllByChain removes every document of a chain.
	DeleteAllByChain(ctx context.Context, chainID domain.ChainID) (int64, error)

	// CountByChain returns the number of documents of a chain.
	CountByChain(ctx context.Context, chainID domain.ChainID) (int64, error)
}

// DDOStateRepository persists document processing outcomes.
type DDOStateRepository interface {
	// Upsert writes the state record for state.DID.
	Upsert(ctx context.Context, state *domain.DDOState) error

	// Get returns the state of a document, or ErrNotFound.
	Get(ctx context.Context, did string) (*domain.DDOState, error)

	// Delete removes the state of a document.
	Delete(ctx context.Context, did string) error
}

// OrderRepository persists order records.
type OrderRepository interface {
	// Create inserts an order keyed by its transaction hash.
	Create(ctx context.Context, order *domain.Order) error

	// Get returns an order, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Order, error)

	// CreateWithDocument inserts order and replaces the stored ddo as one
	// write. Neither is stored when either fails. A missing document
	// returns ErrNotFound.
	CreateWithDocument(ctx context.Context, order *domain.Order, ddo *domain.DDO) error
}
