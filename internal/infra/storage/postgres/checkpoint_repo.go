package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

type checkpointRow struct {
	ChainID   int64     `db:"chain_id"`
	Block     int64     `db:"block"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Get retrieves the checkpoint of a chain.
func (r *CheckpointRepo) Get(ctx context.Context, chainID domain.ChainID) (*domain.Checkpoint, error) {
	var row checkpointRow
	err := r.db.GetContext(ctx, &row,
		`SELECT chain_id, block, updated_at FROM checkpoints WHERE chain_id = $1`, int64(chainID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	return &domain.Checkpoint{
		ChainID:   domain.ChainID(row.ChainID),
		Block:     uint64(row.Block),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// CompareAndSet stores block unless the stored block is higher. The guard is
// evaluated by the upsert itself so concurrent writers cannot regress it.
func (r *CheckpointRepo) CompareAndSet(
	ctx context.Context,
	chainID domain.ChainID,
	block uint64,
) (uint64, error) {
	query := `
		INSERT INTO checkpoints (chain_id, block, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chain_id) DO UPDATE
		SET block = EXCLUDED.block, updated_at = EXCLUDED.updated_at
		WHERE checkpoints.block <= EXCLUDED.block
		RETURNING block
	`
	var stored int64
	err := r.db.QueryRowxContext(ctx, query, int64(chainID), int64(block)).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		cur, getErr := r.Get(ctx, chainID)
		if getErr != nil {
			return 0, getErr
		}
		return cur.Block, storage.ErrStaleCheckpoint
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update checkpoint: %w", err)
	}
	return uint64(stored), nil
}

// Put stores block unconditionally.
func (r *CheckpointRepo) Put(ctx context.Context, chainID domain.ChainID, block uint64) error {
	query := `
		INSERT INTO checkpoints (chain_id, block, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chain_id) DO UPDATE
		SET block = EXCLUDED.block, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, int64(chainID), int64(block)); err != nil {
		return fmt.Errorf("failed to put checkpoint: %w", err)
	}
	return nil
}
