package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// DDOStateRepo implements storage.DDOStateRepository using PostgreSQL.
type DDOStateRepo struct {
	db *DB
}

func NewDDOStateRepo(db *DB) *DDOStateRepo {
	return &DDOStateRepo{db: db}
}

func (r *DDOStateRepo) Upsert(ctx context.Context, state *domain.DDOState) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ddo_states (did, chain_id, nft_address, tx_id, valid, error, updated_at)
		VALUES (:did, :chain_id, :nft_address, :tx_id, :valid, :error, NOW())
		ON CONFLICT (did) DO UPDATE SET
			chain_id = EXCLUDED.chain_id,
			nft_address = EXCLUDED.nft_address,
			tx_id = EXCLUDED.tx_id,
			valid = EXCLUDED.valid,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`, state)
	if err != nil {
		return fmt.Errorf("failed to upsert ddo state: %w", err)
	}
	return nil
}

func (r *DDOStateRepo) Get(ctx context.Context, did string) (*domain.DDOState, error) {
	var s domain.DDOState
	err := r.db.GetContext(ctx, &s, `
		SELECT did, chain_id, nft_address, tx_id, valid, error FROM ddo_states WHERE did = $1
	`, did)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ddo state: %w", err)
	}
	return &s, nil
}

func (r *DDOStateRepo) Delete(ctx context.Context, did string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ddo_states WHERE did = $1`, did)
	return err
}
