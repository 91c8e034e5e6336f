package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// DDORepo implements storage.DDORepository using PostgreSQL.
type DDORepo struct {
	db *DB
}

// NewDDORepo creates a new PostgreSQL document repository.
func NewDDORepo(db *DB) *DDORepo {
	return &DDORepo{db: db}
}

// Retrieve returns the document with the given DID.
func (r *DDORepo) Retrieve(ctx context.Context, did string) (*domain.DDO, error) {
	var doc []byte
	err := r.db.GetContext(ctx, &doc, `SELECT document FROM ddos WHERE id = $1`, did)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve ddo: %w", err)
	}
	return domain.ParseDDO(doc)
}

// Create inserts a document.
func (r *DDORepo) Create(ctx context.Context, ddo *domain.DDO) error {
	err := r.db.withUnitOfWork(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ddos (id, chain_id, nft_address, document, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, ddo.ID(), int64(ddo.ChainID()), ddo.NFTAddress(), ddo.Bytes())
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("ddo %s already exists: %w", ddo.ID(), err)
	}
	if err != nil {
		return fmt.Errorf("failed to create ddo: %w", err)
	}
	metrics.DocumentsWritten.WithLabelValues(ddo.ChainID().Name(), "create").Inc()
	return nil
}

// Update replaces a stored document.
func (r *DDORepo) Update(ctx context.Context, ddo *domain.DDO) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ddos SET chain_id = $2, nft_address = $3, document = $4, updated_at = NOW()
		WHERE id = $1
	`, ddo.ID(), int64(ddo.ChainID()), ddo.NFTAddress(), ddo.Bytes())
	if err != nil {
		return fmt.Errorf("failed to update ddo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	metrics.DocumentsWritten.WithLabelValues(ddo.ChainID().Name(), "update").Inc()
	return nil
}

// Delete removes a document.
func (r *DDORepo) Delete(ctx context.Context, did string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ddos WHERE id = $1`, did); err != nil {
		return fmt.Errorf("failed to delete ddo: %w", err)
	}
	return nil
}

// DeleteAllByChain removes every document and processing state of a chain
// in one transaction.
func (r *DDORepo) DeleteAllByChain(ctx context.Context, chainID domain.ChainID) (int64, error) {
	var deleted int64
	err := r.db.withUnitOfWork(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM ddos WHERE chain_id = $1`, int64(chainID))
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		_, err = tx.ExecContext(ctx, `DELETE FROM ddo_states WHERE chain_id = $1`, int64(chainID))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete ddos of chain %d: %w", chainID, err)
	}
	return deleted, nil
}

// CountByChain returns the number of documents of a chain.
func (r *DDORepo) CountByChain(ctx context.Context, chainID domain.ChainID) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ddos WHERE chain_id = $1`, int64(chainID)); err != nil {
		return 0, fmt.Errorf("failed to count ddos: %w", err)
	}
	return n, nil
}
