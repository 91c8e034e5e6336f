package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// OrderRepo implements storage.OrderRepository using PostgreSQL.
type OrderRepo struct {
	db *DB
}

func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const insertOrder = `
	INSERT INTO orders (id, type, chain_id, timestamp, consumer, payer,
		datatoken_address, nft_address, did, start_order_id)
	VALUES (:id, :type, :chain_id, :timestamp, :consumer, :payer,
		:datatoken_address, :nft_address, :did, :start_order_id)
	ON CONFLICT (id) DO UPDATE SET
		type = EXCLUDED.type,
		timestamp = EXCLUDED.timestamp,
		consumer = EXCLUDED.consumer,
		payer = EXCLUDED.payer,
		start_order_id = EXCLUDED.start_order_id
`

// Create inserts an order. Replayed orders overwrite the previous record.
func (r *OrderRepo) Create(ctx context.Context, order *domain.Order) error {
	if _, err := r.db.NamedExecContext(ctx, insertOrder, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// CreateWithDocument stores the order and the document it updated in one
// transaction.
func (r *OrderRepo) CreateWithDocument(ctx context.Context, order *domain.Order, ddo *domain.DDO) error {
	err := r.db.withUnitOfWork(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ddos SET chain_id = $2, nft_address = $3, document = $4, updated_at = NOW()
			WHERE id = $1
		`, ddo.ID(), int64(ddo.ChainID()), ddo.NFTAddress(), ddo.Bytes())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return storage.ErrNotFound
		}
		_, err = tx.NamedExecContext(ctx, insertOrder, order)
		return err
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to create order with document: %w", err)
	}
	return err
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.GetContext(ctx, &o, `
		SELECT id, type, chain_id, timestamp, consumer, payer,
			datatoken_address, nft_address, did, start_order_id
		FROM orders WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}
