package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/config"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
	"github.com/vietddude/ocean-indexer/internal/infra/storage/memory"
	"github.com/vietddude/ocean-indexer/internal/infra/storage/postgres"
)

// stores are the repositories shared by every chain.
type stores struct {
	db          *postgres.DB
	checkpoints *checkpoint.Manager
	ddos        storage.DDORepository
	states      storage.DDOStateRepository
	orders      storage.OrderRepository
}

// openStores uses PostgreSQL when a database url is configured and process
// memory otherwise.
func openStores(ctx context.Context, app *config.AppConfig) (*stores, error) {
	if app.Database.URL == "" {
		slog.Info("Using Memory storage")
		store := memory.NewMemoryStorage()
		return &stores{
			checkpoints: checkpoint.NewManager(memory.NewCheckpointRepo(store)),
			ddos:        memory.NewDDORepo(store),
			states:      memory.NewDDOStateRepo(store),
			orders:      memory.NewOrderRepo(store),
		}, nil
	}

	db, err := postgres.NewDB(ctx, app.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("Using PostgreSQL storage")
	return &stores{
		db:          db,
		checkpoints: checkpoint.NewManager(postgres.NewCheckpointRepo(db)),
		ddos:        postgres.NewDDORepo(db),
		states:      postgres.NewDDOStateRepo(db),
		orders:      postgres.NewOrderRepo(db),
	}, nil
}

func (s *stores) close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenCheckpoints opens only the checkpoint store, for maintenance commands.
// The returned func releases the storage.
func OpenCheckpoints(ctx context.Context, app *config.AppConfig) (checkpoint.Store, func() error, error) {
	s, err := openStores(ctx, app)
	if err != nil {
		return nil, nil, err
	}
	return s.checkpoints, s.close, nil
}
