package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/booklog-timeline/internal/config"
	"github.com/example/booklog-timeline/internal/infrastructure/store"
	"github.com/example/booklog-timeline/internal/platform/logger"
)

// Stores holds the authoritative library and the timeline snapshot table for
// the configured storage driver.
type Stores struct {
	Library  store.LibraryStore
	Timeline store.TimelineStore
	db       *sql.DB
}

func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	var (
		db      *sql.DB
		dialect store.Dialect
		err     error
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn("using in-memory storage; data is lost on exit")
		return &Stores{
			Library:  store.NewLibraryMemStore(),
			Timeline: store.NewReadStore(log),
		}, nil
	case config.StoragePostgres:
		dialect = store.DialectPostgres
		db, err = store.ConnectPostgres(cfg.DatabaseURL)
	case config.StorageSQLite:
		dialect = store.DialectSQLite
		db, err = store.OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorage, cfg.StorageDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if err := store.EnsureSchema(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	log.Info("storage ready", "driver", dialect.String())

	return &Stores{
		Library:  store.NewSQLLibraryStore(db, dialect),
		Timeline: store.NewSQLTimelineStore(db, dialect, log),
		db:       db,
	}, nil
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
