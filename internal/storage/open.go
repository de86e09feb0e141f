// Package storage opens the record and user stores selected by STORE_DRIVER.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/config"
	"github.com/ujpm/GGH-website-sub000/internal/db"
	"github.com/ujpm/GGH-website-sub000/internal/docstore"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/memstore"
)

type Stores struct {
	Driver string
	Calls  funding.Repository
	Users  auth.UserStore

	close func(context.Context) error
}

// Close releases the underlying connection, if any.
func (s *Stores) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the configured backend and brings its schema up to date:
// SQL migrations for postgres, index reconciliation for mongo.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.ApplyMigrations(cfg.DatabaseURL, logger); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return &Stores{
			Driver: cfg.StoreDriver,
			Calls:  db.NewFundingStore(pool),
			Users:  db.NewUserStore(pool),
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMongo:
		client, err := docstore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		name := cfg.MongoDatabase
		if name == "" {
			name = docstore.DefaultDatabase
		}
		database := client.Database(name)
		if err := docstore.EnsureIndexes(ctx, database, logger); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info("using mongo store", zap.String("database", name))
		return &Stores{
			Driver: cfg.StoreDriver,
			Calls:  docstore.NewFundingStore(database),
			Users:  docstore.NewUserStore(database),
			close:  client.Disconnect,
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return &Stores{
			Driver: cfg.StoreDriver,
			Calls:  memstore.NewFundingStore(),
			Users:  memstore.NewUserStore(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
