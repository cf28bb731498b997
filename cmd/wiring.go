package cmd

import (
	"context"
	"fmt"

	"service-catalog/core/config"
	"service-catalog/core/database"
	"service-catalog/core/reconcile"
	"service-catalog/core/resilient"
	"service-catalog/core/storage"
	"service-catalog/feature/catalog"
	"service-catalog/feature/catalog/repository"
	"service-catalog/feature/catalog/targets"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// buildCatalog wires the catalog service from cfg. A failed initial
// database connection is logged and retried lazily by the client.
func buildCatalog(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*catalog.Service, *resilient.Client, error) {
	connector := func(ctx context.Context) (*gorm.DB, error) {
		return database.ConnectContext(ctx, cfg.Database)
	}

	db, err := connector(ctx)
	if err != nil {
		logg.Warn("Initial database connection failed", zap.Error(err))
	} else {
		logg.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
	}

	client := resilient.NewClient(db, connector, cfg.Retry.Policy(), logg)
	repo := repository.New(client, logg)
	if db != nil {
		if err := repo.Prepare(ctx); err != nil {
			logg.Warn("Schema preparation failed", zap.Error(err))
		}
	}

	snapshot, err := snapshotBackend(ctx, cfg)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	ts := catalog.Targets{
		reconcile.KindDatabase: targets.NewDatabaseTarget(repo),
		reconcile.KindSnapshot: targets.NewSnapshotTarget(snapshot, logg),
	}
	if cfg.Remote.Enabled {
		ts[reconcile.KindRemote] = targets.NewRemoteTarget(cfg.Remote, cfg.Retry.Policy(), logg)
	}

	sources := catalog.FileSources(afero.NewOsFs(), cfg.Catalog.DefinitionsPath)
	return catalog.NewService(repo, ts, sources, logg), client, nil
}

func snapshotBackend(ctx context.Context, cfg *config.Config) (targets.Backend, error) {
	switch cfg.Snapshot.Backend {
	case targets.BackendStorage:
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", cfg.Storage.Bucket, err)
		}
		return targets.NewObjectBackend(store, cfg.Storage.Bucket, cfg.Snapshot.Object), nil
	default:
		return targets.NewFileBackend(afero.NewOsFs(), cfg.Snapshot.Path), nil
	}
}
