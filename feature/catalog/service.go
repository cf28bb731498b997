package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"service-catalog/core/reconcile"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/normalize"
	catalogreconcile "service-catalog/feature/catalog/reconcile"
	"service-catalog/feature/catalog/repository"
	"service-catalog/feature/catalog/seed"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SourceFunc returns the source-of-truth definitions for a sync.
type SourceFunc func(ctx context.Context) ([]models.RawRecord, error)

// FileSources reads the definitions from a YAML file on every call.
func FileSources(fs afero.Fs, path string) SourceFunc {
	return func(ctx context.Context) ([]models.RawRecord, error) {
		return seed.Load(fs, path)
	}
}

// Targets maps target kinds to their stores.
type Targets map[reconcile.Kind]reconcile.Target[models.ServiceRecord]

// Service handles catalog operations.
type Service struct {
	repo        *repository.Repository
	targets     Targets
	sources     SourceFunc
	coordinator *reconcile.Coordinator[models.RawRecord, models.ServiceRecord]
	logger      *zap.Logger

	group singleflight.Group
	// mu serializes syncs with different options.
	mu sync.Mutex
}

// NewService creates a new catalog service.
func NewService(repo *repository.Repository, targets Targets, sources SourceFunc, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		targets:     targets,
		sources:     sources,
		coordinator: reconcile.NewCoordinator(catalogreconcile.NewSpec(), logger),
		logger:      logger,
	}
}

// List returns the consumer view of the stored records.
func (s *Service) List(ctx context.Context, f repository.Filter) ([]models.LegacyRecord, int64, error) {
	records, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.LegacyRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, normalize.ToLegacyFlat(rec))
	}
	return out, total, nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id uint) (*models.LegacyRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	legacy := normalize.ToLegacyFlat(*rec)
	return &legacy, nil
}

// Create stores a new record.
func (s *Service) Create(ctx context.Context, raw models.RawRecord) (*models.LegacyRecord, error) {
	rec, err := s.repo.Create(ctx, raw)
	if err != nil {
		return nil, err
	}
	legacy := normalize.ToLegacyFlat(*rec)
	return &legacy, nil
}

// Update patches a record.
func (s *Service) Update(ctx context.Context, id uint, p repository.Patch) (*models.LegacyRecord, error) {
	rec, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	legacy := normalize.ToLegacyFlat(*rec)
	return &legacy, nil
}

// Delete removes a record and returns it in the consumer shape.
func (s *Service) Delete(ctx context.Context, id uint) (*models.LegacyRecord, error) {
	rec, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	legacy := normalize.ToLegacyFlat(*rec)
	return &legacy, nil
}

// Sync reconciles the definitions into the configured targets. Concurrent
// calls with the same options share one run; shared reports whether the
// result came from a run started by another caller.
func (s *Service) Sync(ctx context.Context, opts reconcile.SyncOptions) (result *reconcile.SyncResult, shared bool, err error) {
	v, err, shared := s.group.Do(syncKey(opts), func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		// The run outlives a caller that goes away.
		runCtx := context.WithoutCancel(ctx)

		sources, err := s.sources(runCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to load definitions: %w", err)
		}
		s.logger.Info("Sync started",
			zap.Int("sources", len(sources)),
			zap.Bool("dry_run", opts.DryRun),
			zap.Bool("force", opts.ForceUpdate),
			zap.Bool("prune", opts.PruneMissing),
		)
		return s.coordinator.SyncAll(runCtx, sources, s.targets, opts), nil
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*reconcile.SyncResult), shared, nil
}

// Kinds returns the configured target kinds in run order.
func (s *Service) Kinds() []reconcile.Kind {
	var out []reconcile.Kind
	for _, k := range reconcile.Order {
		if _, ok := s.targets[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func syncKey(opts reconcile.SyncOptions) string {
	only := make([]string, 0, len(opts.Only))
	for _, k := range opts.Only {
		only = append(only, string(k))
	}
	sort.Strings(only)
	return fmt.Sprintf("dry=%t force=%t prune=%t only=%s",
		opts.DryRun, opts.ForceUpdate, opts.PruneMissing, strings.Join(only, ","))
}
