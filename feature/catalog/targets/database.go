package targets

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"service-catalog/core/reconcile"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/repository"
)

// DatabaseTarget reconciles into the relational store through the repository.
type DatabaseTarget struct {
	repo *repository.Repository
	// absent is set by a dry-run Prepare that found no services table.
	absent bool
}

var (
	_ reconcile.Target[models.ServiceRecord] = (*DatabaseTarget)(nil)
	_ reconcile.Preparer                     = (*DatabaseTarget)(nil)
)

// NewDatabaseTarget creates a database target.
func NewDatabaseTarget(repo *repository.Repository) *DatabaseTarget {
	return &DatabaseTarget{repo: repo}
}

// Name returns "database".
func (t *DatabaseTarget) Name() string {
	return string(reconcile.KindDatabase)
}

// Prepare migrates and verifies the services table. A dry run only
// inspects the schema; a missing table plans as an empty store.
func (t *DatabaseTarget) Prepare(ctx context.Context, opts reconcile.ReconcileOptions) error {
	t.absent = false
	if !opts.DryRun {
		return t.repo.Prepare(ctx)
	}
	err := t.repo.Check(ctx)
	if errors.Is(err, repository.ErrNoTable) {
		t.absent = true
		return nil
	}
	return err
}

// List returns every stored record.
func (t *DatabaseTarget) List(ctx context.Context) ([]reconcile.Item[models.ServiceRecord], error) {
	if t.absent {
		return nil, nil
	}
	records, err := t.repo.FindAll(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}
	items := make([]reconcile.Item[models.ServiceRecord], 0, len(records))
	for _, rec := range records {
		items = append(items, reconcile.Item[models.ServiceRecord]{ID: formatID(rec.ID), Value: rec})
	}
	return items, nil
}

// Create inserts rec.
func (t *DatabaseTarget) Create(ctx context.Context, rec models.ServiceRecord) (string, error) {
	created, err := t.repo.CreateRecord(ctx, rec)
	if err != nil {
		return "", err
	}
	return formatID(created.ID), nil
}

// Update overwrites the record with id.
func (t *DatabaseTarget) Update(ctx context.Context, id string, rec models.ServiceRecord) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	_, err = t.repo.Replace(ctx, n, rec)
	return err
}

// Delete removes the record with id.
func (t *DatabaseTarget) Delete(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	_, err = t.repo.Delete(ctx, n)
	return err
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	return uint(n), nil
}
