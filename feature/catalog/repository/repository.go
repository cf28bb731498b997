package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-catalog/core/database"
	"service-catalog/core/resilient"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/normalize"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Filter narrows FindAll. Zero values mean no restriction.
type Filter struct {
	NameContains string
	Limit        int
	Offset       int
}

// Patch holds the fields an Update changes; nil fields are left alone.
// Clearing a duration or travel field resets it to the default.
type Patch struct {
	Name              *string
	Description       *string
	BasePrice         *decimal.Decimal
	CaptureDuration   *string
	TreatmentDuration *string
	Deliverables      *string
	PossibleAddOns    *string
	TravelFee         *string
}

// Repository persists service records through a resilient client.
type Repository struct {
	client   *resilient.Client
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates a repository over client.
func New(client *resilient.Client, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		client:   client,
		validate: newValidator(),
		logger:   logger,
	}
}

// Prepare migrates the services table and checks its columns.
func (r *Repository) Prepare(ctx context.Context) error {
	return r.client.Execute(ctx, "repository.prepare", nil, func(db *gorm.DB) error {
		if err := db.AutoMigrate(&models.ServiceRecord{}); err != nil {
			return fmt.Errorf("migrate services: %w", err)
		}
		return checkColumns(db)
	})
}

// Check verifies the services table without altering it. It returns
// ErrNoTable when the table has not been created yet.
func (r *Repository) Check(ctx context.Context) error {
	return r.client.Execute(ctx, "repository.check", nil, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&models.ServiceRecord{}) {
			return ErrNoTable
		}
		return checkColumns(db)
	})
}

func checkColumns(db *gorm.DB) error {
	missing, err := database.MissingColumns(db, models.ServiceRecord{}.TableName(), models.Columns)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("services table is missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FindAll returns the records matching f ordered by id.
func (r *Repository) FindAll(ctx context.Context, f Filter) ([]models.ServiceRecord, error) {
	var records []models.ServiceRecord
	err := r.client.Execute(ctx, "repository.find_all", resilient.Fields{"filter": f.NameContains}, func(db *gorm.DB) error {
		q := db.Order("id ASC")
		if f.NameContains != "" {
			q = q.Where("name LIKE ?", "%"+f.NameContains+"%")
		}
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}
		if f.Offset > 0 {
			q = q.Offset(f.Offset)
		}
		records = records[:0]
		return q.Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindByName returns the record with exactly name.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.ServiceRecord, error) {
	var rec models.ServiceRecord
	err := r.client.Execute(ctx, "repository.find_by_name", resilient.Fields{"name": name}, func(db *gorm.DB) error {
		return first(db.Where("name = ?", name), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByID returns the record with id.
func (r *Repository) FindByID(ctx context.Context, id uint) (*models.ServiceRecord, error) {
	var rec models.ServiceRecord
	err := r.client.Execute(ctx, "repository.find_by_id", resilient.Fields{"id": id}, func(db *gorm.DB) error {
		return first(db.Where("id = ?", id), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Count returns the number of stored records.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.client.Execute(ctx, "repository.count", nil, func(db *gorm.DB) error {
		return db.Model(&models.ServiceRecord{}).Count(&n).Error
	})
	return n, err
}

// Create normalizes raw and inserts it.
func (r *Repository) Create(ctx context.Context, raw models.RawRecord) (*models.ServiceRecord, error) {
	return r.CreateRecord(ctx, normalize.ToCanonical(raw))
}

// CreateRecord inserts an already canonical record. Its ID is ignored.
func (r *Repository) CreateRecord(ctx context.Context, rec models.ServiceRecord) (*models.ServiceRecord, error) {
	rec.ID = 0
	rec.DetailBlob = normalize.EncodeDetails(normalize.DetailsOf(rec))
	if err := r.validateRecord(rec); err != nil {
		return nil, err
	}

	err := r.client.Execute(ctx, "repository.create", resilient.Fields{"name": rec.Name}, func(db *gorm.DB) error {
		if err := ensureNameFree(db, rec.Name, 0); err != nil {
			return err
		}
		return translate(db.Create(&rec).Error)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Service created", zap.Uint("id", rec.ID), zap.String("name", rec.Name))
	return &rec, nil
}

// Update applies p to the record with id.
func (r *Repository) Update(ctx context.Context, id uint, p Patch) (*models.ServiceRecord, error) {
	if err := r.validatePatch(p); err != nil {
		return nil, err
	}

	var out models.ServiceRecord
	err := r.client.Execute(ctx, "repository.update", resilient.Fields{"id": id}, func(db *gorm.DB) error {
		var existing models.ServiceRecord
		if err := first(db.Where("id = ?", id), &existing); err != nil {
			return err
		}

		merged := normalize.ToCanonical(p.apply(existing))
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		if err := r.validateRecord(merged); err != nil {
			return err
		}

		if err := ensureNameFree(db, merged.Name, id); err != nil {
			return err
		}
		if err := translate(db.Save(&merged).Error); err != nil {
			return err
		}
		out = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Replace overwrites every field of the record with id by rec.
func (r *Repository) Replace(ctx context.Context, id uint, rec models.ServiceRecord) (*models.ServiceRecord, error) {
	rec.DetailBlob = normalize.EncodeDetails(normalize.DetailsOf(rec))
	if err := r.validateRecord(rec); err != nil {
		return nil, err
	}

	var out models.ServiceRecord
	err := r.client.Execute(ctx, "repository.replace", resilient.Fields{"id": id, "name": rec.Name}, func(db *gorm.DB) error {
		var existing models.ServiceRecord
		if err := first(db.Where("id = ?", id), &existing); err != nil {
			return err
		}
		if err := ensureNameFree(db, rec.Name, id); err != nil {
			return err
		}

		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		if err := translate(db.Save(&rec).Error); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete hard-deletes the record with id and returns the removed row.
func (r *Repository) Delete(ctx context.Context, id uint) (*models.ServiceRecord, error) {
	var rec models.ServiceRecord
	err := r.client.Execute(ctx, "repository.delete", resilient.Fields{"id": id}, func(db *gorm.DB) error {
		if err := first(db.Where("id = ?", id), &rec); err != nil {
			return err
		}
		res := db.Delete(&models.ServiceRecord{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p Patch) apply(rec models.ServiceRecord) models.FlatShape {
	flat := models.FlatShape{
		Name:              rec.Name,
		Description:       rec.Description,
		BasePrice:         rec.BasePrice,
		CaptureDuration:   rec.CaptureDuration,
		TreatmentDuration: rec.TreatmentDuration,
		Deliverables:      rec.Deliverables,
		PossibleAddOns:    rec.PossibleAddOns,
		TravelFee:         rec.TravelFee,
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&flat.Name, p.Name)
	set(&flat.Description, p.Description)
	set(&flat.CaptureDuration, p.CaptureDuration)
	set(&flat.TreatmentDuration, p.TreatmentDuration)
	set(&flat.Deliverables, p.Deliverables)
	set(&flat.PossibleAddOns, p.PossibleAddOns)
	set(&flat.TravelFee, p.TravelFee)
	if p.BasePrice != nil {
		flat.BasePrice = *p.BasePrice
	}
	return flat
}

func first(q *gorm.DB, dst *models.ServiceRecord) error {
	err := q.First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ensureNameFree fails when another record than exceptID already uses name.
func ensureNameFree(db *gorm.DB, name string, exceptID uint) error {
	var ids []uint
	if err := db.Model(&models.ServiceRecord{}).Where("name = ?", name).Limit(2).Pluck("id", &ids).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if id != exceptID {
			return ErrDuplicateName
		}
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return err
}
