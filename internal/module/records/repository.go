package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/pkg"
)

const (
	dataColumn   = "data"
	searchColumn = "search_text"
)

// allowedSortFields lists the columns a list request may order by.
var allowedSortFields = []string{"id", "created_at", "updated_at"}

// recordRepository implements domain.RecordRepository using GORM.
type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository creates a RecordRepository backed by the given GORM database.
func NewRecordRepository(db *gorm.DB) domain.RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Create(ctx context.Context, rec *domain.StoredRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID retrieves a record of entity by its primary key.
func (r *recordRepository) GetByID(ctx context.Context, entity string, id uint) (*domain.StoredRecord, error) {
	var rec domain.StoredRecord
	if err := r.db.WithContext(ctx).Where("entity = ?", entity).First(&rec, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// List returns one page of entity's records matching the request keyword
// and field filters.
func (r *recordRepository) List(ctx context.Context, entity string, req domain.PageRequest) (*domain.PageResult[domain.StoredRecord], error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&domain.StoredRecord{}).
		Where("entity = ?", entity).
		Scopes(
			pkg.Search(req, searchColumn),
			pkg.DocumentFilter(req, dataColumn),
		)

	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	var recs []domain.StoredRecord
	if err := base.Scopes(
		pkg.Paginate(req),
		pkg.Sort(req, allowedSortFields),
	).Find(&recs).Error; err != nil {
		return nil, mapError(err)
	}

	return pkg.NewPageResult(recs, total, req), nil
}

func (r *recordRepository) Update(ctx context.Context, rec *domain.StoredRecord) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// Delete removes the record in a transaction, after checking that no field
// listed in refs still holds its id.
func (r *recordRepository) Delete(ctx context.Context, entity string, id uint, refs []domain.Reference) error {
	return pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var rec domain.StoredRecord
		if err := tx.Where("entity = ?", entity).First(&rec, id).Error; err != nil {
			return mapError(err)
		}

		key := strconv.FormatUint(uint64(id), 10)
		for _, ref := range refs {
			var n int64
			req := domain.PageRequest{Filter: map[string]string{ref.Field: key}}
			err := tx.Model(&domain.StoredRecord{}).
				Where("entity = ?", ref.Entity).
				Scopes(pkg.DocumentFilter(req, dataColumn)).
				Count(&n).Error
			if err != nil {
				return mapError(err)
			}
			if n > 0 {
				return domain.NewAppError(domain.CodeConflict,
					fmt.Sprintf("cannot delete: referenced by %d %s", n, ref.Entity), nil)
			}
		}

		result := tx.Delete(&domain.StoredRecord{}, rec.ID)
		if result.Error != nil {
			return mapError(result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations from the driver
// message, for dialectors that do not translate them to gorm.ErrDuplicatedKey.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
