package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	appreports "github.com/storefront/analytics/internal/application/reports"
	"github.com/storefront/analytics/internal/domain/reports"
	"github.com/storefront/analytics/internal/infrastructure/persistence/models"
)

// GormLookupRepository pages through source record ids and enumerates
// dimension segment universes. The batch init jobs use the page counts to
// size the fan-out; the batch jobs use the pages themselves.
type GormLookupRepository struct {
	db *gorm.DB
}

// NewGormLookupRepository creates a new GormLookupRepository
func NewGormLookupRepository(db *gorm.DB) *GormLookupRepository {
	return &GormLookupRepository{db: db}
}

// Enumerate returns one page of source record ids plus the total match
// count. days limits results to records created within the last N days;
// skipExisting excludes records that already have a derived row, which lets
// an interrupted regeneration resume where it stopped.
func (r *GormLookupRepository) Enumerate(ctx context.Context, entity appreports.EntityType, pageSize, pageNo, days int, skipExisting bool) (appreports.RecordPage, error) {
	if pageSize <= 0 || pageNo <= 0 {
		return appreports.RecordPage{}, fmt.Errorf("invalid enumeration page: size=%d no=%d", pageSize, pageNo)
	}

	query, err := r.enumerationQuery(ctx, entity, days, skipExisting)
	if err != nil {
		return appreports.RecordPage{}, err
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return appreports.RecordPage{}, fmt.Errorf("failed to count %s records: %w", entity, err)
	}

	var ids []int64
	err = query.
		Order("id ASC").
		Limit(pageSize).
		Offset((pageNo - 1) * pageSize).
		Pluck("id", &ids).Error
	if err != nil {
		return appreports.RecordPage{}, fmt.Errorf("failed to page %s records: %w", entity, err)
	}

	return appreports.RecordPage{TotalCount: total, IDs: ids}, nil
}

func (r *GormLookupRepository) enumerationQuery(ctx context.Context, entity appreports.EntityType, days int, skipExisting bool) (*gorm.DB, error) {
	switch entity {
	case appreports.EntityOrder:
		query := r.db.WithContext(ctx).Model(&models.OrderModel{})
		if days > 0 {
			query = query.Where("created_at >= ?", time.Now().AddDate(0, 0, -days))
		}
		if skipExisting {
			query = query.Where("NOT EXISTS (SELECT 1 FROM report_order_stats s WHERE s.order_id = orders.id)")
		}
		return query, nil
	case appreports.EntityCustomer:
		query := r.db.WithContext(ctx).Model(&models.CustomerModel{})
		if days > 0 {
			query = query.Where("created_at >= ?", time.Now().AddDate(0, 0, -days))
		}
		if skipExisting {
			query = query.Where("NOT EXISTS (SELECT 1 FROM report_customers c WHERE c.customer_id = customers.id)")
		}
		return query, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entity)
	}
}

// GormDimensionRepository enumerates the full segment id universe for one
// dimension, which the report reader uses to zero-fill missing segments.
type GormDimensionRepository struct {
	db *gorm.DB
}

// NewGormDimensionRepository creates a new GormDimensionRepository
func NewGormDimensionRepository(db *gorm.DB) *GormDimensionRepository {
	return &GormDimensionRepository{db: db}
}

// AllSegmentIDs returns every segment id the dimension can take. Unknown
// dimensions yield an empty universe rather than an error, which turns
// segmentation into a no-op upstream.
func (r *GormDimensionRepository) AllSegmentIDs(ctx context.Context, dimension reports.Dimension) ([]int64, error) {
	var ids []int64
	switch dimension {
	case reports.DimensionProduct:
		err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Order("id ASC").Pluck("id", &ids).Error
		return ids, err
	case reports.DimensionCategory:
		err := r.db.WithContext(ctx).Model(&models.CategoryModel{}).Order("id ASC").Pluck("id", &ids).Error
		return ids, err
	case reports.DimensionCoupon:
		err := r.db.WithContext(ctx).Model(&models.CouponModel{}).Order("id ASC").Pluck("id", &ids).Error
		return ids, err
	case reports.DimensionCustomerType:
		return reports.CustomerTypeSegmentIDs(), nil
	default:
		return []int64{}, nil
	}
}
