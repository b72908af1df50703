package persistence

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appreports "github.com/storefront/analytics/internal/application/reports"
	"github.com/storefront/analytics/internal/infrastructure/persistence/models"
)

// GormCustomerSyncRepository writes the derived customer profile rows
type GormCustomerSyncRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormCustomerSyncRepository creates a new GormCustomerSyncRepository
func NewGormCustomerSyncRepository(db *gorm.DB, logger *zap.Logger) *GormCustomerSyncRepository {
	return &GormCustomerSyncRepository{db: db, logger: logger}
}

// SyncCustomer derives the profile row for one customer, folding in order
// history aggregates from the derived order stats. Customer rows therefore
// get more accurate as the order sync progresses, which is why customer
// batches run again after the order batches during a full regeneration.
func (r *GormCustomerSyncRepository) SyncCustomer(ctx context.Context, customerID int64) appreports.SyncResult {
	var customer models.CustomerModel
	if err := r.db.WithContext(ctx).First(&customer, customerID).Error; err != nil {
		r.logger.Warn("Customer sync failed to load customer",
			zap.Int64("customer_id", customerID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	type orderAggregates struct {
		OrdersCount   int64
		TotalSpend    decimal.Decimal
		DateLastOrder *time.Time
	}

	var agg orderAggregates
	err := r.db.WithContext(ctx).
		Model(&models.OrderStatsModel{}).
		Select(`
			COUNT(order_id) as orders_count,
			COALESCE(SUM(total_sales), 0) as total_spend,
			MAX(date_created) as date_last_order
		`).
		Where("customer_id = ?", customerID).
		Scan(&agg).Error
	if err != nil {
		r.logger.Warn("Customer sync failed to aggregate orders",
			zap.Int64("customer_id", customerID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	avgOrderValue := decimal.Zero
	if agg.OrdersCount > 0 {
		avgOrderValue = agg.TotalSpend.Div(decimal.NewFromInt(agg.OrdersCount))
	}

	var lookup models.CustomerLookupModel
	err = r.db.WithContext(ctx).
		Where(models.CustomerLookupModel{CustomerID: customer.ID}).
		Assign(models.CustomerLookupModel{
			Email:          customer.Email,
			FirstName:      customer.FirstName,
			LastName:       customer.LastName,
			Country:        customer.Country,
			City:           customer.City,
			Postcode:       customer.Postcode,
			DateRegistered: customer.CreatedAt,
			DateLastActive: customer.LastActiveAt,
			DateLastOrder:  agg.DateLastOrder,
			OrdersCount:    int(agg.OrdersCount),
			TotalSpend:     agg.TotalSpend,
			AvgOrderValue:  avgOrderValue,
		}).
		FirstOrCreate(&lookup).Error
	if err != nil {
		r.logger.Error("Customer profile upsert failed",
			zap.Int64("customer_id", customerID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	return appreports.SyncSuccess
}
