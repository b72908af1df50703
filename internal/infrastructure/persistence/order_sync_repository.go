package persistence

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	appreports "github.com/storefront/analytics/internal/application/reports"
	"github.com/storefront/analytics/internal/infrastructure/persistence/models"
)

// GormOrderSyncRepository writes the derived order report rows. Every step
// upserts keyed by the source ids, so re-running a step for the same order
// converges instead of duplicating.
type GormOrderSyncRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormOrderSyncRepository creates a new GormOrderSyncRepository
func NewGormOrderSyncRepository(db *gorm.DB, logger *zap.Logger) *GormOrderSyncRepository {
	return &GormOrderSyncRepository{db: db, logger: logger}
}

// SyncOrderStats derives the per-order stats row from the source order and
// its line items.
func (r *GormOrderSyncRepository) SyncOrderStats(ctx context.Context, orderID int64) appreports.SyncResult {
	var order models.OrderModel
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		r.logger.Warn("Order stats sync failed to load order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	var itemsSold int
	row := r.db.WithContext(ctx).
		Model(&models.OrderItemModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("order_id = ?", orderID).
		Row()
	if err := row.Scan(&itemsSold); err != nil {
		r.logger.Warn("Order stats sync failed to count items",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	var earlier int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("customer_id = ? AND id <> ? AND created_at < ?", order.CustomerID, order.ID, order.CreatedAt).
		Count(&earlier).Error
	if err != nil {
		r.logger.Warn("Order stats sync failed to classify customer",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	netTotal := order.TotalAmount.Sub(order.TaxAmount).Sub(order.ShippingAmount)

	var stats models.OrderStatsModel
	err = r.db.WithContext(ctx).
		Where(models.OrderStatsModel{OrderID: order.ID}).
		Assign(models.OrderStatsModel{
			ParentID:          order.ParentID,
			CustomerID:        order.CustomerID,
			DateCreated:       order.CreatedAt,
			Status:            order.Status,
			NumItemsSold:      itemsSold,
			TotalSales:        order.TotalAmount,
			TaxTotal:          order.TaxAmount,
			ShippingTotal:     order.ShippingAmount,
			NetTotal:          netTotal,
			ReturningCustomer: earlier > 0,
		}).
		FirstOrCreate(&stats).Error
	if err != nil {
		r.logger.Error("Order stats upsert failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	return appreports.SyncSuccess
}

// SyncOrderProducts derives one report row per line item. Rows for items
// removed from the order since the last sync are deleted.
func (r *GormOrderSyncRepository) SyncOrderProducts(ctx context.Context, orderID int64) appreports.SyncResult {
	var order models.OrderModel
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		r.logger.Warn("Order products sync failed to load order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	var items []models.OrderItemModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		r.logger.Warn("Order products sync failed to load items",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}
	if len(items) == 0 {
		return appreports.SyncSkipped
	}

	itemIDs := make([]int64, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)

		var lookup models.OrderProductModel
		err := r.db.WithContext(ctx).
			Where(models.OrderProductModel{OrderItemID: item.ID}).
			Assign(models.OrderProductModel{
				OrderID:             order.ID,
				ProductID:           item.ProductID,
				VariationID:         item.VariationID,
				CustomerID:          order.CustomerID,
				DateCreated:         order.CreatedAt,
				ProductQty:          item.Quantity,
				ProductNetRevenue:   item.Total.Sub(item.TaxAmount),
				ProductGrossRevenue: item.Subtotal,
				TaxAmount:           item.TaxAmount,
			}).
			FirstOrCreate(&lookup).Error
		if err != nil {
			r.logger.Error("Order product upsert failed",
				zap.Int64("order_id", orderID),
				zap.Int64("order_item_id", item.ID),
				zap.Error(err),
			)
			return appreports.SyncFailure
		}
	}

	err := r.db.WithContext(ctx).
		Where("order_id = ? AND order_item_id NOT IN ?", orderID, itemIDs).
		Delete(&models.OrderProductModel{}).Error
	if err != nil {
		r.logger.Error("Order product cleanup failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	return appreports.SyncSuccess
}

// SyncOrderCoupons derives the coupon usage rows for one order. Orders with
// no coupons report skipped after clearing any stale rows.
func (r *GormOrderSyncRepository) SyncOrderCoupons(ctx context.Context, orderID int64) appreports.SyncResult {
	var order models.OrderModel
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		r.logger.Warn("Order coupons sync failed to load order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	var coupons []models.OrderCouponModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&coupons).Error; err != nil {
		r.logger.Warn("Order coupons sync failed to load coupons",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	if len(coupons) == 0 {
		err := r.db.WithContext(ctx).
			Where("order_id = ?", orderID).
			Delete(&models.OrderCouponLookupModel{}).Error
		if err != nil {
			r.logger.Error("Order coupon cleanup failed",
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)
			return appreports.SyncFailure
		}
		return appreports.SyncSkipped
	}

	couponIDs := make([]int64, 0, len(coupons))
	for _, coupon := range coupons {
		couponIDs = append(couponIDs, coupon.CouponID)

		var lookup models.OrderCouponLookupModel
		err := r.db.WithContext(ctx).
			Where(models.OrderCouponLookupModel{OrderID: orderID, CouponID: coupon.CouponID}).
			Assign(models.OrderCouponLookupModel{
				DiscountAmount: coupon.Discount,
				DateCreated:    order.CreatedAt,
			}).
			FirstOrCreate(&lookup).Error
		if err != nil {
			r.logger.Error("Order coupon upsert failed",
				zap.Int64("order_id", orderID),
				zap.Int64("coupon_id", coupon.CouponID),
				zap.Error(err),
			)
			return appreports.SyncFailure
		}
	}

	err := r.db.WithContext(ctx).
		Where("order_id = ? AND coupon_id NOT IN ?", orderID, couponIDs).
		Delete(&models.OrderCouponLookupModel{}).Error
	if err != nil {
		r.logger.Error("Order coupon cleanup failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	return appreports.SyncSuccess
}

// SyncOrderTaxes derives the tax line rows for one order
func (r *GormOrderSyncRepository) SyncOrderTaxes(ctx context.Context, orderID int64) appreports.SyncResult {
	var order models.OrderModel
	if err := r.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		r.logger.Warn("Order taxes sync failed to load order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	var taxes []models.OrderTaxModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&taxes).Error; err != nil {
		r.logger.Warn("Order taxes sync failed to load tax lines",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	if len(taxes) == 0 {
		err := r.db.WithContext(ctx).
			Where("order_id = ?", orderID).
			Delete(&models.OrderTaxLookupModel{}).Error
		if err != nil {
			r.logger.Error("Order tax cleanup failed",
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)
			return appreports.SyncFailure
		}
		return appreports.SyncSkipped
	}

	rateIDs := make([]int64, 0, len(taxes))
	for _, tax := range taxes {
		rateIDs = append(rateIDs, tax.RateID)

		var lookup models.OrderTaxLookupModel
		err := r.db.WithContext(ctx).
			Where(models.OrderTaxLookupModel{OrderID: orderID, TaxRateID: tax.RateID}).
			Assign(models.OrderTaxLookupModel{
				OrderTax:    tax.OrderTax,
				ShippingTax: tax.ShippingTax,
				TotalTax:    tax.OrderTax.Add(tax.ShippingTax),
				DateCreated: order.CreatedAt,
			}).
			FirstOrCreate(&lookup).Error
		if err != nil {
			r.logger.Error("Order tax upsert failed",
				zap.Int64("order_id", orderID),
				zap.Int64("tax_rate_id", tax.RateID),
				zap.Error(err),
			)
			return appreports.SyncFailure
		}
	}

	err := r.db.WithContext(ctx).
		Where("order_id = ? AND tax_rate_id NOT IN ?", orderID, rateIDs).
		Delete(&models.OrderTaxLookupModel{}).Error
	if err != nil {
		r.logger.Error("Order tax cleanup failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return appreports.SyncFailure
	}

	return appreports.SyncSuccess
}
