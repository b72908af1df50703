package persistence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront/analytics/internal/domain/reports"
)

// GormStatsRepository reads aggregated revenue rows from the derived report
// tables. The SQL keeps rows at order or line-item grain and the calendar
// bucketing happens here in Go, so week and quarter semantics stay identical
// across the postgres deployment and the sqlite test database.
type GormStatsRepository struct {
	db           *gorm.DB
	weekStartsOn int
}

// NewGormStatsRepository creates a new GormStatsRepository
func NewGormStatsRepository(db *gorm.DB, weekStartsOn int) *GormStatsRepository {
	return &GormStatsRepository{db: db, weekStartsOn: weekStartsOn}
}

type orderStatsRow struct {
	OrderID      int64
	DateCreated  time.Time
	NumItemsSold int64
	TotalSales   decimal.Decimal
	NetTotal     decimal.Decimal
	TaxTotal     decimal.Decimal
}

type segmentOrderRow struct {
	SegmentID   int64
	OrderID     int64
	DateCreated time.Time
	TotalSales  decimal.Decimal
	TaxTotal    decimal.Decimal
}

type segmentItemRow struct {
	SegmentID         int64
	DateCreated       time.Time
	ProductQty        int64
	ProductNetRevenue decimal.Decimal
}

// Totals returns the non-segmented totals row for the period
func (r *GormStatsRepository) Totals(ctx context.Context, after, before time.Time) (map[string]decimal.Decimal, error) {
	type totalsResult struct {
		OrdersCount  int64
		NumItemsSold decimal.Decimal
		TotalSales   decimal.Decimal
		NetRevenue   decimal.Decimal
		TaxTotal     decimal.Decimal
	}

	var result totalsResult
	err := r.db.WithContext(ctx).
		Table("report_order_stats").
		Select(`
			COUNT(order_id) as orders_count,
			COALESCE(SUM(num_items_sold), 0) as num_items_sold,
			COALESCE(SUM(total_sales), 0) as total_sales,
			COALESCE(SUM(net_total), 0) as net_revenue,
			COALESCE(SUM(tax_total), 0) as tax_total
		`).
		Where("date_created BETWEEN ? AND ?", after, before).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}

	return map[string]decimal.Decimal{
		"orders_count":   decimal.NewFromInt(result.OrdersCount),
		"num_items_sold": result.NumItemsSold,
		"total_sales":    result.TotalSales,
		"net_revenue":    result.NetRevenue,
		"tax_total":      result.TaxTotal,
	}, nil
}

// IntervalTotals returns one non-segmented row per calendar bucket with
// data, in chronological order.
func (r *GormStatsRepository) IntervalTotals(ctx context.Context, after, before time.Time, interval reports.Granularity) ([]reports.RawRow, error) {
	var rows []orderStatsRow
	err := r.db.WithContext(ctx).
		Table("report_order_stats").
		Select("order_id, date_created, num_items_sold, total_sales, net_total, tax_total").
		Where("date_created BETWEEN ? AND ?", after, before).
		Order("date_created ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	type bucketAgg struct {
		ordersCount  int64
		numItemsSold int64
		totalSales   decimal.Decimal
		netRevenue   decimal.Decimal
		taxTotal     decimal.Decimal
	}

	order := make([]string, 0)
	buckets := make(map[string]*bucketAgg)
	for _, row := range rows {
		id := reports.BucketID(interval, row.DateCreated, r.weekStartsOn)
		agg, ok := buckets[id]
		if !ok {
			agg = &bucketAgg{}
			buckets[id] = agg
			order = append(order, id)
		}
		agg.ordersCount++
		agg.numItemsSold += row.NumItemsSold
		agg.totalSales = agg.totalSales.Add(row.TotalSales)
		agg.netRevenue = agg.netRevenue.Add(row.NetTotal)
		agg.taxTotal = agg.taxTotal.Add(row.TaxTotal)
	}

	result := make([]reports.RawRow, 0, len(order))
	for _, id := range order {
		agg := buckets[id]
		result = append(result, reports.RawRow{
			TimeInterval: id,
			Values: map[string]decimal.Decimal{
				"orders_count":   decimal.NewFromInt(agg.ordersCount),
				"num_items_sold": decimal.NewFromInt(agg.numItemsSold),
				"total_sales":    agg.totalSales,
				"net_revenue":    agg.netRevenue,
				"tax_total":      agg.taxTotal,
			},
		})
	}
	return result, nil
}

// OrderTotals returns order-level fields grouped by the dimension. An order
// that touches a segment contributes its full order-level measures to that
// segment, counted once per segment.
func (r *GormStatsRepository) OrderTotals(ctx context.Context, after, before time.Time, segmentBy reports.Dimension) ([]reports.RawRow, error) {
	rows, err := r.orderRows(ctx, after, before, segmentBy)
	if err != nil {
		return nil, err
	}
	return aggregateOrderRows(rows, func(segmentOrderRow) string { return "" }), nil
}

// OrderIntervals is the per-bucket variant of OrderTotals
func (r *GormStatsRepository) OrderIntervals(ctx context.Context, after, before time.Time, interval reports.Granularity, segmentBy reports.Dimension) ([]reports.RawRow, error) {
	rows, err := r.orderRows(ctx, after, before, segmentBy)
	if err != nil {
		return nil, err
	}
	return aggregateOrderRows(rows, func(row segmentOrderRow) string {
		return reports.BucketID(interval, row.DateCreated, r.weekStartsOn)
	}), nil
}

// ProductTotals returns line-item-level fields grouped by the dimension
func (r *GormStatsRepository) ProductTotals(ctx context.Context, after, before time.Time, segmentBy reports.Dimension) ([]reports.RawRow, error) {
	rows, err := r.itemRows(ctx, after, before, segmentBy)
	if err != nil {
		return nil, err
	}
	return aggregateItemRows(rows, func(segmentItemRow) string { return "" }), nil
}

// ProductIntervals is the per-bucket variant of ProductTotals
func (r *GormStatsRepository) ProductIntervals(ctx context.Context, after, before time.Time, interval reports.Granularity, segmentBy reports.Dimension) ([]reports.RawRow, error) {
	rows, err := r.itemRows(ctx, after, before, segmentBy)
	if err != nil {
		return nil, err
	}
	return aggregateItemRows(rows, func(row segmentItemRow) string {
		return reports.BucketID(interval, row.DateCreated, r.weekStartsOn)
	}), nil
}

// orderRows fetches (segment, order) pairs with the order-level measures.
// Pairs may repeat for the product and category dimensions when an order has
// several items of the same product; the aggregation dedupes them.
func (r *GormStatsRepository) orderRows(ctx context.Context, after, before time.Time, segmentBy reports.Dimension) ([]segmentOrderRow, error) {
	var rows []segmentOrderRow
	base := r.db.WithContext(ctx)

	switch segmentBy {
	case reports.DimensionProduct:
		err := base.Table("report_order_products op").
			Select("op.product_id as segment_id, os.order_id, os.date_created, os.total_sales, os.tax_total").
			Joins("JOIN report_order_stats os ON os.order_id = op.order_id").
			Where("os.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	case reports.DimensionCategory:
		err := base.Table("report_order_products op").
			Select("p.category_id as segment_id, os.order_id, os.date_created, os.total_sales, os.tax_total").
			Joins("JOIN report_order_stats os ON os.order_id = op.order_id").
			Joins("JOIN products p ON p.id = op.product_id").
			Where("os.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	case reports.DimensionCoupon:
		err := base.Table("report_order_coupons oc").
			Select("oc.coupon_id as segment_id, os.order_id, os.date_created, os.total_sales, os.tax_total").
			Joins("JOIN report_order_stats os ON os.order_id = oc.order_id").
			Where("os.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	case reports.DimensionCustomerType:
		err := base.Table("report_order_stats os").
			Select("CASE WHEN os.returning_customer THEN 1 ELSE 0 END as segment_id, os.order_id, os.date_created, os.total_sales, os.tax_total").
			Where("os.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	default:
		return nil, fmt.Errorf("unknown segment dimension %q", segmentBy)
	}
}

// itemRows fetches line-item rows with the dimension segment attached
func (r *GormStatsRepository) itemRows(ctx context.Context, after, before time.Time, segmentBy reports.Dimension) ([]segmentItemRow, error) {
	var rows []segmentItemRow
	base := r.db.WithContext(ctx)

	switch segmentBy {
	case reports.DimensionProduct:
		err := base.Table("report_order_products").
			Select("product_id as segment_id, date_created, product_qty, product_net_revenue").
			Where("date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	case reports.DimensionCategory:
		err := base.Table("report_order_products op").
			Select("p.category_id as segment_id, op.date_created, op.product_qty, op.product_net_revenue").
			Joins("JOIN products p ON p.id = op.product_id").
			Where("op.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	case reports.DimensionCoupon:
		err := base.Table("report_order_products op").
			Select("oc.coupon_id as segment_id, op.date_created, op.product_qty, op.product_net_revenue").
			Joins("JOIN report_order_coupons oc ON oc.order_id = op.order_id").
			Where("op.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	case reports.DimensionCustomerType:
		err := base.Table("report_order_products op").
			Select("CASE WHEN os.returning_customer THEN 1 ELSE 0 END as segment_id, op.date_created, op.product_qty, op.product_net_revenue").
			Joins("JOIN report_order_stats os ON os.order_id = op.order_id").
			Where("op.date_created BETWEEN ? AND ?", after, before).
			Scan(&rows).Error
		return rows, err
	default:
		return nil, fmt.Errorf("unknown segment dimension %q", segmentBy)
	}
}

type segmentKey struct {
	segmentID int64
	bucket    string
}

// aggregateOrderRows reduces (segment, order) pairs to one RawRow per
// segment (and bucket, when bucketOf returns non-empty ids). Each order is
// counted at most once per key.
func aggregateOrderRows(rows []segmentOrderRow, bucketOf func(segmentOrderRow) string) []reports.RawRow {
	type orderAgg struct {
		seen       map[int64]struct{}
		totalSales decimal.Decimal
		taxTotal   decimal.Decimal
	}

	aggs := make(map[segmentKey]*orderAgg)
	for _, row := range rows {
		key := segmentKey{segmentID: row.SegmentID, bucket: bucketOf(row)}
		agg, ok := aggs[key]
		if !ok {
			agg = &orderAgg{seen: make(map[int64]struct{})}
			aggs[key] = agg
		}
		if _, dup := agg.seen[row.OrderID]; dup {
			continue
		}
		agg.seen[row.OrderID] = struct{}{}
		agg.totalSales = agg.totalSales.Add(row.TotalSales)
		agg.taxTotal = agg.taxTotal.Add(row.TaxTotal)
	}

	result := make([]reports.RawRow, 0, len(aggs))
	for key, agg := range aggs {
		result = append(result, reports.RawRow{
			SegmentID:    key.segmentID,
			TimeInterval: key.bucket,
			Values: map[string]decimal.Decimal{
				"orders_count": decimal.NewFromInt(int64(len(agg.seen))),
				"total_sales":  agg.totalSales,
				"tax_total":    agg.taxTotal,
			},
		})
	}
	sortRawRows(result)
	return result
}

// aggregateItemRows reduces line-item rows to one RawRow per segment (and
// bucket, when bucketOf returns non-empty ids).
func aggregateItemRows(rows []segmentItemRow, bucketOf func(segmentItemRow) string) []reports.RawRow {
	type itemAgg struct {
		numItemsSold int64
		netRevenue   decimal.Decimal
	}

	aggs := make(map[segmentKey]*itemAgg)
	for _, row := range rows {
		key := segmentKey{segmentID: row.SegmentID, bucket: bucketOf(row)}
		agg, ok := aggs[key]
		if !ok {
			agg = &itemAgg{}
			aggs[key] = agg
		}
		agg.numItemsSold += row.ProductQty
		agg.netRevenue = agg.netRevenue.Add(row.ProductNetRevenue)
	}

	result := make([]reports.RawRow, 0, len(aggs))
	for key, agg := range aggs {
		result = append(result, reports.RawRow{
			SegmentID:    key.segmentID,
			TimeInterval: key.bucket,
			Values: map[string]decimal.Decimal{
				"num_items_sold": decimal.NewFromInt(agg.numItemsSold),
				"net_revenue":    agg.netRevenue,
			},
		})
	}
	sortRawRows(result)
	return result
}

func sortRawRows(rows []reports.RawRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TimeInterval != rows[j].TimeInterval {
			return rows[i].TimeInterval < rows[j].TimeInterval
		}
		return rows[i].SegmentID < rows[j].SegmentID
	})
}
