package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/reports"
)

// RevenueColumns are the derived fields the revenue report can project.
// Declaration order is the response order when no projection is requested.
func RevenueColumns() []reports.Column {
	return []reports.Column{
		{Name: "orders_count", Expr: "COUNT(DISTINCT order_id)"},
		{Name: "num_items_sold", Expr: "SUM(product_qty)"},
		{Name: "total_sales", Expr: "SUM(total_sales)"},
		{Name: "net_revenue", Expr: "SUM(net_total)"},
		{Name: "tax_total", Expr: "SUM(tax_total)"},
	}
}

// RevenueQuery shapes one revenue report request
type RevenueQuery struct {
	After     time.Time
	Before    time.Time
	Interval  reports.Granularity
	SegmentBy reports.Dimension
	Fields    []string
	Page      int
	PerPage   int
	Order     string // "asc" or "desc"
	OrderBy   string // "date" or a field name
}

// RevenueReport is the response payload the REST layer serializes
type RevenueReport struct {
	Totals         map[string]decimal.Decimal `json:"totals"`
	TotalsSegments []reports.SegmentRecord    `json:"totals_segments,omitempty"`
	Intervals      []reports.IntervalRecord   `json:"intervals"`
	TotalIntervals int                        `json:"total_intervals"`
	Page           int                        `json:"page"`
	PerPage        int                        `json:"per_page"`
}

// StatsRepository reads aggregated rows from the derived report tables. The
// order-level and item-level queries cover disjoint field sets; the segment
// merger reconciles them into one row set per segment.
type StatsRepository interface {
	// Totals returns the non-segmented totals row for the period.
	Totals(ctx context.Context, after, before time.Time) (map[string]decimal.Decimal, error)

	// IntervalTotals returns one non-segmented row per calendar bucket that
	// has matching data, in chronological order.
	IntervalTotals(ctx context.Context, after, before time.Time, interval reports.Granularity) ([]reports.RawRow, error)

	// OrderTotals returns order-level fields grouped by the dimension.
	OrderTotals(ctx context.Context, after, before time.Time, segmentBy reports.Dimension) ([]reports.RawRow, error)

	// ProductTotals returns line-item-level fields grouped by the dimension.
	ProductTotals(ctx context.Context, after, before time.Time, segmentBy reports.Dimension) ([]reports.RawRow, error)

	// OrderIntervals and ProductIntervals are the per-bucket variants.
	OrderIntervals(ctx context.Context, after, before time.Time, interval reports.Granularity, segmentBy reports.Dimension) ([]reports.RawRow, error)
	ProductIntervals(ctx context.Context, after, before time.Time, interval reports.Granularity, segmentBy reports.Dimension) ([]reports.RawRow, error)
}

// ReportServiceConfig holds read-path configuration
type ReportServiceConfig struct {
	// WeekStartsOn selects the week bucketing semantics (time.Weekday
	// numbering; Monday enables ISO weeks).
	WeekStartsOn int
	// DefaultPerPage caps interval pagination when the request does not
	DefaultPerPage int
}

// DefaultReportServiceConfig returns default read-path configuration
func DefaultReportServiceConfig() ReportServiceConfig {
	return ReportServiceConfig{
		WeekStartsOn:   reports.WeekStartMonday,
		DefaultPerPage: 10,
	}
}

// ReportService computes bucketed, segmented, zero-filled report rows from
// the derived tables.
type ReportService struct {
	stats      StatsRepository
	dimensions reports.DimensionRepository
	config     ReportServiceConfig
	logger     *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(stats StatsRepository, dimensions reports.DimensionRepository, config ReportServiceConfig, logger *zap.Logger) *ReportService {
	return &ReportService{
		stats:      stats,
		dimensions: dimensions,
		config:     config,
		logger:     logger,
	}
}

// RevenueStats produces the revenue report for the requested period: one
// IntervalRecord per calendar bucket in [After, Before] (zero-filled where
// the derived tables had no rows), plus period totals, with per-dimension
// segments attached when segmenting was requested.
func (s *ReportService) RevenueStats(ctx context.Context, query RevenueQuery) (*RevenueReport, error) {
	if !query.Interval.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterval, query.Interval)
	}
	if query.Before.Before(query.After) {
		return nil, ErrInvalidDateRange
	}
	applyQueryDefaults(&query, s.config.DefaultPerPage)

	selected := reports.SelectedColumns(RevenueColumns(), query.Fields)
	fields := make([]string, len(selected))
	for i, c := range selected {
		fields[i] = c.Name
	}

	totals, err := s.stats.Totals(ctx, query.After, query.Before)
	if err != nil {
		return nil, fmt.Errorf("failed to read revenue totals: %w", err)
	}
	totals = projectValues(totals, fields)

	intervals, totalIntervals, err := s.buildIntervals(ctx, query, fields)
	if err != nil {
		return nil, err
	}

	report := &RevenueReport{
		Totals:         totals,
		Intervals:      intervals,
		TotalIntervals: totalIntervals,
		Page:           query.Page,
		PerPage:        query.PerPage,
	}

	if query.SegmentBy != "" {
		if err := s.attachSegments(ctx, query, fields, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// buildIntervals reads the per-bucket rows and injects synthetic zero-filled
// buckets where the requested span had no matching data.
func (s *ReportService) buildIntervals(ctx context.Context, query RevenueQuery, fields []string) ([]reports.IntervalRecord, int, error) {
	dbRows, err := s.stats.IntervalTotals(ctx, query.After, query.Before, query.Interval)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read revenue intervals: %w", err)
	}

	totalIntervals := reports.BucketsBetween(query.After, query.Before, query.Interval, s.config.WeekStartsOn)

	byInterval := make(map[string]reports.RawRow, len(dbRows))
	for _, row := range dbRows {
		byInterval[row.TimeInterval] = row
	}

	// Walk the requested span chronologically and materialize every bucket,
	// splitting the ones backed by a database row from the zero-filled rest.
	data := make([]reports.IntervalRecord, 0, len(dbRows))
	missing := make([]reports.IntervalRecord, 0, totalIntervals)
	bucketStart := query.After
	for i := 0; i < totalIntervals; i++ {
		id := reports.BucketID(query.Interval, bucketStart, s.config.WeekStartsOn)
		boundary := reports.BucketBoundary(query.Interval, bucketStart, false, s.config.WeekStartsOn)

		bucketEnd := boundary.Add(-time.Second)
		if bucketEnd.After(query.Before) {
			bucketEnd = query.Before
		}

		record := reports.IntervalRecord{
			TimeInterval: id,
			DateStart:    bucketStart,
			DateEnd:      bucketEnd,
			Subtotals:    zeroValues(fields),
		}
		if row, ok := byInterval[id]; ok {
			record.Subtotals = projectValues(row.Values, fields)
			data = append(data, record)
		} else {
			missing = append(missing, record)
		}

		bucketStart = boundary
	}

	// The database-backed rows alone fill most pages. Synthetic zero rows
	// are spliced in only where the paging math says this page runs short:
	// leading pages ascending, trailing pages descending, anywhere for date
	// ordering.
	sortIntervals(data, query.Order, query.OrderBy)
	page := paginateIntervals(data, query.Page, query.PerPage)
	if reports.IntervalsMissing(totalIntervals, len(data), query.PerPage, query.Page, query.Order, query.OrderBy, len(page)) {
		combined := combineIntervals(data, missing, query.Order, query.OrderBy)
		page = paginateIntervals(combined, query.Page, query.PerPage)
	} else if query.OrderBy != "date" && query.Order == "asc" && len(missing) > 0 {
		// The zero-filled leaders consumed the earlier pages, so the window
		// into the data rows shifts left by their count.
		page = sliceIntervals(data, (query.Page-1)*query.PerPage-len(missing), query.PerPage)
	}
	return page, totalIntervals, nil
}

// sortIntervals orders records by bucket date or by one of the projected
// subtotal fields. Equal field values fall back to chronological order so
// pages stay deterministic.
func sortIntervals(records []reports.IntervalRecord, order, orderBy string) {
	desc := order == "desc"
	sort.SliceStable(records, func(i, j int) bool {
		if orderBy == "date" {
			if desc {
				return records[j].DateStart.Before(records[i].DateStart)
			}
			return records[i].DateStart.Before(records[j].DateStart)
		}
		a := records[i].Subtotals[orderBy]
		b := records[j].Subtotals[orderBy]
		if a.Equal(b) {
			return records[i].DateStart.Before(records[j].DateStart)
		}
		if desc {
			return a.GreaterThan(b)
		}
		return a.LessThan(b)
	})
}

// combineIntervals builds the full page sequence of data plus zero-filled
// records. Date ordering interleaves them chronologically; field ordering
// puts the zero rows at the extreme the sort direction sends them to, kept
// chronological among themselves.
func combineIntervals(data, missing []reports.IntervalRecord, order, orderBy string) []reports.IntervalRecord {
	combined := make([]reports.IntervalRecord, 0, len(data)+len(missing))
	if orderBy == "date" {
		combined = append(combined, data...)
		combined = append(combined, missing...)
		sortIntervals(combined, order, orderBy)
		return combined
	}
	if order == "desc" {
		combined = append(combined, data...)
		combined = append(combined, missing...)
		return combined
	}
	combined = append(combined, missing...)
	combined = append(combined, data...)
	return combined
}

// attachSegments runs the segmented query pair, merges the partial results,
// zero-fills the dimension universe and nests the segment rows under both
// the totals and each interval record.
func (s *ReportService) attachSegments(ctx context.Context, query RevenueQuery, fields []string, report *RevenueReport) error {
	allIDs, err := s.dimensions.AllSegmentIDs(ctx, query.SegmentBy)
	if err != nil {
		return fmt.Errorf("failed to enumerate %s segment ids: %w", query.SegmentBy, err)
	}
	// An unsupported dimension has an empty universe; segmenting becomes a
	// no-op rather than an error.
	if len(allIDs) == 0 {
		report.TotalsSegments = []reports.SegmentRecord{}
		for i := range report.Intervals {
			report.Intervals[i].Segments = []reports.SegmentRecord{}
		}
		return nil
	}

	orderTotals, err := s.stats.OrderTotals(ctx, query.After, query.Before, query.SegmentBy)
	if err != nil {
		return fmt.Errorf("failed to read segmented order totals: %w", err)
	}
	productTotals, err := s.stats.ProductTotals(ctx, query.After, query.Before, query.SegmentBy)
	if err != nil {
		return fmt.Errorf("failed to read segmented product totals: %w", err)
	}

	merged := reports.MergeTotals(reports.ReformatTotals(orderTotals), reports.ReformatTotals(productTotals))
	report.TotalsSegments = reports.FillMissingSegments(merged, allIDs, fields)

	orderIntervals, err := s.stats.OrderIntervals(ctx, query.After, query.Before, query.Interval, query.SegmentBy)
	if err != nil {
		return fmt.Errorf("failed to read segmented order intervals: %w", err)
	}
	productIntervals, err := s.stats.ProductIntervals(ctx, query.After, query.Before, query.Interval, query.SegmentBy)
	if err != nil {
		return fmt.Errorf("failed to read segmented product intervals: %w", err)
	}

	mergedIntervals := reports.MergeIntervals(orderIntervals, productIntervals)
	segmentsByInterval := make(map[string][]reports.SegmentRecord, len(mergedIntervals))
	for bucketID, segments := range mergedIntervals {
		segmentsByInterval[bucketID] = reports.FillMissingSegments(segments, allIDs, fields)
	}

	report.Intervals = reports.AssignSegmentsToIntervals(report.Intervals, segmentsByInterval)
	return nil
}

func applyQueryDefaults(query *RevenueQuery, defaultPerPage int) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PerPage <= 0 {
		query.PerPage = defaultPerPage
	}
	if query.Order == "" {
		query.Order = "asc"
	}
	if query.OrderBy == "" {
		query.OrderBy = "date"
	}
}

func paginateIntervals(all []reports.IntervalRecord, page, perPage int) []reports.IntervalRecord {
	return sliceIntervals(all, (page-1)*perPage, perPage)
}

func sliceIntervals(all []reports.IntervalRecord, start, count int) []reports.IntervalRecord {
	if start < 0 {
		start = 0
	}
	if start >= len(all) {
		return []reports.IntervalRecord{}
	}
	end := start + count
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func projectValues(values map[string]decimal.Decimal, fields []string) map[string]decimal.Decimal {
	projected := make(map[string]decimal.Decimal, len(fields))
	for _, field := range fields {
		if v, ok := values[field]; ok {
			projected[field] = v
		} else {
			projected[field] = decimal.Zero
		}
	}
	return projected
}

func zeroValues(fields []string) map[string]decimal.Decimal {
	zeros := make(map[string]decimal.Decimal, len(fields))
	for _, field := range fields {
		zeros[field] = decimal.Zero
	}
	return zeros
}
