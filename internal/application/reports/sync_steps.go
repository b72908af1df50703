package reports

import "context"

// EntityType names a source record type the pipeline walks
type EntityType string

const (
	EntityOrder    EntityType = "order"
	EntityCustomer EntityType = "customer"
)

// RecordPage is one page of source record ids plus the total match count
type RecordPage struct {
	TotalCount int64
	IDs        []int64
}

// RecordEnumerator pages through source record ids. days limits results to
// records created within the last N days (0 means no limit); skipExisting
// excludes records that already have a derived-table row, which is what
// makes regeneration resumable.
type RecordEnumerator interface {
	Enumerate(ctx context.Context, entity EntityType, pageSize, pageNo, days int, skipExisting bool) (RecordPage, error)
}

// SyncResult is the outcome of one per-dimension sync step
type SyncResult int

const (
	// SyncFailure means the step ran and could not write its derived rows
	SyncFailure SyncResult = iota
	// SyncSuccess means the step wrote (or re-wrote) its derived rows
	SyncSuccess
	// SyncSkipped means the step does not apply to this record and must
	// not count as a failure
	SyncSkipped
)

// String returns a readable name for logging
func (r SyncResult) String() string {
	switch r {
	case SyncSuccess:
		return "success"
	case SyncFailure:
		return "failure"
	case SyncSkipped:
		return "skipped"
	}
	return "unknown"
}

// OrderSyncSteps are the per-dimension writers invoked for one order. Every
// step performs an upsert keyed by the order id, so redundant invocations
// from racing triggers converge on the same derived rows.
type OrderSyncSteps interface {
	SyncOrderStats(ctx context.Context, orderID int64) SyncResult
	SyncOrderProducts(ctx context.Context, orderID int64) SyncResult
	SyncOrderCoupons(ctx context.Context, orderID int64) SyncResult
	SyncOrderTaxes(ctx context.Context, orderID int64) SyncResult
}

// CustomerSyncStep writes the derived customer profile row
type CustomerSyncStep interface {
	SyncCustomer(ctx context.Context, customerID int64) SyncResult
}

// reduceResults counts successes and skips across a step result set. The
// record is fully synced when every non-skipped step succeeded.
func reduceResults(results []SyncResult) (successes, skipped int) {
	for _, r := range results {
		switch r {
		case SyncSuccess:
			successes++
		case SyncSkipped:
			skipped++
		}
	}
	return successes, skipped
}
