package reports

import "context"

// Dimension names a segmentation axis for report rows
type Dimension string

const (
	DimensionProduct      Dimension = "product"
	DimensionCategory     Dimension = "category"
	DimensionCoupon       Dimension = "coupon"
	DimensionCustomerType Dimension = "customer_type"
)

// Customer type segment ids are a fixed universe independent of store data.
const (
	CustomerTypeNew       int64 = 0
	CustomerTypeReturning int64 = 1
)

// CustomerTypeSegmentIDs returns the fixed customer_type universe
func CustomerTypeSegmentIDs() []int64 {
	return []int64{CustomerTypeNew, CustomerTypeReturning}
}

// DimensionRepository enumerates every possible segment id for a dimension.
// Implementations must return an empty list, not an error, for dimension
// names they do not support.
type DimensionRepository interface {
	AllSegmentIDs(ctx context.Context, dimension Dimension) ([]int64, error)
}
