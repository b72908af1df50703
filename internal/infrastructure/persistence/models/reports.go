package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatsModel is the derived per-order report row. One row per order,
// keyed by the order id so repeated syncs of the same order upsert in place.
type OrderStatsModel struct {
	OrderID           int64           `gorm:"primaryKey"`
	ParentID          int64           `gorm:"index"`
	CustomerID        int64           `gorm:"index;not null"`
	DateCreated       time.Time       `gorm:"not null;index"`
	Status            string          `gorm:"size:32;not null;index"`
	NumItemsSold      int             `gorm:"not null"`
	TotalSales        decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	TaxTotal          decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	ShippingTotal     decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	NetTotal          decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	ReturningCustomer bool            `gorm:"not null;index"`
}

// TableName returns the table name for OrderStatsModel
func (OrderStatsModel) TableName() string {
	return "report_order_stats"
}

// OrderProductModel is the derived per-line-item report row, keyed by the
// source line item id.
type OrderProductModel struct {
	OrderItemID       int64           `gorm:"primaryKey"`
	OrderID           int64           `gorm:"index;not null"`
	ProductID         int64           `gorm:"index;not null"`
	VariationID       int64           `gorm:"index"`
	CustomerID        int64           `gorm:"index;not null"`
	DateCreated       time.Time       `gorm:"not null;index"`
	ProductQty        int             `gorm:"not null"`
	ProductNetRevenue decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	ProductGrossRevenue decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	TaxAmount         decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for OrderProductModel
func (OrderProductModel) TableName() string {
	return "report_order_products"
}

// OrderCouponLookupModel is the derived coupon usage row, keyed by the
// order/coupon pair.
type OrderCouponLookupModel struct {
	OrderID        int64           `gorm:"primaryKey"`
	CouponID       int64           `gorm:"primaryKey;index"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	DateCreated    time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for OrderCouponLookupModel
func (OrderCouponLookupModel) TableName() string {
	return "report_order_coupons"
}

// OrderTaxLookupModel is the derived tax line row, keyed by the
// order/tax-rate pair.
type OrderTaxLookupModel struct {
	OrderID     int64           `gorm:"primaryKey"`
	TaxRateID   int64           `gorm:"primaryKey;index"`
	OrderTax    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	ShippingTax decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	TotalTax    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	DateCreated time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for OrderTaxLookupModel
func (OrderTaxLookupModel) TableName() string {
	return "report_order_taxes"
}

// CustomerLookupModel is the derived per-customer profile row with order
// history aggregates denormalized onto it.
type CustomerLookupModel struct {
	CustomerID     int64           `gorm:"primaryKey"`
	Email          string          `gorm:"size:255;index"`
	FirstName      string          `gorm:"size:255"`
	LastName       string          `gorm:"size:255"`
	Country        string          `gorm:"size:64"`
	City           string          `gorm:"size:128"`
	Postcode       string          `gorm:"size:32"`
	DateRegistered time.Time       `gorm:"not null"`
	DateLastActive *time.Time      `gorm:""`
	DateLastOrder  *time.Time      `gorm:""`
	OrdersCount    int             `gorm:"not null"`
	TotalSpend     decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	AvgOrderValue  decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for CustomerLookupModel
func (CustomerLookupModel) TableName() string {
	return "report_customers"
}
