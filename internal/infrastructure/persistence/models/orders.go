package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel maps to the platform orders table. The reporting pipeline only
// reads these rows; writes come from the storefront itself.
type OrderModel struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	ParentID       int64           `gorm:"index"`
	CustomerID     int64           `gorm:"index;not null"`
	Status         string          `gorm:"size:32;not null;index"`
	Currency       string          `gorm:"size:8;not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	CreatedAt      time.Time       `gorm:"not null;index"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for OrderModel
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel maps to the order line items table
type OrderItemModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"index;not null"`
	ProductID   int64           `gorm:"index;not null"`
	VariationID int64           `gorm:"index"`
	Quantity    int             `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Total       decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for OrderItemModel
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderCouponModel maps one coupon applied to one order
type OrderCouponModel struct {
	ID       int64           `gorm:"primaryKey;autoIncrement"`
	OrderID  int64           `gorm:"index;not null"`
	CouponID int64           `gorm:"index;not null"`
	Discount decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for OrderCouponModel
func (OrderCouponModel) TableName() string {
	return "order_coupons"
}

// OrderTaxModel maps one tax rate line on one order
type OrderTaxModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"index;not null"`
	RateID      int64           `gorm:"index;not null"`
	OrderTax    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	ShippingTax decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for OrderTaxModel
func (OrderTaxModel) TableName() string {
	return "order_taxes"
}

// CustomerModel maps to the platform customers table
type CustomerModel struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	Email        string     `gorm:"size:255;not null;index"`
	FirstName    string     `gorm:"size:255"`
	LastName     string     `gorm:"size:255"`
	Country      string     `gorm:"size:64"`
	City         string     `gorm:"size:128"`
	Postcode     string     `gorm:"size:32"`
	CreatedAt    time.Time  `gorm:"not null"`
	LastActiveAt *time.Time `gorm:""`
}

// TableName returns the table name for CustomerModel
func (CustomerModel) TableName() string {
	return "customers"
}
