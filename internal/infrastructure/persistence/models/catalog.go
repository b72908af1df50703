package models

import "github.com/shopspring/decimal"

// ProductModel maps to the platform products table
type ProductModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	CategoryID int64           `gorm:"index;not null"`
	Name       string          `gorm:"size:255;not null"`
	Price      decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for ProductModel
func (ProductModel) TableName() string {
	return "products"
}

// CategoryModel maps to the platform categories table
type CategoryModel struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"size:255;not null"`
}

// TableName returns the table name for CategoryModel
func (CategoryModel) TableName() string {
	return "categories"
}

// CouponModel maps to the platform coupons table
type CouponModel struct {
	ID     int64           `gorm:"primaryKey;autoIncrement"`
	Code   string          `gorm:"size:64;not null;uniqueIndex"`
	Amount decimal.Decimal `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for CouponModel
func (CouponModel) TableName() string {
	return "coupons"
}
