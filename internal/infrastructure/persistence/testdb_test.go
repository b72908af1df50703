package persistence

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storefront/analytics/internal/infrastructure/persistence/models"
)

// newReportTestDB opens an in-memory database with the source and derived
// report tables migrated.
func newReportTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.CustomerModel{},
		&models.CategoryModel{},
		&models.ProductModel{},
		&models.CouponModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
		&models.OrderCouponModel{},
		&models.OrderTaxModel{},
		&models.OrderStatsModel{},
		&models.OrderProductModel{},
		&models.OrderCouponLookupModel{},
		&models.OrderTaxLookupModel{},
		&models.CustomerLookupModel{},
	))
	return db
}

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
