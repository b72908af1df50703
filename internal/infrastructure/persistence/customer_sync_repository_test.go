package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appreports "github.com/storefront/analytics/internal/application/reports"
	"github.com/storefront/analytics/internal/infrastructure/persistence/models"
)

func TestSyncCustomer(t *testing.T) {
	db := newReportTestDB(t)
	repo := NewGormCustomerSyncRepository(db, zap.NewNop())
	ctx := context.Background()

	customer := models.CustomerModel{
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "Smith",
		Country:   "NL",
		City:      "Utrecht",
		CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&customer).Error)

	lastOrderAt := time.Date(2025, time.November, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.OrderStatsModel{
		OrderID: 1, CustomerID: customer.ID, Status: "completed",
		DateCreated: time.Date(2025, time.October, 20, 9, 0, 0, 0, time.UTC),
		TotalSales:  mustDec("100"), NetTotal: mustDec("90"),
	}).Error)
	require.NoError(t, db.Create(&models.OrderStatsModel{
		OrderID: 2, CustomerID: customer.ID, Status: "completed",
		DateCreated: lastOrderAt,
		TotalSales:  mustDec("50"), NetTotal: mustDec("45"),
	}).Error)

	require.Equal(t, appreports.SyncSuccess, repo.SyncCustomer(ctx, customer.ID))

	var profile models.CustomerLookupModel
	require.NoError(t, db.First(&profile, "customer_id = ?", customer.ID).Error)
	assert.Equal(t, "jo@example.com", profile.Email)
	assert.Equal(t, 2, profile.OrdersCount)
	assert.True(t, mustDec("150").Equal(profile.TotalSpend))
	assert.True(t, mustDec("75").Equal(profile.AvgOrderValue))
	require.NotNil(t, profile.DateLastOrder)
	assert.WithinDuration(t, lastOrderAt, *profile.DateLastOrder, time.Second)
}

func TestSyncCustomerWithoutOrders(t *testing.T) {
	db := newReportTestDB(t)
	repo := NewGormCustomerSyncRepository(db, zap.NewNop())

	customer := models.CustomerModel{
		Email:     "new@example.com",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&customer).Error)

	require.Equal(t, appreports.SyncSuccess, repo.SyncCustomer(context.Background(), customer.ID))

	var profile models.CustomerLookupModel
	require.NoError(t, db.First(&profile, "customer_id = ?", customer.ID).Error)
	assert.Equal(t, 0, profile.OrdersCount)
	assert.True(t, profile.TotalSpend.IsZero())
	assert.True(t, profile.AvgOrderValue.IsZero())
	assert.Nil(t, profile.DateLastOrder)
}

func TestSyncCustomerMissing(t *testing.T) {
	db := newReportTestDB(t)
	repo := NewGormCustomerSyncRepository(db, zap.NewNop())

	assert.Equal(t, appreports.SyncFailure, repo.SyncCustomer(context.Background(), 999))
}
