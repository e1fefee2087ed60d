package customers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/pkg/db/dbtest"
	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
)

func insertOrder(t *testing.T, db *gorm.DB, number, phone string, total int64) {
	t.Helper()
	order := models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		CustomerName:    "Buyer",
		CustomerPhone:   phone,
		ShippingAddress: "Street 1",
		City:            "Lahore",
		PaymentMethod:   enums.PaymentMethodCOD,
		Subtotal:        decimal.NewFromInt(total),
		DeliveryFee:     decimal.Zero,
		Discount:        decimal.Zero,
		Total:           decimal.NewFromInt(total),
		Status:          enums.OrderStatusPending,
	}
	require.NoError(t, db.Omit("Items").Create(&order).Error)
}

func TestFindDrift(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	insertOrder(t, db, "FF-100001", "0300", 500)
	_, err := repo.Upsert(ctx, Entry{Phone: "0300", Name: "In sync", City: "Lahore", OrderTotal: decimal.NewFromInt(500)}, at)
	require.NoError(t, err)

	insertOrder(t, db, "FF-100002", "0301", 700)
	insertOrder(t, db, "FF-100003", "0301", 300)
	_, err = repo.Upsert(ctx, Entry{Phone: "0301", Name: "Missed one", City: "Lahore", OrderTotal: decimal.NewFromInt(700)}, at)
	require.NoError(t, err)

	insertOrder(t, db, "FF-100004", "0302", 900)

	drift, err := repo.FindDrift(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drift, 2)

	assert.Equal(t, "0301", drift[0].Phone)
	assert.Equal(t, 1, drift[0].LedgerOrders)
	assert.Equal(t, 2, drift[0].ActualOrders)
	assert.Equal(t, 1, drift[0].MissingOrders())
	assert.True(t, drift[0].ActualSpent.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, "0302", drift[1].Phone)
	assert.Equal(t, 0, drift[1].LedgerOrders)
	assert.True(t, drift[1].LedgerSpent.IsZero())
}
