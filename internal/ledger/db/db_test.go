package db_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"club-pos/internal/ledger/db"
	"club-pos/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	ledgerDB, err := db.Open(ctx, db.DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ledgerDB.Close() })

	require.NoError(t, ledgerDB.Migrate(ctx, nil))
	return ledgerDB
}

func sale(id string) models.SaleRecord {
	return models.SaleRecord{
		ID:        id,
		SoldAt:    time.Date(2024, 6, 15, 19, 30, 5, 0, time.UTC),
		EventID:   "samstag",
		EventName: "Samstag",
		Lines: []models.SaleLine{
			{CategoryID: "kind", CategoryName: "Kind", UnitPrice: decimal.RequireFromString("6.00"), Quantity: 2},
			{CategoryID: "erwachsen", CategoryName: "Erwachsen", UnitPrice: decimal.RequireFromString("12.00"), Quantity: 1},
		},
		Total:         decimal.RequireFromString("24.00"),
		PaymentMethod: "Bar",
	}
}

func TestAppendAndGetSale(t *testing.T) {
	ledgerDB := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ledgerDB.Append(ctx, sale("sale-1")))

	got, err := ledgerDB.GetSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.Equal(t, "Samstag", got.EventName)
	assert.Equal(t, "2024-06-15", got.SaleDate)
	assert.Equal(t, "19:30:05", got.SaleTime)
	assert.Equal(t, 3, got.TicketCount)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(24)), "total was %s", got.Total)
	assert.Equal(t, "Bar", got.PaymentMethod)

	require.Len(t, got.Lines, 2)
	assert.Equal(t, "kind", got.Lines[0].CategoryID)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.Equal(t, "erwachsen", got.Lines[1].CategoryID)
	assert.True(t, got.Lines[1].UnitPrice.Equal(decimal.NewFromInt(12)))
}

func TestAppendDuplicateIsRejectedAtomically(t *testing.T) {
	ledgerDB := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ledgerDB.Append(ctx, sale("sale-1")))
	assert.Error(t, ledgerDB.Append(ctx, sale("sale-1")))

	count, err := ledgerDB.Bun.NewSelect().Model((*db.SaleLine)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetMissingSale(t *testing.T) {
	ledgerDB := setupTestDB(t)

	got, err := ledgerDB.GetSale(context.Background(), "nope")
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ledgerDB := setupTestDB(t)
	assert.NoError(t, ledgerDB.Migrate(context.Background(), nil))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := db.Open(context.Background(), "oracle", "", nil)
	assert.Error(t, err)
}
