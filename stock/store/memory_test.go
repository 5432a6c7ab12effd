package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/stock"
	"github.com/warp/inventory-engine/stock/store"
)

func seed(t *testing.T, m *store.Memory) (stock.OrgID, stock.ProductID) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := m.WithTx(ctx, func(tx stock.Tx) error {
		if err := tx.CreateOrganization(ctx, stock.Organization{ID: "org-1", Name: "Acme", CreatedAt: now}); err != nil {
			return err
		}
		return tx.CreateProduct(ctx, stock.Product{
			ID: "p1", OrgID: "org-1", Name: "Cable", SKU: "CBL-1",
			PurchasePrice: decimal.NewFromInt(2), SellingPrice: decimal.NewFromInt(3),
			LowStockLimit: 5, IsActive: true, CreatedAt: now,
		})
	})
	require.NoError(t, err)
	return "org-1", "p1"
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: a product
	// WHEN: a transaction inserts a ledger row and then fails
	// THEN: the row is not visible afterwards
	ctx := context.Background()
	m := store.NewMemory()
	org, product := seed(t, m)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx stock.Tx) error {
		if err := tx.InsertTransaction(ctx, stock.Transaction{
			ID: "t1", OrgID: org, ProductID: product, Type: stock.TxPurchase, Quantity: 5,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	txs, err := m.ListTransactions(ctx, org, stock.TransactionFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestMemory_WithTxHonorsCancelledContext(t *testing.T) {
	m := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.WithTx(ctx, func(stock.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemory_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, product := seed(t, m)

	p, err := m.GetProduct(ctx, "org-2", product)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemory_DuplicateSKUIsConflict(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	org, _ := seed(t, m)

	err := m.WithTx(ctx, func(tx stock.Tx) error {
		return tx.CreateProduct(ctx, stock.Product{ID: "p2", OrgID: org, Name: "Other", SKU: "CBL-1", IsActive: true})
	})
	assert.ErrorIs(t, err, stock.ErrDuplicateSKU)
	assert.True(t, stock.IsConflict(err))
}

func TestMemory_ListTransactionsOrdering(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	org, product := seed(t, m)

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	deletedAt := base.Add(time.Hour)
	require.NoError(t, m.WithTx(ctx, func(tx stock.Tx) error {
		for i, id := range []stock.TransactionID{"t1", "t2", "t3"} {
			row := stock.Transaction{
				ID: id, OrgID: org, ProductID: product, Type: stock.TxPurchase, Quantity: 1,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			if id == "t2" {
				row.DeletedAt = &deletedAt
			}
			if err := tx.InsertTransaction(ctx, row); err != nil {
				return err
			}
		}
		return nil
	}))

	live, err := m.ListTransactions(ctx, org, stock.TransactionFilter{ProductID: product})
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, stock.TransactionID("t1"), live[0].ID)

	newest, err := m.ListTransactions(ctx, org, stock.TransactionFilter{IncludeDeleted: true, NewestFirst: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, stock.TransactionID("t3"), newest[0].ID)
	assert.Equal(t, stock.TransactionID("t2"), newest[1].ID)

	count, err := m.CountTransactions(ctx, org, product)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
