package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/stock"
	"github.com/warp/inventory-engine/store/sqlite"
	"github.com/warp/inventory-engine/store/sqlstore"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (context.Context, *sqlstore.Store) {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	err = s.WithTx(ctx, func(tx stock.Tx) error {
		if err := tx.CreateOrganization(ctx, stock.Organization{ID: "org-1", Name: "Acme", CreatedAt: t0}); err != nil {
			return err
		}
		return tx.CreateProduct(ctx, stock.Product{
			ID: "p1", OrgID: "org-1", Name: "Router", SKU: "RTR-1",
			PurchasePrice: decimal.RequireFromString("80.50"), SellingPrice: decimal.NewFromInt(120),
			LowStockLimit: 2, IsSerialized: true, IsActive: true, CreatedAt: t0,
		})
	})
	require.NoError(t, err)
	return ctx, s
}

func TestRoundTrip(t *testing.T) {
	ctx, s := setup(t)

	client := stock.ClientID("c1")
	err := s.WithTx(ctx, func(tx stock.Tx) error {
		if err := tx.CreateClient(ctx, stock.Client{ID: client, OrgID: "org-1", Name: "Hotel", CreatedAt: t0}); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, stock.Transaction{
			ID: "t1", OrgID: "org-1", ProductID: "p1", Type: stock.TxSale, Quantity: 2,
			ClientID: &client, SerialNumbers: stock.Serials{"A", "B"}, LifecycleStatus: stock.LifecycleInstalled,
			UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("119.99")),
			CreatedBy: "user-1", CreatedAt: t0,
		}); err != nil {
			return err
		}
		if err := tx.UpsertInstance(ctx, stock.ProductInstance{
			ID: "i1", ProductID: "p1", SerialNumber: "A", Status: stock.InstanceSold, LastTransactionID: "t1", UpdatedAt: t0,
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, stock.AuditEntry{
			ID: "a1", OrgID: "org-1", EntityType: stock.EntityTransaction, EntityID: "t1",
			Action: stock.AuditCreate, ActorID: "user-1",
			NewValues: stock.Values{"quantity": 2}, CreatedAt: t0,
		})
	})
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, "org-1", "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, decimal.RequireFromString("80.5").Equal(p.PurchasePrice))
	assert.True(t, p.IsSerialized)

	got, err := s.GetTransaction(ctx, "org-1", "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stock.Serials{"A", "B"}, got.SerialNumbers)
	require.NotNil(t, got.ClientID)
	assert.Equal(t, client, *got.ClientID)
	assert.Nil(t, got.BatchID)
	assert.True(t, got.UnitPrice.Valid)
	assert.True(t, decimal.RequireFromString("119.99").Equal(got.UnitPrice.Decimal))
	assert.True(t, t0.Equal(got.CreatedAt))
	assert.Nil(t, got.DeletedAt)

	inst, err := s.GetInstance(ctx, "p1", "A")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, stock.InstanceSold, inst.Status)

	// A second upsert replaces the status of the same serial.
	err = s.WithTx(ctx, func(tx stock.Tx) error {
		return tx.UpsertInstance(ctx, stock.ProductInstance{
			ID: "i2", ProductID: "p1", SerialNumber: "A", Status: stock.InstanceAvailable, LastTransactionID: "t1", UpdatedAt: t0,
		})
	})
	require.NoError(t, err)
	all, err := s.ListInstances(ctx, "p1", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, stock.InstanceAvailable, all[0].Status)

	entries, err := s.ListAudit(ctx, "org-1", stock.AuditFilter{EntityID: "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].OldValues)
	assert.EqualValues(t, 2, entries[0].NewValues["quantity"])

	missing, err := s.GetTransaction(ctx, "org-2", "t1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUniqueViolationIsConflict(t *testing.T) {
	ctx, s := setup(t)

	err := s.WithTx(ctx, func(tx stock.Tx) error {
		return tx.CreateProduct(ctx, stock.Product{ID: "p2", OrgID: "org-1", Name: "Copy", SKU: "RTR-1", CreatedAt: t0})
	})
	assert.ErrorIs(t, err, stock.ErrDuplicateSKU)
	assert.True(t, stock.IsConflict(err))

	// The failed transaction left nothing behind.
	products, err := s.ListProducts(ctx, "org-1", stock.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx, s := setup(t)

	err := s.WithTx(ctx, func(tx stock.Tx) error {
		return tx.InsertTransaction(ctx, stock.Transaction{
			ID: "t9", OrgID: "org-1", ProductID: "ghost", Type: stock.TxPurchase, Quantity: 1,
			LifecycleStatus: stock.LifecyclePurchased, CreatedBy: "user-1", CreatedAt: t0,
		})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, stock.ErrStore)
}

func TestDialect(t *testing.T) {
	d := sqlite.Dialect{}
	assert.Equal(t, "", d.ForUpdate())
	assert.Equal(t, "rowid", d.OrderColumn())
	assert.True(t, d.SingleWriter())
}
