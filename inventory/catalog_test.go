package inventory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/stock"
)

func TestProduct_DefaultsAndDuplicateSKU(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		p, err := f.svc.CreateProduct(f.ctx, f.org, user, inventory.ProductInput{Name: "Patch panel", SKU: "PP-24"})
		require.NoError(t, err)
		assert.Equal(t, f.svc.Settings().DefaultLowStockLimit, p.LowStockLimit)
		assert.True(t, p.IsActive)

		_, err = f.svc.CreateProduct(f.ctx, f.org, user, inventory.ProductInput{Name: "Other", SKU: "PP-24"})
		assert.ErrorIs(t, err, stock.ErrDuplicateSKU)

		// The same SKU is free in another organization.
		other, err := f.svc.CreateOrganization(f.ctx, "Other")
		require.NoError(t, err)
		_, err = f.svc.CreateProduct(f.ctx, other.ID, user, inventory.ProductInput{Name: "Patch panel", SKU: "PP-24"})
		require.NoError(t, err)

		_, err = f.svc.CreateProduct(f.ctx, "ghost-org", user, inventory.ProductInput{Name: "X", SKU: "X"})
		assert.True(t, stock.IsNotFound(err))

		_, err = f.svc.CreateProduct(f.ctx, f.org, user, inventory.ProductInput{Name: "X", SKU: "X-1", PurchasePrice: decimal.NewFromInt(-1)})
		assert.True(t, stock.IsValidation(err))
	})
}

func TestProduct_PriceLockedOnceUsed(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: a product without transactions
		p := f.product(t, "PRC-1")
		price := decimal.NewFromInt(11)

		// THEN: its price can change
		updated, err := f.svc.UpdateProduct(f.ctx, f.org, user, p, inventory.ProductUpdate{PurchasePrice: &price})
		require.NoError(t, err)
		assert.True(t, price.Equal(updated.PurchasePrice))

		// GIVEN: a recorded purchase
		f.record(t, purchase(p, 1))

		// THEN: prices are locked, other fields are not
		higher := decimal.NewFromInt(12)
		_, err = f.svc.UpdateProduct(f.ctx, f.org, user, p, inventory.ProductUpdate{SellingPrice: &higher})
		assert.ErrorIs(t, err, stock.ErrPriceLocked)

		name := "Renamed"
		updated, err = f.svc.UpdateProduct(f.ctx, f.org, user, p, inventory.ProductUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)

		entries, err := f.svc.History(f.ctx, f.org, stock.AuditFilter{EntityType: stock.EntityProduct, EntityID: string(p)})
		require.NoError(t, err)
		assert.Len(t, entries, 3) // create + two updates
	})
}

func TestDashboardTotals(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: two products, one low on stock, and one inactive product
		a := f.product(t, "DASH-A", lowStock(5))
		b := f.product(t, "DASH-B", lowStock(1))
		c := f.product(t, "DASH-C")

		f.record(t, purchase(a, 10))
		f.record(t, sale(a, 7))
		f.record(t, purchase(b, 4))
		f.record(t, purchase(c, 100))
		f.record(t, inventory.TransactionInput{ProductID: b, Type: stock.TxCustomerReturn, Quantity: 1})

		inactive := false
		_, err := f.svc.UpdateProduct(f.ctx, f.org, user, c, inventory.ProductUpdate{IsActive: &inactive})
		require.NoError(t, err)

		totals, err := f.svc.DashboardTotals(f.ctx, f.org)
		require.NoError(t, err)

		// THEN: inactive products do not count toward totals
		assert.Equal(t, 2, totals.TotalProducts)
		assert.Equal(t, 8, totals.TotalUnits)
		assert.Equal(t, 1, totals.LowStockCount)
		assert.True(t, decimal.NewFromInt(80).Equal(totals.InventoryValue), "got %s", totals.InventoryValue)
		assert.Equal(t, 7, totals.Lifecycle.Installed)
		assert.Equal(t, 1, totals.Lifecycle.Returned)
		require.Len(t, totals.RecentTransactions, 5)
		assert.Equal(t, stock.TxCustomerReturn, totals.RecentTransactions[0].Type)
	})
}

func TestDashboardTotals_EmptyOrganization(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		totals, err := f.svc.DashboardTotals(f.ctx, f.org)
		require.NoError(t, err)
		assert.Zero(t, totals.TotalProducts)
		assert.True(t, totals.InventoryValue.IsZero())
		assert.Empty(t, totals.RecentTransactions)
	})
}

func TestClients(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		_, err := f.svc.CreateClient(f.ctx, f.org, inventory.ClientInput{Name: " "})
		assert.True(t, stock.IsValidation(err))

		_, err = f.svc.CreateClient(f.ctx, f.org, inventory.ClientInput{Name: "Zeta Hotel"})
		require.NoError(t, err)
		_, err = f.svc.CreateClient(f.ctx, f.org, inventory.ClientInput{Name: "Alpha Bank", ContactEmail: "it@alpha.example"})
		require.NoError(t, err)

		clients, err := f.svc.ListClients(f.ctx, f.org)
		require.NoError(t, err)
		require.Len(t, clients, 2)
		assert.Equal(t, "Alpha Bank", clients[0].Name)
	})
}
