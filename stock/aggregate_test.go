package stock_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/stock"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(id string, typ stock.TransactionType, qty int, at time.Time) stock.Transaction {
	return stock.Transaction{
		ID:              stock.TransactionID(id),
		ProductID:       "p1",
		Type:            typ,
		Quantity:        qty,
		LifecycleStatus: stock.DeriveLifecycle(typ, ""),
		CreatedAt:       at,
	}
}

func TestCurrentStock_Empty(t *testing.T) {
	assert.Equal(t, 0, stock.DefaultSettings().CurrentStock(nil))
}

func TestCurrentStock_Formula(t *testing.T) {
	// GIVEN: purchase 10, sale 3, customer return 1, supplier return 2,
	//        adjustment -1, transfer out of a warehouse 2
	// THEN: 10 - 3 + 1 - 2 - 1 - 2 = 3
	s := stock.DefaultSettings()
	day := ts(2025, 3, 1)

	transfer := tx("t6", stock.TxStockTransfer, 2, day)
	transfer.SourceLocation = "Central Warehouse"
	transfer.DestinationLocation = "Customer site"

	txs := []stock.Transaction{
		tx("t1", stock.TxPurchase, 10, day),
		tx("t2", stock.TxSale, 3, day),
		tx("t3", stock.TxCustomerReturn, 1, day),
		tx("t4", stock.TxSupplierReturn, 2, day),
		tx("t5", stock.TxManualAdjustment, -1, day),
		transfer,
	}
	assert.Equal(t, 3, s.CurrentStock(txs))
}

// The stock of a random ledger equals the signed sum computed by hand,
// and soft-deleting a row changes stock by exactly that row's delta.
func TestCurrentStock_RandomLedgers(t *testing.T) {
	s := stock.DefaultSettings()
	rng := rand.New(rand.NewSource(42))
	locations := []string{"", "Main Warehouse", "Site A", "warehouse B", "Van"}

	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		txs := make([]stock.Transaction, 0, n)
		want := 0
		for i := 0; i < n; i++ {
			typ := stock.TransactionTypes[rng.Intn(len(stock.TransactionTypes))]
			qty := rng.Intn(20) + 1
			row := tx("x", typ, qty, ts(2025, 1, 1))
			if typ == stock.TxManualAdjustment && rng.Intn(2) == 0 {
				row.Quantity = -qty
			}
			if typ == stock.TxStockTransfer {
				row.SourceLocation = locations[rng.Intn(len(locations))]
				row.DestinationLocation = locations[rng.Intn(len(locations))]
			}
			want += expectedDelta(row)
			txs = append(txs, row)
		}
		require.Equal(t, want, s.CurrentStock(txs), "round %d", round)

		if n == 0 {
			continue
		}
		i := rng.Intn(n)
		delta := s.StockDelta(txs[i])
		deletedAt := ts(2025, 2, 1)
		txs[i].DeletedAt = &deletedAt
		require.Equal(t, want-delta, s.CurrentStock(txs), "round %d after delete", round)
	}
}

func expectedDelta(t stock.Transaction) int {
	switch t.Type {
	case stock.TxPurchase, stock.TxCustomerReturn:
		return t.Quantity
	case stock.TxSale, stock.TxSupplierReturn:
		return -t.Quantity
	case stock.TxManualAdjustment:
		return t.Quantity
	}
	in := containsWarehouse(t.DestinationLocation)
	out := containsWarehouse(t.SourceLocation)
	switch {
	case in && !out:
		return t.Quantity
	case out && !in:
		return -t.Quantity
	}
	return 0
}

func containsWarehouse(loc string) bool {
	return loc == "Main Warehouse" || loc == "warehouse B"
}

func TestLifecycleCounts_InstalledIsRawSum(t *testing.T) {
	// GIVEN: a sale stamped INSTALLED (qty 4), a purchase explicitly
	//        stamped RETURNED (qty 2), a sale stamped DAMAGED (qty 1)
	// THEN: installed counts the raw 4, returned +2, damaged -1
	s := stock.DefaultSettings()
	day := ts(2025, 1, 1)

	sale := tx("t1", stock.TxSale, 4, day)
	returned := tx("t2", stock.TxPurchase, 2, day)
	returned.LifecycleStatus = stock.LifecycleReturned
	damaged := tx("t3", stock.TxSale, 1, day)
	damaged.LifecycleStatus = stock.LifecycleDamaged

	got := s.LifecycleCounts([]stock.Transaction{sale, returned, damaged})
	assert.Equal(t, stock.LifecycleCounts{Installed: 4, Returned: 2, Damaged: -1}, got)
}

func TestTotals(t *testing.T) {
	s := stock.DefaultSettings()
	s.RecentTransactions = 2

	products := []stock.Product{
		{ID: "p1", LowStockLimit: 5, PurchasePrice: decimal.RequireFromString("2.50"), IsActive: true},
		{ID: "p2", LowStockLimit: 0, PurchasePrice: decimal.NewFromInt(10), IsActive: true},
		{ID: "p3", LowStockLimit: 5, PurchasePrice: decimal.NewFromInt(100), IsActive: false},
	}
	p2 := tx("t3", stock.TxPurchase, 3, ts(2025, 1, 3))
	p2.ProductID = "p2"
	p3 := tx("t4", stock.TxPurchase, 8, ts(2025, 1, 4))
	p3.ProductID = "p3"
	deletedAt := ts(2025, 1, 6)
	gone := tx("t5", stock.TxPurchase, 50, ts(2025, 1, 5))
	gone.DeletedAt = &deletedAt

	txs := []stock.Transaction{
		tx("t1", stock.TxPurchase, 10, ts(2025, 1, 1)),
		tx("t2", stock.TxSale, 6, ts(2025, 1, 2)),
		p2, p3, gone,
	}

	got := s.Totals(products, txs)
	assert.Equal(t, 2, got.TotalProducts)
	assert.Equal(t, 7, got.TotalUnits)
	assert.Equal(t, 1, got.LowStockCount) // p1 at 4 <= 5
	assert.True(t, decimal.NewFromInt(40).Equal(got.InventoryValue), "got %s", got.InventoryValue)
	require.Len(t, got.RecentTransactions, 2)
	assert.Equal(t, stock.TransactionID("t4"), got.RecentTransactions[0].ID)
	assert.Equal(t, stock.TransactionID("t3"), got.RecentTransactions[1].ID)
}

func TestLevels_LowStockIsInclusive(t *testing.T) {
	s := stock.DefaultSettings()
	products := []stock.Product{{ID: "p1", LowStockLimit: 5, PurchasePrice: decimal.NewFromInt(1)}}

	levels := s.Levels(products, []stock.Transaction{tx("t1", stock.TxPurchase, 5, ts(2025, 1, 1))})
	require.Len(t, levels, 1)
	assert.Equal(t, 5, levels[0].Stock)
	assert.True(t, levels[0].LowStock)

	levels = s.Levels(products, []stock.Transaction{tx("t1", stock.TxPurchase, 6, ts(2025, 1, 1))})
	assert.False(t, levels[0].LowStock)
}

func TestReplayInstance(t *testing.T) {
	s := stock.DefaultSettings()
	batch := stock.BatchID("b1")

	buy := tx("t1", stock.TxPurchase, 1, ts(2025, 1, 1))
	buy.SerialNumbers = stock.Serials{"A"}
	buy.BatchID = &batch
	sell := tx("t2", stock.TxSale, 1, ts(2025, 1, 2))
	sell.SerialNumbers = stock.Serials{"A"}
	ret := tx("t3", stock.TxCustomerReturn, 1, ts(2025, 1, 3))
	ret.SerialNumbers = stock.Serials{"A"}

	t.Run("last movement wins", func(t *testing.T) {
		state, ok := s.ReplayInstance("A", []stock.Transaction{buy, sell, ret})
		require.True(t, ok)
		assert.Equal(t, stock.InstanceSold, state.Status)
		assert.Equal(t, stock.TransactionID("t2"), state.LastTransactionID)
		assert.Equal(t, &batch, state.BatchID)
	})

	t.Run("deleted sale restores availability", func(t *testing.T) {
		deleted := sell
		at := ts(2025, 1, 4)
		deleted.DeletedAt = &at
		state, ok := s.ReplayInstance("A", []stock.Transaction{buy, deleted})
		require.True(t, ok)
		assert.Equal(t, stock.InstanceAvailable, state.Status)
		assert.Equal(t, stock.TransactionID("t1"), state.LastTransactionID)
	})

	t.Run("deleted purchase forgets the unit", func(t *testing.T) {
		deleted := buy
		at := ts(2025, 1, 4)
		deleted.DeletedAt = &at
		_, ok := s.ReplayInstance("A", []stock.Transaction{deleted, sell})
		assert.False(t, ok)
	})

	t.Run("other serials are ignored", func(t *testing.T) {
		_, ok := s.ReplayInstance("B", []stock.Transaction{buy, sell})
		assert.False(t, ok)
	})
}
