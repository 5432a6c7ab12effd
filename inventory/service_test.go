package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/stock"
	"github.com/warp/inventory-engine/stock/store"
	"github.com/warp/inventory-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const user stock.UserID = "user-1"

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Every call moves a millisecond so rows get distinct timestamps.
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	ctx   context.Context
	svc   *inventory.Service
	store stock.Store
	clock *clock
	org   stock.OrgID
}

// backends runs fn once per store implementation.
func backends(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newFixture(t, store.NewMemory()))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, newFixture(t, s))
	})
}

func newFixture(t *testing.T, s stock.Store) *fixture {
	t.Helper()
	c := newClock()
	f := &fixture{
		ctx:   context.Background(),
		store: s,
		clock: c,
		svc:   inventory.New(s, inventory.WithClock(c.Now)),
	}
	org, err := f.svc.CreateOrganization(f.ctx, "Acme Networks")
	require.NoError(t, err)
	f.org = org.ID
	return f
}

func (f *fixture) product(t *testing.T, sku string, opts ...func(*inventory.ProductInput)) stock.ProductID {
	t.Helper()
	in := inventory.ProductInput{
		Name:          "Product " + sku,
		SKU:           sku,
		PurchasePrice: decimal.NewFromInt(10),
		SellingPrice:  decimal.NewFromInt(15),
	}
	for _, opt := range opts {
		opt(&in)
	}
	p, err := f.svc.CreateProduct(f.ctx, f.org, user, in)
	require.NoError(t, err)
	return p.ID
}

func serialized(in *inventory.ProductInput) { in.IsSerialized = true }

func batchTracked(in *inventory.ProductInput) { in.IsBatchTracked = true }

func lowStock(n int) func(*inventory.ProductInput) {
	return func(in *inventory.ProductInput) { in.LowStockLimit = &n }
}

func (f *fixture) record(t *testing.T, in inventory.TransactionInput) *stock.Transaction {
	t.Helper()
	tx, err := f.svc.RecordTransaction(f.ctx, f.org, user, in)
	require.NoError(t, err)
	return tx
}

func (f *fixture) stock(t *testing.T, id stock.ProductID) int {
	t.Helper()
	n, err := f.svc.CurrentStock(f.ctx, f.org, id)
	require.NoError(t, err)
	return n
}

func (f *fixture) ledger(t *testing.T, id stock.ProductID) []stock.Transaction {
	t.Helper()
	rows, err := f.svc.ListTransactions(f.ctx, f.org, stock.TransactionFilter{ProductID: id, IncludeDeleted: true})
	require.NoError(t, err)
	return rows
}

func purchase(id stock.ProductID, qty int, serials ...string) inventory.TransactionInput {
	return inventory.TransactionInput{ProductID: id, Type: stock.TxPurchase, Quantity: qty, SerialNumbers: serials}
}

func sale(id stock.ProductID, qty int, serials ...string) inventory.TransactionInput {
	return inventory.TransactionInput{ProductID: id, Type: stock.TxSale, Quantity: qty, SerialNumbers: serials}
}

func serialsOf(instances []stock.ProductInstance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.SerialNumber)
	}
	return out
}
