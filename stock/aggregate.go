/*
aggregate.go - Stock derived from the ledger

PURPOSE:
  Pure functions that turn a list of ledger rows into quantities. Nothing
  here touches a store: the inventory service loads rows and calls these,
  and tests use the same functions as their oracle.

FORMULA:
  stock = Σ(PURCHASE, CUSTOMER_RETURN) − Σ(SALE, SUPPLIER_RETURN)
        + Σ(STOCK_TRANSFER into a warehouse) − Σ(STOCK_TRANSFER out of a warehouse)
        + Σ(MANUAL_ADJUSTMENT, signed)

  over non-deleted rows. No rows means zero stock.

LIFECYCLE COUNTS:
  Returned and damaged apply the formula above to the rows carrying that
  status. Installed is the raw quantity sum of rows carrying INSTALLED.
  The asymmetry is intentional and must not be "fixed" here.
*/
package stock

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CurrentStock applies the stock formula to txs. Callers pass the rows of
// one product.
func (s Settings) CurrentStock(txs []Transaction) int {
	total := 0
	for _, tx := range txs {
		total += s.StockDelta(tx)
	}
	return total
}

// StockByProduct applies the stock formula per product.
func (s Settings) StockByProduct(txs []Transaction) map[ProductID]int {
	out := make(map[ProductID]int)
	for _, tx := range txs {
		out[tx.ProductID] += s.StockDelta(tx)
	}
	return out
}

type LifecycleCounts struct {
	Installed int `json:"installed"`
	Returned  int `json:"returned"`
	Damaged   int `json:"damaged"`
}

func (s Settings) LifecycleCounts(txs []Transaction) LifecycleCounts {
	var c LifecycleCounts
	for _, tx := range txs {
		if tx.IsDeleted() {
			continue
		}
		switch tx.LifecycleStatus {
		case LifecycleInstalled:
			c.Installed += tx.Quantity
		case LifecycleReturned:
			c.Returned += s.StockDelta(tx)
		case LifecycleDamaged:
			c.Damaged += s.StockDelta(tx)
		}
	}
	return c
}

// ProductStock is one product with its derived stock.
type ProductStock struct {
	Product  Product         `json:"product"`
	Stock    int             `json:"stock"`
	LowStock bool            `json:"lowStock"`
	Value    decimal.Decimal `json:"value"`
}

func (s Settings) Levels(products []Product, txs []Transaction) []ProductStock {
	byProduct := s.StockByProduct(txs)
	out := make([]ProductStock, 0, len(products))
	for _, p := range products {
		qty := byProduct[p.ID]
		out = append(out, ProductStock{
			Product:  p,
			Stock:    qty,
			LowStock: qty <= p.LowStockLimit,
			Value:    p.PurchasePrice.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return out
}

type DashboardTotals struct {
	TotalProducts      int             `json:"totalProducts"`
	TotalUnits         int             `json:"totalUnits"`
	LowStockCount      int             `json:"lowStockCount"`
	InventoryValue     decimal.Decimal `json:"inventoryValue"`
	Lifecycle          LifecycleCounts `json:"lifecycle"`
	RecentTransactions []Transaction   `json:"recentTransactions"`
}

// Totals computes the dashboard over an organization's products and
// ledger rows. Inactive products are ignored for the product, unit,
// low-stock and value figures; lifecycle counts cover every row.
func (s Settings) Totals(products []Product, txs []Transaction) DashboardTotals {
	totals := DashboardTotals{InventoryValue: decimal.Zero}

	active := make([]Product, 0, len(products))
	for _, p := range products {
		if p.IsActive {
			active = append(active, p)
		}
	}
	for _, level := range s.Levels(active, txs) {
		totals.TotalProducts++
		totals.TotalUnits += level.Stock
		if level.LowStock {
			totals.LowStockCount++
		}
		totals.InventoryValue = totals.InventoryValue.Add(level.Value)
	}

	totals.Lifecycle = s.LifecycleCounts(txs)
	totals.RecentTransactions = s.Recent(txs)
	return totals
}

// Recent returns the newest non-deleted rows, newest first.
func (s Settings) Recent(txs []Transaction) []Transaction {
	live := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.IsDeleted() {
			live = append(live, tx)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	if s.RecentTransactions >= 0 && len(live) > s.RecentTransactions {
		live = live[:s.RecentTransactions]
	}
	return live
}

// =============================================================================
// INSTANCE REPLAY
// =============================================================================

// InstanceState is what the ledger says about one serialized unit.
type InstanceState struct {
	Status            InstanceStatus
	BatchID           *BatchID
	LastTransactionID TransactionID
}

// ReplayInstance folds the non-deleted movements naming serial, oldest
// first, into the unit's current state. It returns false when no movement
// ever established the unit.
func (s Settings) ReplayInstance(serial string, txs []Transaction) (InstanceState, bool) {
	var (
		state InstanceState
		seen  bool
	)
	for _, tx := range txs {
		if tx.IsDeleted() || !tx.HasSerial(serial) {
			continue
		}
		next, ok := s.InstanceTransition(tx.Type, tx.SourceLocation, tx.DestinationLocation)
		if !ok {
			continue
		}
		if next == InstanceAvailable {
			state.BatchID = tx.BatchID
		} else if !seen {
			continue
		}
		state.Status = next
		state.LastTransactionID = tx.ID
		seen = true
	}
	return state, seen
}
