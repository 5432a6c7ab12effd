package stock

import (
	"math"
	"time"
)

// MaxQuantity bounds the size of one movement and the stock of one product,
// keeping ledger sums clear of integer overflow.
const MaxQuantity = math.MaxInt32

// Settings are the business knobs of the engine. They are passed explicitly
// to every component that needs them.
type Settings struct {
	// WarehouseMarker is matched case-insensitively against transfer
	// locations to decide direction.
	WarehouseMarker string

	// DefaultLowStockLimit applies to products created without a limit.
	DefaultLowStockLimit int

	// HistoricalLock is how long after creation a transaction can still be
	// edited or deleted. Zero disables the lock.
	HistoricalLock time.Duration

	// RecentTransactions is how many rows the dashboard lists.
	RecentTransactions int
}

func DefaultSettings() Settings {
	return Settings{
		WarehouseMarker:      "Warehouse",
		DefaultLowStockLimit: 5,
		HistoricalLock:       30 * 24 * time.Hour,
		RecentTransactions:   10,
	}
}
