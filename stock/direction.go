/*
direction.go - Inbound/outbound classification of ledger rows

PURPOSE:
  A transaction's direction decides three things:
    1. Whether stock sufficiency must be checked before recording (outbound)
    2. Whether serial numbers must currently be AVAILABLE (outbound)
    3. What happens to instances afterwards (inbound vs outbound)

RULES:
  outbound: SALE, SUPPLIER_RETURN, or STOCK_TRANSFER whose source location
            contains the warehouse marker (case-insensitive)
  inbound:  PURCHASE, or STOCK_TRANSFER whose destination location contains
            the warehouse marker

  CUSTOMER_RETURN raises stock but is NOT inbound for instances: a returned
  serial keeps whatever status its last inbound/outbound event gave it.

  A transfer between two warehouses is both inbound and outbound. It is
  validated as outbound, restores its serials to AVAILABLE, and nets to zero
  in the stock formula.
*/
package stock

import "strings"

// Direction is the net effect of a transaction on stock.
type Direction int

const (
	Neutral Direction = iota
	In
	Out
)

func (d Direction) String() string {
	switch d {
	case In:
		return "IN"
	case Out:
		return "OUT"
	default:
		return "NEUTRAL"
	}
}

// IsWarehouse reports whether a location names a warehouse.
func (s Settings) IsWarehouse(location string) bool {
	if s.WarehouseMarker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(location), strings.ToLower(s.WarehouseMarker))
}

// IsOutbound reports whether recording the movement requires stock on hand.
func (s Settings) IsOutbound(t TransactionType, source, destination string) bool {
	switch t {
	case TxSale, TxSupplierReturn:
		return true
	case TxStockTransfer:
		return s.IsWarehouse(source)
	}
	return false
}

// IsInbound reports whether the movement puts serialized units back on the shelf.
func (s Settings) IsInbound(t TransactionType, source, destination string) bool {
	switch t {
	case TxPurchase:
		return true
	case TxStockTransfer:
		return s.IsWarehouse(destination)
	}
	return false
}

// DirectionOf returns the net stock direction of a movement. Manual
// adjustments are Neutral: their signed quantity is applied as is.
func (s Settings) DirectionOf(t TransactionType, source, destination string) Direction {
	switch t {
	case TxPurchase, TxCustomerReturn:
		return In
	case TxSale, TxSupplierReturn:
		return Out
	case TxStockTransfer:
		in, out := s.IsWarehouse(destination), s.IsWarehouse(source)
		switch {
		case in && !out:
			return In
		case out && !in:
			return Out
		}
	}
	return Neutral
}

// StockDelta is the signed contribution of one transaction to stock.
// Soft-deleted transactions contribute nothing.
func (s Settings) StockDelta(tx Transaction) int {
	if tx.IsDeleted() {
		return 0
	}
	if tx.Type == TxManualAdjustment {
		return tx.Quantity
	}
	switch s.DirectionOf(tx.Type, tx.SourceLocation, tx.DestinationLocation) {
	case In:
		return tx.Quantity
	case Out:
		return -tx.Quantity
	}
	return 0
}
