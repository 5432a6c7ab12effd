/*
dto.go - Request and response shapes of the HTTP API

PURPOSE:
  Requests are decoded into these structs and converted into service
  inputs. Responses reuse the domain types, which carry JSON tags, except
  where a response combines several values.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/stock"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type CreateProductRequest struct {
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	Category       string          `json:"category"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	SellingPrice   decimal.Decimal `json:"sellingPrice"`
	LowStockLimit  *int            `json:"lowStockLimit,omitempty"`
	IsSerialized   bool            `json:"isSerialized"`
	IsBatchTracked bool            `json:"isBatchTracked"`
}

type UpdateProductRequest struct {
	Name          *string          `json:"name,omitempty"`
	SKU           *string          `json:"sku,omitempty"`
	Category      *string          `json:"category,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
	SellingPrice  *decimal.Decimal `json:"sellingPrice,omitempty"`
	LowStockLimit *int             `json:"lowStockLimit,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

type CreateBatchRequest struct {
	BatchNumber    string     `json:"batchNumber"`
	ManufacturedAt *time.Time `json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

type CreateClientRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail"`
	Phone        string `json:"phone"`
}

type RecordTransactionRequest struct {
	ProductID           string           `json:"productId"`
	Type                string           `json:"type"`
	Quantity            int              `json:"quantity"`
	ClientID            *string          `json:"clientId,omitempty"`
	BatchID             *string          `json:"batchId,omitempty"`
	SerialNumbers       []string         `json:"serialNumbers,omitempty"`
	Status              string           `json:"status,omitempty"`
	SourceLocation      string           `json:"sourceLocation,omitempty"`
	DestinationLocation string           `json:"destinationLocation,omitempty"`
	ReferenceNumber     string           `json:"referenceNumber,omitempty"`
	UnitPrice           *decimal.Decimal `json:"unitPrice,omitempty"`
	Notes               string           `json:"notes,omitempty"`
}

type EditTransactionRequest struct {
	Quantity        *int             `json:"quantity,omitempty"`
	LifecycleStatus *string          `json:"lifecycleStatus,omitempty"`
	ClientID        *string          `json:"clientId,omitempty"`
	ReferenceNumber *string          `json:"referenceNumber,omitempty"`
	UnitPrice       *decimal.Decimal `json:"unitPrice,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	Reason          string           `json:"reason"`
}

type DeleteTransactionRequest struct {
	Reason string `json:"reason"`
}

type PurchaseOrderItemRequest struct {
	ProductID     string          `json:"productId"`
	Quantity      int             `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	BatchID       *string         `json:"batchId,omitempty"`
	SerialNumbers []string        `json:"serialNumbers,omitempty"`
}

type CreatePurchaseOrderRequest struct {
	PONumber     string                     `json:"poNumber"`
	SupplierName string                     `json:"supplierName"`
	ExpectedAt   *time.Time                 `json:"expectedAt,omitempty"`
	Notes        string                     `json:"notes,omitempty"`
	Items        []PurchaseOrderItemRequest `json:"items"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type StockResponse struct {
	ProductID     stock.ProductID `json:"productId"`
	Stock         int             `json:"stock"`
	LowStockLimit int             `json:"lowStockLimit"`
	LowStock      bool            `json:"lowStock"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func (req RecordTransactionRequest) toInput() inventory.TransactionInput {
	in := inventory.TransactionInput{
		ProductID:           stock.ProductID(req.ProductID),
		Type:                stock.TransactionType(req.Type),
		Quantity:            req.Quantity,
		ClientID:            clientIDPtr(req.ClientID),
		BatchID:             batchIDPtr(req.BatchID),
		SerialNumbers:       req.SerialNumbers,
		Status:              req.Status,
		SourceLocation:      req.SourceLocation,
		DestinationLocation: req.DestinationLocation,
		ReferenceNumber:     req.ReferenceNumber,
		Notes:               req.Notes,
	}
	if req.UnitPrice != nil {
		in.UnitPrice = decimal.NewNullDecimal(*req.UnitPrice)
	}
	return in
}

func (req EditTransactionRequest) toChanges() inventory.TransactionChanges {
	c := inventory.TransactionChanges{
		Quantity:        req.Quantity,
		LifecycleStatus: req.LifecycleStatus,
		ReferenceNumber: req.ReferenceNumber,
		UnitPrice:       req.UnitPrice,
		Notes:           req.Notes,
	}
	if req.ClientID != nil {
		id := stock.ClientID(*req.ClientID)
		c.ClientID = &id
	}
	return c
}

func (req CreatePurchaseOrderRequest) toInput() inventory.PurchaseOrderInput {
	in := inventory.PurchaseOrderInput{
		PONumber:     req.PONumber,
		SupplierName: req.SupplierName,
		ExpectedAt:   req.ExpectedAt,
		Notes:        req.Notes,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, inventory.POItemInput{
			ProductID:     stock.ProductID(item.ProductID),
			Quantity:      item.Quantity,
			UnitCost:      item.UnitCost,
			BatchID:       batchIDPtr(item.BatchID),
			SerialNumbers: item.SerialNumbers,
		})
	}
	return in
}

func clientIDPtr(s *string) *stock.ClientID {
	if s == nil || *s == "" {
		return nil
	}
	id := stock.ClientID(*s)
	return &id
}

func batchIDPtr(s *string) *stock.BatchID {
	if s == nil || *s == "" {
		return nil
	}
	id := stock.BatchID(*s)
	return &id
}
