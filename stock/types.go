/*
types.go - Core domain types for the stock ledger

PURPOSE:
  Defines the entities every other package speaks in: products, ledger
  transactions, serialized instances, batches, clients, purchase orders and
  audit entries. Stock is never stored on any of them. It is derived from
  the transaction log by the functions in aggregate.go.

TENANCY:
  Every top-level row carries an OrgID. Stores scope each lookup by it, so a
  row owned by another organization is indistinguishable from a missing one.

MONEY:
  Prices and costs use shopspring/decimal. Quantities are plain ints.

SEE ALSO:
  - direction.go: inbound/outbound classification
  - lifecycle.go: lifecycle status derivation
  - aggregate.go: stock formula
*/
package stock

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	OrgID           string
	UserID          string
	ProductID       string
	TransactionID   string
	InstanceID      string
	BatchID         string
	ClientID        string
	PurchaseOrderID string
	POItemID        string
	AuditID         string
)

// NewID returns a random opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// ENUMERATIONS
// =============================================================================

// TransactionType is the kind of stock movement a ledger row records.
type TransactionType string

const (
	TxPurchase         TransactionType = "PURCHASE"
	TxSale             TransactionType = "SALE"
	TxCustomerReturn   TransactionType = "CUSTOMER_RETURN"
	TxSupplierReturn   TransactionType = "SUPPLIER_RETURN"
	TxManualAdjustment TransactionType = "MANUAL_ADJUSTMENT"
	TxStockTransfer    TransactionType = "STOCK_TRANSFER"
)

// TransactionTypes lists every known type in declaration order.
var TransactionTypes = []TransactionType{
	TxPurchase, TxSale, TxCustomerReturn, TxSupplierReturn, TxManualAdjustment, TxStockTransfer,
}

func (t TransactionType) IsValid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Lifecycle is the lifecycle status stamped on each transaction.
type Lifecycle string

const (
	LifecyclePurchased Lifecycle = "PURCHASED"
	LifecycleInstalled Lifecycle = "INSTALLED"
	LifecycleReturned  Lifecycle = "RETURNED"
	LifecycleDamaged   Lifecycle = "DAMAGED"
)

// InstanceStatus is the state of one serialized unit.
type InstanceStatus string

const (
	InstanceAvailable   InstanceStatus = "AVAILABLE"
	InstanceSold        InstanceStatus = "SOLD"
	InstanceDamaged     InstanceStatus = "DAMAGED"
	InstanceTransferred InstanceStatus = "TRANSFERRED"
)

// POStatus is the state of a purchase order.
type POStatus string

const (
	PODraft     POStatus = "DRAFT"
	POOpen      POStatus = "OPEN"
	POReceived  POStatus = "RECEIVED"
	POCancelled POStatus = "CANCELLED"
)

// AuditAction names what happened to an audited entity.
type AuditAction string

const (
	AuditCreate  AuditAction = "CREATE"
	AuditEdit    AuditAction = "EDIT"
	AuditDelete  AuditAction = "DELETE"
	AuditReceive AuditAction = "RECEIVE"
	AuditUpdate  AuditAction = "UPDATE"
)

// EntityType names the kind of row an audit entry refers to.
type EntityType string

const (
	EntityTransaction   EntityType = "transaction"
	EntityPurchaseOrder EntityType = "purchase_order"
	EntityProduct       EntityType = "product"
)

// =============================================================================
// ENTITIES
// =============================================================================

type Organization struct {
	ID        OrgID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Product struct {
	ID             ProductID       `db:"id" json:"id"`
	OrgID          OrgID           `db:"org_id" json:"orgId"`
	Name           string          `db:"name" json:"name"`
	SKU            string          `db:"sku" json:"sku"`
	Category       string          `db:"category" json:"category"`
	PurchasePrice  decimal.Decimal `db:"purchase_price" json:"purchasePrice"`
	SellingPrice   decimal.Decimal `db:"selling_price" json:"sellingPrice"`
	LowStockLimit  int             `db:"low_stock_limit" json:"lowStockLimit"`
	IsSerialized   bool            `db:"is_serialized" json:"isSerialized"`
	IsBatchTracked bool            `db:"is_batch_tracked" json:"isBatchTracked"`
	IsActive       bool            `db:"is_active" json:"isActive"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// Transaction is one row of the stock ledger. Rows are never physically
// removed: DeletedAt marks a soft delete, EditedAt an in-place correction.
type Transaction struct {
	ID                  TransactionID       `db:"id" json:"id"`
	OrgID               OrgID               `db:"org_id" json:"orgId"`
	ProductID           ProductID           `db:"product_id" json:"productId"`
	Type                TransactionType     `db:"tx_type" json:"type"`
	Quantity            int                 `db:"quantity" json:"quantity"`
	ClientID            *ClientID           `db:"client_id" json:"clientId,omitempty"`
	BatchID             *BatchID            `db:"batch_id" json:"batchId,omitempty"`
	SerialNumbers       Serials             `db:"serial_numbers" json:"serialNumbers,omitempty"`
	LifecycleStatus     Lifecycle           `db:"lifecycle_status" json:"lifecycleStatus"`
	SourceLocation      string              `db:"source_location" json:"sourceLocation,omitempty"`
	DestinationLocation string              `db:"destination_location" json:"destinationLocation,omitempty"`
	ReferenceNumber     string              `db:"reference_number" json:"referenceNumber,omitempty"`
	UnitPrice           decimal.NullDecimal `db:"unit_price" json:"unitPrice"`
	Notes               string              `db:"notes" json:"notes,omitempty"`
	CreatedBy           UserID              `db:"created_by" json:"createdBy"`
	CreatedAt           time.Time           `db:"created_at" json:"createdAt"`
	EditedAt            *time.Time          `db:"edited_at" json:"editedAt,omitempty"`
	EditedBy            UserID              `db:"edited_by" json:"editedBy,omitempty"`
	DeletedAt           *time.Time          `db:"deleted_at" json:"deletedAt,omitempty"`
	DeletedBy           UserID              `db:"deleted_by" json:"deletedBy,omitempty"`
}

func (t Transaction) IsDeleted() bool { return t.DeletedAt != nil }

// HasSerial reports whether the transaction names the given serial.
func (t Transaction) HasSerial(serial string) bool {
	for _, s := range t.SerialNumbers {
		if s == serial {
			return true
		}
	}
	return false
}

type ProductInstance struct {
	ID                InstanceID     `db:"id" json:"id"`
	ProductID         ProductID      `db:"product_id" json:"productId"`
	SerialNumber      string         `db:"serial_number" json:"serialNumber"`
	Status            InstanceStatus `db:"status" json:"status"`
	BatchID           *BatchID       `db:"batch_id" json:"batchId,omitempty"`
	LastTransactionID TransactionID  `db:"last_transaction_id" json:"lastTransactionId"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

type Batch struct {
	ID             BatchID    `db:"id" json:"id"`
	ProductID      ProductID  `db:"product_id" json:"productId"`
	BatchNumber    string     `db:"batch_number" json:"batchNumber"`
	ManufacturedAt *time.Time `db:"manufactured_at" json:"manufacturedAt,omitempty"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

type Client struct {
	ID           ClientID  `db:"id" json:"id"`
	OrgID        OrgID     `db:"org_id" json:"orgId"`
	Name         string    `db:"name" json:"name"`
	ContactEmail string    `db:"contact_email" json:"contactEmail,omitempty"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type PurchaseOrder struct {
	ID           PurchaseOrderID `db:"id" json:"id"`
	OrgID        OrgID           `db:"org_id" json:"orgId"`
	PONumber     string          `db:"po_number" json:"poNumber"`
	SupplierName string          `db:"supplier_name" json:"supplierName"`
	Status       POStatus        `db:"status" json:"status"`
	ExpectedAt   *time.Time      `db:"expected_at" json:"expectedAt,omitempty"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	CreatedBy    UserID          `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	ReceivedAt   *time.Time      `db:"received_at" json:"receivedAt,omitempty"`
	ReceivedBy   UserID          `db:"received_by" json:"receivedBy,omitempty"`
	Items        []POItem        `db:"-" json:"items"`
}

// Total is the sum of quantity x unit cost over all lines.
func (po PurchaseOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range po.Items {
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

type POItem struct {
	ID               POItemID        `db:"id" json:"id"`
	POID             PurchaseOrderID `db:"po_id" json:"poId"`
	ProductID        ProductID       `db:"product_id" json:"productId"`
	Quantity         int             `db:"quantity" json:"quantity"`
	UnitCost         decimal.Decimal `db:"unit_cost" json:"unitCost"`
	ReceivedQuantity int             `db:"received_quantity" json:"receivedQuantity"`
	BatchID          *BatchID        `db:"batch_id" json:"batchId,omitempty"`
	SerialNumbers    Serials         `db:"serial_numbers" json:"serialNumbers,omitempty"`
}

// AuditEntry is an append-only record of a change. EDIT and DELETE entries
// always carry a reason.
type AuditEntry struct {
	ID         AuditID     `db:"id" json:"id"`
	OrgID      OrgID       `db:"org_id" json:"orgId"`
	EntityType EntityType  `db:"entity_type" json:"entityType"`
	EntityID   string      `db:"entity_id" json:"entityId"`
	Action     AuditAction `db:"action" json:"action"`
	ActorID    UserID      `db:"actor_id" json:"actorId"`
	Reason     string      `db:"reason" json:"reason,omitempty"`
	OldValues  Values      `db:"old_values" json:"oldValues,omitempty"`
	NewValues  Values      `db:"new_values" json:"newValues,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}

// =============================================================================
// COLUMN TYPES
// =============================================================================

// Serials is a list of serial numbers stored as a JSON array column.
type Serials []string

func (s Serials) Value() (driver.Value, error) {
	if s == nil {
		s = Serials{}
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Serials) Scan(src any) error {
	raw, err := columnBytes(src)
	if err != nil || raw == nil {
		*s = nil
		return err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan serials: %w", err)
	}
	if len(out) == 0 {
		out = nil
	}
	*s = out
	return nil
}

// Values is a JSON object column used for audit snapshots.
type Values map[string]any

func (v Values) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Values) Scan(src any) error {
	raw, err := columnBytes(src)
	if err != nil || raw == nil {
		*v = nil
		return err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan values: %w", err)
	}
	*v = out
	return nil
}

func columnBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
