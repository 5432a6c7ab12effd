/*
store.go - Persistence contracts for the stock ledger

PURPOSE:
  Defines the interface between the inventory service and the database.
  Reads are available directly on a Store; every write happens inside
  WithTx so a ledger operation's read-validate-write sequence commits or
  rolls back as one unit.

KEY INTERFACES:
  Reader:  Organization-scoped lookups
  Writer:  Inserts and updates, only reachable inside a transaction
  Locker:  Locking reads that serialize competing writers
  Tx:      Reader + Writer + Locker bound to one database transaction
  Store:   Reader + WithTx

LOCKING:
  LockProduct must be called before the stock sufficiency check of an
  outbound movement, LockInstances before serial availability checks and
  LockPurchaseOrder before receiving. On PostgreSQL these are
  SELECT ... FOR UPDATE; on SQLite and in memory the store admits a single
  writer, so they are plain reads.

NOT FOUND:
  Get and Lock methods return (nil, nil) for a missing row, including a row
  owned by another organization. Turning absence into NotFoundError is the
  caller's decision.

IMPLEMENTATIONS:
  - stock/store/memory.go: In-memory for testing
  - store/sqlstore: shared SQL implementation (sqlx)
  - store/sqlite, store/postgres: drivers and dialects
*/
package stock

import "context"

// TransactionFilter selects ledger rows of one organization.
type TransactionFilter struct {
	ProductID      ProductID
	IncludeDeleted bool
	// Limit caps the result when positive. Rows come back oldest first
	// unless NewestFirst is set.
	Limit       int
	NewestFirst bool
}

// ProductFilter selects products of one organization.
type ProductFilter struct {
	ActiveOnly bool
	Category   string
}

// AuditFilter selects audit entries of one organization, newest first.
type AuditFilter struct {
	EntityType EntityType
	EntityID   string
	Action     AuditAction
	Limit      int
}

type Reader interface {
	GetOrganization(ctx context.Context, id OrgID) (*Organization, error)

	GetProduct(ctx context.Context, org OrgID, id ProductID) (*Product, error)
	ListProducts(ctx context.Context, org OrgID, filter ProductFilter) ([]Product, error)

	GetTransaction(ctx context.Context, org OrgID, id TransactionID) (*Transaction, error)
	ListTransactions(ctx context.Context, org OrgID, filter TransactionFilter) ([]Transaction, error)
	// CountTransactions counts non-deleted rows referencing the product.
	CountTransactions(ctx context.Context, org OrgID, product ProductID) (int, error)

	GetInstance(ctx context.Context, product ProductID, serial string) (*ProductInstance, error)
	// ListInstances returns a product's instances ordered by serial number.
	// An empty status matches every instance.
	ListInstances(ctx context.Context, product ProductID, status InstanceStatus) ([]ProductInstance, error)

	GetBatch(ctx context.Context, product ProductID, id BatchID) (*Batch, error)
	ListBatches(ctx context.Context, product ProductID) ([]Batch, error)

	GetClient(ctx context.Context, org OrgID, id ClientID) (*Client, error)
	ListClients(ctx context.Context, org OrgID) ([]Client, error)

	// GetPurchaseOrder loads the order with its items.
	GetPurchaseOrder(ctx context.Context, org OrgID, id PurchaseOrderID) (*PurchaseOrder, error)
	// ListPurchaseOrders loads orders without items. An empty status
	// matches every order.
	ListPurchaseOrders(ctx context.Context, org OrgID, status POStatus) ([]PurchaseOrder, error)

	ListAudit(ctx context.Context, org OrgID, filter AuditFilter) ([]AuditEntry, error)
}

type Writer interface {
	CreateOrganization(ctx context.Context, org Organization) error

	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error

	CreateBatch(ctx context.Context, b Batch) error
	CreateClient(ctx context.Context, c Client) error

	InsertTransaction(ctx context.Context, tx Transaction) error
	// UpdateTransaction rewrites the mutable columns of an existing row:
	// quantity, client, lifecycle, reference, unit price, notes and the
	// edit/delete stamps.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// UpsertInstance inserts or replaces the instance keyed by
	// (product, serial number).
	UpsertInstance(ctx context.Context, inst ProductInstance) error
	DeleteInstance(ctx context.Context, product ProductID, serial string) error

	// CreatePurchaseOrder inserts the order and its items.
	CreatePurchaseOrder(ctx context.Context, po PurchaseOrder) error
	// UpdatePurchaseOrder rewrites status and receipt stamps of the order
	// and the received quantity of its items.
	UpdatePurchaseOrder(ctx context.Context, po PurchaseOrder) error

	AppendAudit(ctx context.Context, entry AuditEntry) error
}

type Locker interface {
	LockProduct(ctx context.Context, org OrgID, id ProductID) (*Product, error)
	// LockInstances returns the existing instances among serials. Missing
	// serials are simply absent from the result.
	LockInstances(ctx context.Context, product ProductID, serials []string) ([]ProductInstance, error)
	LockPurchaseOrder(ctx context.Context, org OrgID, id PurchaseOrderID) (*PurchaseOrder, error)
	// LockTransaction re-reads a ledger row for update. Callers lock the
	// row's product first.
	LockTransaction(ctx context.Context, org OrgID, id TransactionID) (*Transaction, error)
}

// Tx is a store bound to one open database transaction.
type Tx interface {
	Reader
	Writer
	Locker
}

type Store interface {
	Reader
	// WithTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise, returning fn's error unchanged.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}
