package store

import (
	"context"
	"fmt"

	"github.com/warp/inventory-engine/stock"
)

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// memoryTx is handed to WithTx callbacks. The parent's write lock is held
// for its whole lifetime, so locking reads are plain reads.
type memoryTx struct {
	t *tables
}

var _ stock.Tx = (*memoryTx)(nil)

func (tx *memoryTx) GetOrganization(_ context.Context, id stock.OrgID) (*stock.Organization, error) {
	return tx.t.getOrganization(id), nil
}

func (tx *memoryTx) GetProduct(_ context.Context, org stock.OrgID, id stock.ProductID) (*stock.Product, error) {
	return tx.t.getProduct(org, id), nil
}

func (tx *memoryTx) ListProducts(_ context.Context, org stock.OrgID, filter stock.ProductFilter) ([]stock.Product, error) {
	return tx.t.listProducts(org, filter), nil
}

func (tx *memoryTx) GetTransaction(_ context.Context, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, error) {
	return tx.t.getTransaction(org, id), nil
}

func (tx *memoryTx) ListTransactions(_ context.Context, org stock.OrgID, filter stock.TransactionFilter) ([]stock.Transaction, error) {
	return tx.t.listTransactions(org, filter), nil
}

func (tx *memoryTx) CountTransactions(_ context.Context, org stock.OrgID, product stock.ProductID) (int, error) {
	return len(tx.t.listTransactions(org, stock.TransactionFilter{ProductID: product})), nil
}

func (tx *memoryTx) GetInstance(_ context.Context, product stock.ProductID, serial string) (*stock.ProductInstance, error) {
	return tx.t.getInstance(product, serial), nil
}

func (tx *memoryTx) ListInstances(_ context.Context, product stock.ProductID, status stock.InstanceStatus) ([]stock.ProductInstance, error) {
	return tx.t.listInstances(product, status), nil
}

func (tx *memoryTx) GetBatch(_ context.Context, product stock.ProductID, id stock.BatchID) (*stock.Batch, error) {
	return tx.t.getBatch(product, id), nil
}

func (tx *memoryTx) ListBatches(_ context.Context, product stock.ProductID) ([]stock.Batch, error) {
	return tx.t.listBatches(product), nil
}

func (tx *memoryTx) GetClient(_ context.Context, org stock.OrgID, id stock.ClientID) (*stock.Client, error) {
	return tx.t.getClient(org, id), nil
}

func (tx *memoryTx) ListClients(_ context.Context, org stock.OrgID) ([]stock.Client, error) {
	return tx.t.listClients(org), nil
}

func (tx *memoryTx) GetPurchaseOrder(_ context.Context, org stock.OrgID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	return tx.t.getPurchaseOrder(org, id), nil
}

func (tx *memoryTx) ListPurchaseOrders(_ context.Context, org stock.OrgID, status stock.POStatus) ([]stock.PurchaseOrder, error) {
	return tx.t.listPurchaseOrders(org, status), nil
}

func (tx *memoryTx) ListAudit(_ context.Context, org stock.OrgID, filter stock.AuditFilter) ([]stock.AuditEntry, error) {
	return tx.t.listAudit(org, filter), nil
}

// =============================================================================
// LOCKS
// =============================================================================

func (tx *memoryTx) LockProduct(_ context.Context, org stock.OrgID, id stock.ProductID) (*stock.Product, error) {
	return tx.t.getProduct(org, id), nil
}

func (tx *memoryTx) LockInstances(_ context.Context, product stock.ProductID, serials []string) ([]stock.ProductInstance, error) {
	var out []stock.ProductInstance
	for _, s := range serials {
		if inst := tx.t.getInstance(product, s); inst != nil {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (tx *memoryTx) LockPurchaseOrder(_ context.Context, org stock.OrgID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	return tx.t.getPurchaseOrder(org, id), nil
}

func (tx *memoryTx) LockTransaction(_ context.Context, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, error) {
	return tx.t.getTransaction(org, id), nil
}

// =============================================================================
// WRITES - Unique constraints mirror the SQL schema
// =============================================================================

func (tx *memoryTx) CreateOrganization(_ context.Context, org stock.Organization) error {
	if _, ok := tx.t.orgs[org.ID]; ok {
		return fmt.Errorf("organization %s already exists", org.ID)
	}
	tx.t.orgs[org.ID] = org
	return nil
}

func (tx *memoryTx) CreateProduct(_ context.Context, p stock.Product) error {
	if err := tx.checkSKU(p); err != nil {
		return err
	}
	tx.t.products[p.ID] = p
	return nil
}

func (tx *memoryTx) UpdateProduct(_ context.Context, p stock.Product) error {
	if _, ok := tx.t.products[p.ID]; !ok {
		return stock.NotFound("product", string(p.ID))
	}
	if err := tx.checkSKU(p); err != nil {
		return err
	}
	tx.t.products[p.ID] = p
	return nil
}

func (tx *memoryTx) checkSKU(p stock.Product) error {
	for _, other := range tx.t.products {
		if other.ID != p.ID && other.OrgID == p.OrgID && other.SKU == p.SKU {
			return stock.Conflict(stock.ErrDuplicateSKU, "%s", p.SKU)
		}
	}
	return nil
}

func (tx *memoryTx) CreateBatch(_ context.Context, b stock.Batch) error {
	for _, other := range tx.t.batches {
		if other.ProductID == b.ProductID && other.BatchNumber == b.BatchNumber {
			return stock.Conflict(stock.ErrDuplicateBatch, "%s", b.BatchNumber)
		}
	}
	tx.t.batches[b.ID] = b
	return nil
}

func (tx *memoryTx) CreateClient(_ context.Context, c stock.Client) error {
	tx.t.clients[c.ID] = c
	return nil
}

func (tx *memoryTx) InsertTransaction(_ context.Context, t stock.Transaction) error {
	if _, ok := tx.t.txIndex[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	t.SerialNumbers = append(stock.Serials(nil), t.SerialNumbers...)
	tx.t.txIndex[t.ID] = len(tx.t.transactions)
	tx.t.transactions = append(tx.t.transactions, t)
	return nil
}

func (tx *memoryTx) UpdateTransaction(_ context.Context, t stock.Transaction) error {
	i, ok := tx.t.txIndex[t.ID]
	if !ok {
		return stock.NotFound("transaction", string(t.ID))
	}
	cur := tx.t.transactions[i]
	cur.Quantity = t.Quantity
	cur.ClientID = t.ClientID
	cur.LifecycleStatus = t.LifecycleStatus
	cur.ReferenceNumber = t.ReferenceNumber
	cur.UnitPrice = t.UnitPrice
	cur.Notes = t.Notes
	cur.EditedAt, cur.EditedBy = t.EditedAt, t.EditedBy
	cur.DeletedAt, cur.DeletedBy = t.DeletedAt, t.DeletedBy
	tx.t.transactions[i] = cur
	return nil
}

func (tx *memoryTx) UpsertInstance(_ context.Context, inst stock.ProductInstance) error {
	k := instanceKey{inst.ProductID, inst.SerialNumber}
	if cur, ok := tx.t.instances[k]; ok {
		inst.ID = cur.ID
	}
	tx.t.instances[k] = inst
	return nil
}

func (tx *memoryTx) DeleteInstance(_ context.Context, product stock.ProductID, serial string) error {
	delete(tx.t.instances, instanceKey{product, serial})
	return nil
}

func (tx *memoryTx) CreatePurchaseOrder(_ context.Context, po stock.PurchaseOrder) error {
	for _, other := range tx.t.orders {
		if other.OrgID == po.OrgID && other.PONumber == po.PONumber {
			return stock.Conflict(stock.ErrDuplicatePONumber, "%s", po.PONumber)
		}
	}
	po.Items = append([]stock.POItem(nil), po.Items...)
	tx.t.orders[po.ID] = po
	tx.t.orderSeq = append(tx.t.orderSeq, po.ID)
	return nil
}

func (tx *memoryTx) UpdatePurchaseOrder(_ context.Context, po stock.PurchaseOrder) error {
	cur, ok := tx.t.orders[po.ID]
	if !ok {
		return stock.NotFound("purchase order", string(po.ID))
	}
	cur.Status = po.Status
	cur.ReceivedAt, cur.ReceivedBy = po.ReceivedAt, po.ReceivedBy
	received := make(map[stock.POItemID]int, len(po.Items))
	for _, item := range po.Items {
		received[item.ID] = item.ReceivedQuantity
	}
	items := make([]stock.POItem, len(cur.Items))
	for i, item := range cur.Items {
		if q, ok := received[item.ID]; ok {
			item.ReceivedQuantity = q
		}
		items[i] = item
	}
	cur.Items = items
	tx.t.orders[po.ID] = cur
	return nil
}

func (tx *memoryTx) AppendAudit(_ context.Context, entry stock.AuditEntry) error {
	tx.t.audit = append(tx.t.audit, entry)
	return nil
}
