// Package store provides an in-memory stock.Store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/inventory-engine/stock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one lock. WithTx holds the
// write lock for the whole transaction, so transactions are serial.
type Memory struct {
	mu   sync.RWMutex
	data *tables
}

type instanceKey struct {
	product stock.ProductID
	serial  string
}

type tables struct {
	orgs         map[stock.OrgID]stock.Organization
	products     map[stock.ProductID]stock.Product
	transactions []stock.Transaction
	txIndex      map[stock.TransactionID]int
	instances    map[instanceKey]stock.ProductInstance
	batches      map[stock.BatchID]stock.Batch
	clients      map[stock.ClientID]stock.Client
	orders       map[stock.PurchaseOrderID]stock.PurchaseOrder
	orderSeq     []stock.PurchaseOrderID
	audit        []stock.AuditEntry
}

func newTables() *tables {
	return &tables{
		orgs:      make(map[stock.OrgID]stock.Organization),
		products:  make(map[stock.ProductID]stock.Product),
		txIndex:   make(map[stock.TransactionID]int),
		instances: make(map[instanceKey]stock.ProductInstance),
		batches:   make(map[stock.BatchID]stock.Batch),
		clients:   make(map[stock.ClientID]stock.Client),
		orders:    make(map[stock.PurchaseOrderID]stock.PurchaseOrder),
	}
}

var _ stock.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: newTables()}
}

func (m *Memory) Close() error { return nil }

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(stock.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&memoryTx{t: m.data}); err != nil {
		m.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.orgs {
		c.orgs[k] = v
	}
	for k, v := range t.products {
		c.products[k] = v
	}
	c.transactions = append([]stock.Transaction(nil), t.transactions...)
	for k, v := range t.txIndex {
		c.txIndex[k] = v
	}
	for k, v := range t.instances {
		c.instances[k] = v
	}
	for k, v := range t.batches {
		c.batches[k] = v
	}
	for k, v := range t.clients {
		c.clients[k] = v
	}
	for k, v := range t.orders {
		c.orders[k] = v
	}
	c.orderSeq = append([]stock.PurchaseOrderID(nil), t.orderSeq...)
	c.audit = append([]stock.AuditEntry(nil), t.audit...)
	return c
}

// =============================================================================
// READS - Locked wrappers over the table views
// =============================================================================

func (m *Memory) GetOrganization(ctx context.Context, id stock.OrgID) (*stock.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getOrganization(id), nil
}

func (m *Memory) GetProduct(ctx context.Context, org stock.OrgID, id stock.ProductID) (*stock.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getProduct(org, id), nil
}

func (m *Memory) ListProducts(ctx context.Context, org stock.OrgID, filter stock.ProductFilter) ([]stock.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listProducts(org, filter), nil
}

func (m *Memory) GetTransaction(ctx context.Context, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getTransaction(org, id), nil
}

func (m *Memory) ListTransactions(ctx context.Context, org stock.OrgID, filter stock.TransactionFilter) ([]stock.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listTransactions(org, filter), nil
}

func (m *Memory) CountTransactions(ctx context.Context, org stock.OrgID, product stock.ProductID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data.listTransactions(org, stock.TransactionFilter{ProductID: product})), nil
}

func (m *Memory) GetInstance(ctx context.Context, product stock.ProductID, serial string) (*stock.ProductInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getInstance(product, serial), nil
}

func (m *Memory) ListInstances(ctx context.Context, product stock.ProductID, status stock.InstanceStatus) ([]stock.ProductInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listInstances(product, status), nil
}

func (m *Memory) GetBatch(ctx context.Context, product stock.ProductID, id stock.BatchID) (*stock.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getBatch(product, id), nil
}

func (m *Memory) ListBatches(ctx context.Context, product stock.ProductID) ([]stock.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listBatches(product), nil
}

func (m *Memory) GetClient(ctx context.Context, org stock.OrgID, id stock.ClientID) (*stock.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getClient(org, id), nil
}

func (m *Memory) ListClients(ctx context.Context, org stock.OrgID) ([]stock.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listClients(org), nil
}

func (m *Memory) GetPurchaseOrder(ctx context.Context, org stock.OrgID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.getPurchaseOrder(org, id), nil
}

func (m *Memory) ListPurchaseOrders(ctx context.Context, org stock.OrgID, status stock.POStatus) ([]stock.PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listPurchaseOrders(org, status), nil
}

func (m *Memory) ListAudit(ctx context.Context, org stock.OrgID, filter stock.AuditFilter) ([]stock.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.listAudit(org, filter), nil
}

// =============================================================================
// TABLE VIEWS - Callers hold the lock
// =============================================================================

func (t *tables) getOrganization(id stock.OrgID) *stock.Organization {
	o, ok := t.orgs[id]
	if !ok {
		return nil
	}
	return &o
}

func (t *tables) getProduct(org stock.OrgID, id stock.ProductID) *stock.Product {
	p, ok := t.products[id]
	if !ok || p.OrgID != org {
		return nil
	}
	return &p
}

func (t *tables) listProducts(org stock.OrgID, filter stock.ProductFilter) []stock.Product {
	var out []stock.Product
	for _, p := range t.products {
		if p.OrgID != org || (filter.ActiveOnly && !p.IsActive) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tables) getTransaction(org stock.OrgID, id stock.TransactionID) *stock.Transaction {
	i, ok := t.txIndex[id]
	if !ok || t.transactions[i].OrgID != org {
		return nil
	}
	tx := t.transactions[i]
	return &tx
}

func (t *tables) listTransactions(org stock.OrgID, filter stock.TransactionFilter) []stock.Transaction {
	var out []stock.Transaction
	for _, tx := range t.transactions {
		if tx.OrgID != org {
			continue
		}
		if filter.ProductID != "" && tx.ProductID != filter.ProductID {
			continue
		}
		if !filter.IncludeDeleted && tx.IsDeleted() {
			continue
		}
		out = append(out, tx)
	}
	if filter.NewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (t *tables) getInstance(product stock.ProductID, serial string) *stock.ProductInstance {
	inst, ok := t.instances[instanceKey{product, serial}]
	if !ok {
		return nil
	}
	return &inst
}

func (t *tables) listInstances(product stock.ProductID, status stock.InstanceStatus) []stock.ProductInstance {
	var out []stock.ProductInstance
	for k, inst := range t.instances {
		if k.product != product || (status != "" && inst.Status != status) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out
}

func (t *tables) getBatch(product stock.ProductID, id stock.BatchID) *stock.Batch {
	b, ok := t.batches[id]
	if !ok || b.ProductID != product {
		return nil
	}
	return &b
}

func (t *tables) listBatches(product stock.ProductID) []stock.Batch {
	var out []stock.Batch
	for _, b := range t.batches {
		if b.ProductID == product {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchNumber < out[j].BatchNumber })
	return out
}

func (t *tables) getClient(org stock.OrgID, id stock.ClientID) *stock.Client {
	c, ok := t.clients[id]
	if !ok || c.OrgID != org {
		return nil
	}
	return &c
}

func (t *tables) listClients(org stock.OrgID) []stock.Client {
	var out []stock.Client
	for _, c := range t.clients {
		if c.OrgID == org {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *tables) getPurchaseOrder(org stock.OrgID, id stock.PurchaseOrderID) *stock.PurchaseOrder {
	po, ok := t.orders[id]
	if !ok || po.OrgID != org {
		return nil
	}
	po.Items = append([]stock.POItem(nil), po.Items...)
	return &po
}

func (t *tables) listPurchaseOrders(org stock.OrgID, status stock.POStatus) []stock.PurchaseOrder {
	var out []stock.PurchaseOrder
	for i := len(t.orderSeq) - 1; i >= 0; i-- {
		po := t.orders[t.orderSeq[i]]
		if po.OrgID != org || (status != "" && po.Status != status) {
			continue
		}
		po.Items = nil
		out = append(out, po)
	}
	return out
}

func (t *tables) listAudit(org stock.OrgID, filter stock.AuditFilter) []stock.AuditEntry {
	var out []stock.AuditEntry
	for i := len(t.audit) - 1; i >= 0; i-- {
		e := t.audit[i]
		if e.OrgID != org {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}
