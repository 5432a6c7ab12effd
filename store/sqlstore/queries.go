package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/warp/inventory-engine/stock"
)

const (
	orgColumns      = `id, name, created_at`
	productColumns  = `id, org_id, name, sku, category, purchase_price, selling_price, low_stock_limit, is_serialized, is_batch_tracked, is_active, created_at`
	txColumns       = `id, org_id, product_id, tx_type, quantity, client_id, batch_id, serial_numbers, lifecycle_status, source_location, destination_location, reference_number, unit_price, notes, created_by, created_at, edited_at, edited_by, deleted_at, deleted_by`
	instanceColumns = `id, product_id, serial_number, status, batch_id, last_transaction_id, updated_at`
	batchColumns    = `id, product_id, batch_number, manufactured_at, expires_at, created_at`
	clientColumns   = `id, org_id, name, contact_email, phone, created_at`
	poColumns       = `id, org_id, po_number, supplier_name, status, expected_at, notes, created_by, created_at, received_at, received_by`
	poItemColumns   = `id, po_id, product_id, quantity, unit_cost, received_quantity, batch_id, serial_numbers`
	auditColumns    = `id, org_id, entity_type, entity_id, action, actor_id, reason, old_values, new_values, created_at`
)

// reader runs queries against either the database or an open transaction.
type reader struct {
	q sqlx.ExtContext
	d Dialect
}

// get loads one row into dest. It reports false when no row matched.
func (r reader) get(ctx context.Context, op string, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.translate(op, err, nil)
	}
	return true, nil
}

func (r reader) selectAll(ctx context.Context, op string, dest any, query string, args ...any) error {
	if err := sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...); err != nil {
		return r.translate(op, err, nil)
	}
	return nil
}

// =============================================================================
// ORGANIZATIONS / PRODUCTS
// =============================================================================

func (r reader) GetOrganization(ctx context.Context, id stock.OrgID) (*stock.Organization, error) {
	var o stock.Organization
	ok, err := r.get(ctx, "get organization", &o, `SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id)
	if !ok {
		return nil, err
	}
	return &o, nil
}

func (r reader) GetProduct(ctx context.Context, org stock.OrgID, id stock.ProductID) (*stock.Product, error) {
	return r.product(ctx, org, id, "")
}

func (r reader) product(ctx context.Context, org stock.OrgID, id stock.ProductID, lock string) (*stock.Product, error) {
	var p stock.Product
	ok, err := r.get(ctx, "get product", &p,
		`SELECT `+productColumns+` FROM products WHERE org_id = ? AND id = ?`+lock, org, id)
	if !ok {
		return nil, err
	}
	return &p, nil
}

func (r reader) ListProducts(ctx context.Context, org stock.OrgID, filter stock.ProductFilter) ([]stock.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE org_id = ?`
	args := []any{org}
	if filter.ActiveOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY name, id`

	var out []stock.Product
	if err := r.selectAll(ctx, "list products", &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (r reader) GetTransaction(ctx context.Context, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, error) {
	return r.transaction(ctx, org, id, "")
}

func (r reader) transaction(ctx context.Context, org stock.OrgID, id stock.TransactionID, lock string) (*stock.Transaction, error) {
	var t stock.Transaction
	ok, err := r.get(ctx, "get transaction", &t,
		`SELECT `+txColumns+` FROM inventory_transactions WHERE org_id = ? AND id = ?`+lock, org, id)
	if !ok {
		return nil, err
	}
	return &t, nil
}

func (r reader) ListTransactions(ctx context.Context, org stock.OrgID, filter stock.TransactionFilter) ([]stock.Transaction, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + txColumns + ` FROM inventory_transactions WHERE org_id = ?`)
	args := []any{org}
	if filter.ProductID != "" {
		b.WriteString(` AND product_id = ?`)
		args = append(args, filter.ProductID)
	}
	if !filter.IncludeDeleted {
		b.WriteString(` AND deleted_at IS NULL`)
	}
	dir := "ASC"
	if filter.NewestFirst {
		dir = "DESC"
	}
	b.WriteString(` ORDER BY created_at ` + dir + `, ` + r.d.OrderColumn() + ` ` + dir)
	if filter.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	var out []stock.Transaction
	if err := r.selectAll(ctx, "list transactions", &out, b.String(), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r reader) CountTransactions(ctx context.Context, org stock.OrgID, product stock.ProductID) (int, error) {
	var n int
	_, err := r.get(ctx, "count transactions", &n,
		`SELECT COUNT(*) FROM inventory_transactions WHERE org_id = ? AND product_id = ? AND deleted_at IS NULL`,
		org, product)
	return n, err
}

// =============================================================================
// INSTANCES / BATCHES / CLIENTS
// =============================================================================

func (r reader) GetInstance(ctx context.Context, product stock.ProductID, serial string) (*stock.ProductInstance, error) {
	var inst stock.ProductInstance
	ok, err := r.get(ctx, "get instance", &inst,
		`SELECT `+instanceColumns+` FROM product_instances WHERE product_id = ? AND serial_number = ?`, product, serial)
	if !ok {
		return nil, err
	}
	return &inst, nil
}

func (r reader) ListInstances(ctx context.Context, product stock.ProductID, status stock.InstanceStatus) ([]stock.ProductInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM product_instances WHERE product_id = ?`
	args := []any{product}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY serial_number`

	var out []stock.ProductInstance
	if err := r.selectAll(ctx, "list instances", &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r reader) GetBatch(ctx context.Context, product stock.ProductID, id stock.BatchID) (*stock.Batch, error) {
	var b stock.Batch
	ok, err := r.get(ctx, "get batch", &b,
		`SELECT `+batchColumns+` FROM batches WHERE product_id = ? AND id = ?`, product, id)
	if !ok {
		return nil, err
	}
	return &b, nil
}

func (r reader) ListBatches(ctx context.Context, product stock.ProductID) ([]stock.Batch, error) {
	var out []stock.Batch
	if err := r.selectAll(ctx, "list batches", &out,
		`SELECT `+batchColumns+` FROM batches WHERE product_id = ? ORDER BY batch_number`, product); err != nil {
		return nil, err
	}
	return out, nil
}

func (r reader) GetClient(ctx context.Context, org stock.OrgID, id stock.ClientID) (*stock.Client, error) {
	var c stock.Client
	ok, err := r.get(ctx, "get client", &c,
		`SELECT `+clientColumns+` FROM clients WHERE org_id = ? AND id = ?`, org, id)
	if !ok {
		return nil, err
	}
	return &c, nil
}

func (r reader) ListClients(ctx context.Context, org stock.OrgID) ([]stock.Client, error) {
	var out []stock.Client
	if err := r.selectAll(ctx, "list clients", &out,
		`SELECT `+clientColumns+` FROM clients WHERE org_id = ? ORDER BY name, id`, org); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

func (r reader) GetPurchaseOrder(ctx context.Context, org stock.OrgID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	return r.purchaseOrder(ctx, org, id, "")
}

func (r reader) purchaseOrder(ctx context.Context, org stock.OrgID, id stock.PurchaseOrderID, lock string) (*stock.PurchaseOrder, error) {
	var po stock.PurchaseOrder
	ok, err := r.get(ctx, "get purchase order", &po,
		`SELECT `+poColumns+` FROM purchase_orders WHERE org_id = ? AND id = ?`+lock, org, id)
	if !ok {
		return nil, err
	}
	if err := r.selectAll(ctx, "list purchase order items", &po.Items,
		`SELECT `+poItemColumns+` FROM purchase_order_items WHERE po_id = ? ORDER BY line_no`, po.ID); err != nil {
		return nil, err
	}
	return &po, nil
}

func (r reader) ListPurchaseOrders(ctx context.Context, org stock.OrgID, status stock.POStatus) ([]stock.PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE org_id = ?`
	args := []any{org}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	var out []stock.PurchaseOrder
	if err := r.selectAll(ctx, "list purchase orders", &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (r reader) ListAudit(ctx context.Context, org stock.OrgID, filter stock.AuditFilter) ([]stock.AuditEntry, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + auditColumns + ` FROM audit_logs WHERE org_id = ?`)
	args := []any{org}
	if filter.EntityType != "" {
		b.WriteString(` AND entity_type = ?`)
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		b.WriteString(` AND entity_id = ?`)
		args = append(args, filter.EntityID)
	}
	if filter.Action != "" {
		b.WriteString(` AND action = ?`)
		args = append(args, filter.Action)
	}
	b.WriteString(` ORDER BY created_at DESC, ` + r.d.OrderColumn() + ` DESC`)
	if filter.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	var out []stock.AuditEntry
	if err := r.selectAll(ctx, "list audit", &out, b.String(), args...); err != nil {
		return nil, err
	}
	return out, nil
}
