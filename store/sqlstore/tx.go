package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/warp/inventory-engine/stock"
)

// sqlTx is the stock.Tx handed to WithTx callbacks.
type sqlTx struct {
	reader
}

var _ stock.Tx = (*sqlTx)(nil)

func (t *sqlTx) exec(ctx context.Context, op string, dup error, query string, args ...any) error {
	_, err := t.q.ExecContext(ctx, t.q.Rebind(query), args...)
	return t.translate(op, err, dup)
}

func (t *sqlTx) execNamed(ctx context.Context, op string, dup error, query string, arg any) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, query, arg)
	return t.translate(op, err, dup)
}

// =============================================================================
// LOCKS
// =============================================================================

func (t *sqlTx) LockProduct(ctx context.Context, org stock.OrgID, id stock.ProductID) (*stock.Product, error) {
	return t.product(ctx, org, id, t.d.ForUpdate())
}

func (t *sqlTx) LockInstances(ctx context.Context, product stock.ProductID, serials []string) ([]stock.ProductInstance, error) {
	if len(serials) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+instanceColumns+` FROM product_instances WHERE product_id = ? AND serial_number IN (?) ORDER BY serial_number`+t.d.ForUpdate(),
		product, serials)
	if err != nil {
		return nil, t.translate("lock instances", err, nil)
	}
	var out []stock.ProductInstance
	if err := t.selectAll(ctx, "lock instances", &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *sqlTx) LockPurchaseOrder(ctx context.Context, org stock.OrgID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	return t.purchaseOrder(ctx, org, id, t.d.ForUpdate())
}

func (t *sqlTx) LockTransaction(ctx context.Context, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, error) {
	return t.transaction(ctx, org, id, t.d.ForUpdate())
}

// =============================================================================
// CATALOG
// =============================================================================

func (t *sqlTx) CreateOrganization(ctx context.Context, org stock.Organization) error {
	return t.execNamed(ctx, "create organization", nil,
		`INSERT INTO organizations (`+orgColumns+`) VALUES (:id, :name, :created_at)`, org)
}

func (t *sqlTx) CreateProduct(ctx context.Context, p stock.Product) error {
	return t.execNamed(ctx, "create product", stock.ErrDuplicateSKU,
		`INSERT INTO products (`+productColumns+`)
		 VALUES (:id, :org_id, :name, :sku, :category, :purchase_price, :selling_price, :low_stock_limit,
		         :is_serialized, :is_batch_tracked, :is_active, :created_at)`, p)
}

func (t *sqlTx) UpdateProduct(ctx context.Context, p stock.Product) error {
	return t.execNamed(ctx, "update product", stock.ErrDuplicateSKU,
		`UPDATE products SET name = :name, sku = :sku, category = :category,
		        purchase_price = :purchase_price, selling_price = :selling_price,
		        low_stock_limit = :low_stock_limit, is_serialized = :is_serialized,
		        is_batch_tracked = :is_batch_tracked, is_active = :is_active
		 WHERE org_id = :org_id AND id = :id`, p)
}

func (t *sqlTx) CreateBatch(ctx context.Context, b stock.Batch) error {
	return t.execNamed(ctx, "create batch", stock.ErrDuplicateBatch,
		`INSERT INTO batches (`+batchColumns+`)
		 VALUES (:id, :product_id, :batch_number, :manufactured_at, :expires_at, :created_at)`, b)
}

func (t *sqlTx) CreateClient(ctx context.Context, c stock.Client) error {
	return t.execNamed(ctx, "create client", nil,
		`INSERT INTO clients (`+clientColumns+`)
		 VALUES (:id, :org_id, :name, :contact_email, :phone, :created_at)`, c)
}

// =============================================================================
// LEDGER
// =============================================================================

func (t *sqlTx) InsertTransaction(ctx context.Context, tx stock.Transaction) error {
	return t.execNamed(ctx, "insert transaction", nil,
		`INSERT INTO inventory_transactions (`+txColumns+`)
		 VALUES (:id, :org_id, :product_id, :tx_type, :quantity, :client_id, :batch_id, :serial_numbers,
		         :lifecycle_status, :source_location, :destination_location, :reference_number, :unit_price,
		         :notes, :created_by, :created_at, :edited_at, :edited_by, :deleted_at, :deleted_by)`, tx)
}

func (t *sqlTx) UpdateTransaction(ctx context.Context, tx stock.Transaction) error {
	return t.execNamed(ctx, "update transaction", nil,
		`UPDATE inventory_transactions
		 SET quantity = :quantity, client_id = :client_id, lifecycle_status = :lifecycle_status,
		     reference_number = :reference_number, unit_price = :unit_price, notes = :notes,
		     edited_at = :edited_at, edited_by = :edited_by, deleted_at = :deleted_at, deleted_by = :deleted_by
		 WHERE org_id = :org_id AND id = :id`, tx)
}

func (t *sqlTx) UpsertInstance(ctx context.Context, inst stock.ProductInstance) error {
	return t.execNamed(ctx, "upsert instance", nil,
		`INSERT INTO product_instances (`+instanceColumns+`)
		 VALUES (:id, :product_id, :serial_number, :status, :batch_id, :last_transaction_id, :updated_at)
		 ON CONFLICT (product_id, serial_number) DO UPDATE
		 SET status = excluded.status, batch_id = excluded.batch_id,
		     last_transaction_id = excluded.last_transaction_id, updated_at = excluded.updated_at`, inst)
}

func (t *sqlTx) DeleteInstance(ctx context.Context, product stock.ProductID, serial string) error {
	return t.exec(ctx, "delete instance", nil,
		`DELETE FROM product_instances WHERE product_id = ? AND serial_number = ?`, product, serial)
}

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

func (t *sqlTx) CreatePurchaseOrder(ctx context.Context, po stock.PurchaseOrder) error {
	if err := t.execNamed(ctx, "create purchase order", stock.ErrDuplicatePONumber,
		`INSERT INTO purchase_orders (`+poColumns+`)
		 VALUES (:id, :org_id, :po_number, :supplier_name, :status, :expected_at, :notes,
		         :created_by, :created_at, :received_at, :received_by)`, po); err != nil {
		return err
	}
	for i, item := range po.Items {
		if err := t.exec(ctx, "create purchase order item", nil,
			`INSERT INTO purchase_order_items (`+poItemColumns+`, line_no) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, po.ID, item.ProductID, item.Quantity, item.UnitCost, item.ReceivedQuantity,
			item.BatchID, item.SerialNumbers, i+1); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) UpdatePurchaseOrder(ctx context.Context, po stock.PurchaseOrder) error {
	if err := t.execNamed(ctx, "update purchase order", nil,
		`UPDATE purchase_orders SET status = :status, received_at = :received_at, received_by = :received_by
		 WHERE org_id = :org_id AND id = :id`, po); err != nil {
		return err
	}
	for _, item := range po.Items {
		if err := t.exec(ctx, "update purchase order item", nil,
			`UPDATE purchase_order_items SET received_quantity = ? WHERE po_id = ? AND id = ?`,
			item.ReceivedQuantity, po.ID, item.ID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (t *sqlTx) AppendAudit(ctx context.Context, entry stock.AuditEntry) error {
	return t.execNamed(ctx, "append audit", nil,
		`INSERT INTO audit_logs (`+auditColumns+`)
		 VALUES (:id, :org_id, :entity_type, :entity_id, :action, :actor_id, :reason, :old_values, :new_values, :created_at)`, entry)
}
