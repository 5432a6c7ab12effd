/*
Package sqlite provides the SQLite backend of the inventory store.

PURPOSE:
  Opens a SQLite database with the mattn/go-sqlite3 driver, creates the
  schema and returns a sqlstore.Store using the SQLite dialect.

CONCURRENCY:
  SQLite admits a single writer. Transactions are opened with
  BEGIN IMMEDIATE (_txlock=immediate) so the write lock is taken before the
  first read of a read-validate-write sequence, and the store serializes
  WithTx calls in process. Locking reads therefore need no FOR UPDATE.

WAL MODE:
  File databases are opened with WAL so readers do not block the writer.
  ":memory:" databases are pinned to one connection, since every new
  connection would otherwise see an empty database.

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlstore: Shared query implementation
  - store/postgres: PostgreSQL dialect
*/
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/inventory-engine/store/sqlstore"
)

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*sqlstore.Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := sqlstore.New(db, Dialect{})
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Dialect is the SQLite flavour of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) ForUpdate() string { return "" }

func (Dialect) OrderColumn() string { return "rowid" }

func (Dialect) SingleWriter() bool { return true }

func (Dialect) UniqueViolation(err error) (string, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return se.Error(), true
	}
	return "", false
}

func (Dialect) Retryable(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

func (Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			name TEXT NOT NULL,
			sku TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			purchase_price TEXT NOT NULL DEFAULT '0',
			selling_price TEXT NOT NULL DEFAULT '0',
			low_stock_limit INTEGER NOT NULL DEFAULT 5,
			is_serialized BOOLEAN NOT NULL DEFAULT 0,
			is_batch_tracked BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (org_id, sku)
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			batch_number TEXT NOT NULL,
			manufactured_at TIMESTAMP,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (product_id, batch_number)
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			name TEXT NOT NULL,
			contact_email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			product_id TEXT NOT NULL REFERENCES products(id),
			tx_type TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			client_id TEXT REFERENCES clients(id),
			batch_id TEXT REFERENCES batches(id),
			serial_numbers TEXT NOT NULL DEFAULT '[]',
			lifecycle_status TEXT NOT NULL,
			source_location TEXT NOT NULL DEFAULT '',
			destination_location TEXT NOT NULL DEFAULT '',
			reference_number TEXT NOT NULL DEFAULT '',
			unit_price TEXT,
			notes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			edited_at TIMESTAMP,
			edited_by TEXT NOT NULL DEFAULT '',
			deleted_at TIMESTAMP,
			deleted_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_org_product
			ON inventory_transactions(org_id, product_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS product_instances (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			serial_number TEXT NOT NULL,
			status TEXT NOT NULL,
			batch_id TEXT REFERENCES batches(id),
			last_transaction_id TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (product_id, serial_number)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			po_number TEXT NOT NULL,
			supplier_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			expected_at TIMESTAMP,
			notes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			received_at TIMESTAMP,
			received_by TEXT NOT NULL DEFAULT '',
			UNIQUE (org_id, po_number)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_order_items (
			id TEXT PRIMARY KEY,
			po_id TEXT NOT NULL REFERENCES purchase_orders(id),
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			unit_cost TEXT NOT NULL DEFAULT '0',
			received_quantity INTEGER NOT NULL DEFAULT 0,
			batch_id TEXT REFERENCES batches(id),
			serial_numbers TEXT NOT NULL DEFAULT '[]',
			line_no INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			old_values TEXT,
			new_values TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(org_id, entity_type, entity_id)`,
	}
}
