/*
Package postgres provides the PostgreSQL backend of the inventory store.

PURPOSE:
  Opens PostgreSQL through the pgx stdlib driver and returns a
  sqlstore.Store using the PostgreSQL dialect.

CONCURRENCY:
  Transactions run at READ COMMITTED. Ledger operations take row locks with
  SELECT ... FOR UPDATE on the product, on the instances named by serial
  numbers (in serial order) and on purchase orders before receiving, so two
  outbound movements against one product cannot both pass the stock check.

ERRORS:
  23505 (unique_violation) becomes a stock.ConflictError. 40001
  (serialization_failure) and 40P01 (deadlock_detected) are reported as
  retryable.
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/warp/inventory-engine/store/sqlstore"
)

const driverName = "pgx"

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects, verifies the connection and migrates the schema.
func Open(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	store := sqlstore.New(db, Dialect{})
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// FromDB wraps an already open connection pool without migrating.
func FromDB(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(sqlx.NewDb(db, driverName), Dialect{})
}

// Dialect is the PostgreSQL flavour of sqlstore.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) ForUpdate() string { return " FOR UPDATE" }

func (Dialect) OrderColumn() string { return "seq" }

func (Dialect) SingleWriter() bool { return false }

func (Dialect) UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func (Dialect) Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			name TEXT NOT NULL,
			sku TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			purchase_price NUMERIC(14,2) NOT NULL DEFAULT 0,
			selling_price NUMERIC(14,2) NOT NULL DEFAULT 0,
			low_stock_limit INTEGER NOT NULL DEFAULT 5,
			is_serialized BOOLEAN NOT NULL DEFAULT FALSE,
			is_batch_tracked BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT products_org_sku_key UNIQUE (org_id, sku)
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id),
			batch_number TEXT NOT NULL,
			manufactured_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT batches_product_number_key UNIQUE (product_id, batch_number)
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			name TEXT NOT NULL,
			contact_email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			seq BIGSERIAL,
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
			unit_price NUMERIC(14,2),
			notes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			edited_at TIMESTAMPTZ,
			edited_by TEXT NOT NULL DEFAULT '',
			deleted_at TIMESTAMPTZ,
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
			updated_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT product_instances_product_serial_key UNIQUE (product_id, serial_number)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL REFERENCES organizations(id),
			po_number TEXT NOT NULL,
			supplier_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			expected_at TIMESTAMPTZ,
			notes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			received_at TIMESTAMPTZ,
			received_by TEXT NOT NULL DEFAULT '',
			CONSTRAINT purchase_orders_org_number_key UNIQUE (org_id, po_number)
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_order_items (
			id TEXT PRIMARY KEY,
			po_id TEXT NOT NULL REFERENCES purchase_orders(id),
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL,
			unit_cost NUMERIC(14,2) NOT NULL DEFAULT 0,
			received_quantity INTEGER NOT NULL DEFAULT 0,
			batch_id TEXT REFERENCES batches(id),
			serial_numbers TEXT NOT NULL DEFAULT '[]',
			line_no INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			old_values JSONB,
			new_values JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(org_id, entity_type, entity_id)`,
	}
}
