/*
Package sqlstore implements stock.Store on top of database/sql via sqlx.

PURPOSE:
  One implementation of every query, shared by the SQLite and PostgreSQL
  backends. A Dialect supplies what differs: the schema, the locking clause,
  the insertion-order column and how driver errors are classified.

KEY TABLES:
  organizations, products, batches, clients
  inventory_transactions:  the ledger (soft delete + in-place edit)
  product_instances:       one row per serialized unit
  purchase_orders, purchase_order_items
  audit_logs:              append-only change history

UNIQUE CONSTRAINTS:
  (org_id, sku), (product_id, serial_number), (product_id, batch_number),
  (org_id, po_number). Violations surface as stock.ConflictError.

CONCURRENCY:
  WithTx runs the callback in one database transaction. Locker methods add
  the dialect's locking clause (FOR UPDATE on PostgreSQL). Dialects that
  admit a single writer (SQLite) also take an in-process mutex for the
  duration of the transaction.

  Inside WithTx, use only the stock.Tx handed to the callback. On a
  single-connection database a read through the Store itself would wait for
  the connection the transaction holds.

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  store, err := postgres.Open(ctx, postgres.Config{DSN: dsn})

SEE ALSO:
  - stock/store.go: Interface definitions
  - store/sqlite, store/postgres: Dialects
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/warp/inventory-engine/stock"
)

// Dialect captures what differs between database engines.
type Dialect interface {
	Name() string
	// Schema returns idempotent DDL statements.
	Schema() []string
	// ForUpdate is appended to locking reads. Empty when the engine
	// serializes writers on its own.
	ForUpdate() string
	// OrderColumn breaks created_at ties in insertion order.
	OrderColumn() string
	// SingleWriter reports whether writers must be serialized in process.
	SingleWriter() bool
	// UniqueViolation reports whether err is a unique constraint failure,
	// with a description of the constraint.
	UniqueViolation(err error) (string, bool)
	// Retryable reports whether err is a serialization failure, deadlock
	// or lock timeout.
	Retryable(err error) bool
}

// Store implements stock.Store.
type Store struct {
	reader
	db *sqlx.DB
	mu sync.Mutex
}

var _ stock.Store = (*Store)(nil)

// New wraps an open database. It does not create the schema; call Migrate.
func New(db *sqlx.DB, d Dialect) *Store {
	return &Store{reader: reader{q: db, d: d}, db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.d }

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.d.Name(), err)
		}
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(stock.Tx) error) error {
	if s.d.SingleWriter() {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	dbTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return s.translate("begin", err, nil)
	}
	defer dbTx.Rollback()

	if err := fn(&sqlTx{reader: reader{q: dbTx, d: s.d}}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return s.translate("commit", err, nil)
	}
	return nil
}

// =============================================================================
// ERROR TRANSLATION
// =============================================================================

// translate maps a driver error into the stock taxonomy. dup is the
// conflict sentinel reported for unique violations; nil leaves them as
// store errors.
func (r reader) translate(op string, err error, dup error) error {
	if err == nil {
		return nil
	}
	if detail, ok := r.d.UniqueViolation(err); ok && dup != nil {
		return stock.Conflict(dup, "%s", detail)
	}
	if r.d.Retryable(err) {
		return &stock.StoreError{Op: op, Err: fmt.Errorf("%w: %v", stock.ErrConcurrentModification, err)}
	}
	return stock.WrapStore(op, err)
}
