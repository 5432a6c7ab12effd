/*
Package inventory is the stock-ledger engine.

PURPOSE:
  Service is the single entry point collaborators call with an already
  authenticated organization and user. It owns the rules that need the
  store: validation against current stock, serial availability, instance
  side effects, audit entries and purchase order receiving.

OPERATIONS:
  record.go:    RecordTransaction
  aggregate.go: CurrentStock, StockLevels, DashboardTotals
  tracker.go:   AvailableInstances, InstanceBySerial, Instances
  audit.go:     EditTransaction, SoftDeleteTransaction, History
  purchase.go:  Create/Open/Cancel/ReceivePurchaseOrder
  catalog.go:   organizations, products, batches, clients

ATOMICITY:
  Every operation that writes runs its whole read-validate-write sequence
  inside one store.WithTx call. A failure at any step leaves the store
  unchanged.

NO CACHING:
  Stock is recomputed from the ledger on every read with the functions in
  stock/aggregate.go.
*/
package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/inventory-engine/metrics"
	"github.com/warp/inventory-engine/stock"
)

type Service struct {
	store    stock.Store
	settings stock.Settings
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithSettings(settings stock.Settings) Option {
	return func(s *Service) { s.settings = settings }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for created/edited stamps and
// the historical lock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store stock.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		settings: stock.DefaultSettings(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Settings() stock.Settings { return s.settings }

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// observe is deferred by every public operation.
func (s *Service) observe(operation string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	s.metrics.Observe(operation, start, err)
	if err != nil && !stock.IsClientError(err) {
		s.log.Error("operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

func (s *Service) appendAudit(ctx context.Context, tx stock.Tx, entry stock.AuditEntry) error {
	entry.ID = stock.AuditID(stock.NewID())
	entry.CreatedAt = s.clock()
	return tx.AppendAudit(ctx, entry)
}
