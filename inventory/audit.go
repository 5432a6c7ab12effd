package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/inventory-engine/stock"
)

// TransactionChanges lists the fields an edit may touch. Nil means
// unchanged. An empty ClientID clears the client.
type TransactionChanges struct {
	Quantity        *int
	LifecycleStatus *string
	ClientID        *stock.ClientID
	ReferenceNumber *string
	UnitPrice       *decimal.Decimal
	Notes           *string
}

func (c TransactionChanges) empty() bool {
	return c.Quantity == nil && c.LifecycleStatus == nil && c.ClientID == nil &&
		c.ReferenceNumber == nil && c.UnitPrice == nil && c.Notes == nil
}

// EditTransaction corrects a ledger row in place. The previous values and
// the reason are kept in an EDIT audit entry.
func (s *Service) EditTransaction(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.TransactionID, changes TransactionChanges, reason string) (_ *stock.Transaction, err error) {
	defer s.observe("edit_transaction", time.Now(), &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, stock.Invalid("reason", "required")
	}
	if actor == "" {
		return nil, stock.Invalid("userId", "required")
	}
	if changes.empty() {
		return nil, stock.Invalid("changes", "nothing to change")
	}

	var edited stock.Transaction
	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		current, product, err := s.loadMutable(ctx, tx, org, id)
		if err != nil {
			return err
		}

		edited = *current
		if err := s.applyChanges(ctx, tx, org, product, &edited, changes); err != nil {
			return err
		}
		if edited.Quantity != current.Quantity {
			if err := s.checkStockAfter(ctx, tx, org, product.ID, *current, edited); err != nil {
				return err
			}
		}

		now := s.clock()
		edited.EditedAt = &now
		edited.EditedBy = actor
		if err := tx.UpdateTransaction(ctx, edited); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityTransaction,
			EntityID:   string(id),
			Action:     stock.AuditEdit,
			ActorID:    actor,
			Reason:     reason,
			OldValues:  transactionValues(*current),
			NewValues:  transactionValues(edited),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction edited",
		zap.String("org_id", string(org)),
		zap.String("transaction_id", string(id)),
		zap.String("actor", string(actor)))
	return &edited, nil
}

func (s *Service) applyChanges(ctx context.Context, tx stock.Tx, org stock.OrgID, product *stock.Product, t *stock.Transaction, c TransactionChanges) error {
	if c.Quantity != nil {
		if product.IsSerialized && *c.Quantity != t.Quantity {
			return stock.Invalid("quantity", "quantity of a serialized movement cannot change; delete and re-record it")
		}
		if err := validateQuantity(t.Type, *c.Quantity); err != nil {
			return err
		}
		t.Quantity = *c.Quantity
	}
	if c.LifecycleStatus != nil {
		status, ok := stock.ParseLifecycle(*c.LifecycleStatus)
		if !ok {
			return stock.Invalid("lifecycleStatus", "unknown status %q", *c.LifecycleStatus)
		}
		t.LifecycleStatus = status
	}
	if c.ClientID != nil {
		if *c.ClientID == "" {
			t.ClientID = nil
		} else {
			client, err := tx.GetClient(ctx, org, *c.ClientID)
			if err != nil {
				return err
			}
			if client == nil {
				return stock.NotFound("client", string(*c.ClientID))
			}
			clientID := client.ID
			t.ClientID = &clientID
		}
	}
	if c.ReferenceNumber != nil {
		t.ReferenceNumber = *c.ReferenceNumber
	}
	if c.UnitPrice != nil {
		if c.UnitPrice.IsNegative() {
			return stock.Invalid("unitPrice", "must not be negative")
		}
		t.UnitPrice = decimal.NewNullDecimal(*c.UnitPrice)
	}
	if c.Notes != nil {
		t.Notes = *c.Notes
	}
	return nil
}

// SoftDeleteTransaction stops a ledger row from counting. The row stays in
// the ledger and in audit history. Deleting twice fails with
// ErrAlreadyDeleted and changes nothing.
func (s *Service) SoftDeleteTransaction(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.TransactionID, reason string) (err error) {
	defer s.observe("soft_delete_transaction", time.Now(), &err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return stock.Invalid("reason", "required")
	}
	if actor == "" {
		return stock.Invalid("userId", "required")
	}

	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		current, product, err := s.loadMutable(ctx, tx, org, id)
		if err != nil {
			return err
		}

		deleted := *current
		now := s.clock()
		deleted.DeletedAt = &now
		deleted.DeletedBy = actor
		if err := s.checkStockAfter(ctx, tx, org, product.ID, *current, deleted); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, deleted); err != nil {
			return err
		}
		if product.IsSerialized {
			if err := s.rederiveInstances(ctx, tx, org, product.ID, current.SerialNumbers); err != nil {
				return err
			}
		}
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityTransaction,
			EntityID:   string(id),
			Action:     stock.AuditDelete,
			ActorID:    actor,
			Reason:     reason,
			OldValues:  transactionValues(*current),
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("transaction deleted",
		zap.String("org_id", string(org)),
		zap.String("transaction_id", string(id)),
		zap.String("actor", string(actor)))
	return nil
}

// loadMutable locks the row's product, then re-reads the row under its own
// lock so the deleted and historical checks see the committed state.
func (s *Service) loadMutable(ctx context.Context, tx stock.Tx, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, *stock.Product, error) {
	peek, err := tx.GetTransaction(ctx, org, id)
	if err != nil {
		return nil, nil, err
	}
	if peek == nil {
		return nil, nil, stock.NotFound("transaction", string(id))
	}

	product, err := tx.LockProduct(ctx, org, peek.ProductID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, stock.NotFound("product", string(peek.ProductID))
	}
	current, err := tx.LockTransaction(ctx, org, id)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, stock.NotFound("transaction", string(id))
	}

	if current.IsDeleted() {
		return nil, nil, stock.Conflict(stock.ErrAlreadyDeleted, "%s", id)
	}
	if lock := s.settings.HistoricalLock; lock > 0 && s.clock().Sub(current.CreatedAt) > lock {
		return nil, nil, stock.Conflict(stock.ErrHistoricalLock, "%s was recorded on %s",
			id, current.CreatedAt.Format(time.DateOnly))
	}
	return current, product, nil
}

// checkStockAfter rejects a change to one row that would drive stock below
// zero or above MaxQuantity. Changes that move stock back toward the range,
// or leave it no worse, pass.
func (s *Service) checkStockAfter(ctx context.Context, tx stock.Tx, org stock.OrgID, productID stock.ProductID, before, after stock.Transaction) error {
	rows, err := tx.ListTransactions(ctx, org, stock.TransactionFilter{ProductID: productID})
	if err != nil {
		return err
	}
	current := s.settings.CurrentStock(rows)
	next := current - s.settings.StockDelta(before) + s.settings.StockDelta(after)
	if next < 0 && next < current {
		return &stock.InsufficientStockError{
			ProductID: productID,
			Available: current,
			Requested: current - next,
		}
	}
	if next > stock.MaxQuantity && next > current {
		return stock.Invalid("quantity", "stock of %s would exceed %d", productID, stock.MaxQuantity)
	}
	return nil
}

// History returns audit entries, newest first.
func (s *Service) History(ctx context.Context, org stock.OrgID, filter stock.AuditFilter) (_ []stock.AuditEntry, err error) {
	defer s.observe("history", time.Now(), &err)
	return s.store.ListAudit(ctx, org, filter)
}
