package inventory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/stock"
	"github.com/warp/inventory-engine/stock/store"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestEdit_QuantityWithAudit(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: purchase of 10
		p := f.product(t, "ED-1")
		tx := f.record(t, purchase(p, 10))

		// WHEN: the quantity is corrected to 8
		edited, err := f.svc.EditTransaction(f.ctx, f.org, "auditor", tx.ID,
			inventory.TransactionChanges{Quantity: intPtr(8)}, "miscounted delivery")
		require.NoError(t, err)

		// THEN: stock follows, the row carries edit stamps and an EDIT
		//       entry records old and new values with the reason
		assert.Equal(t, 8, f.stock(t, p))
		assert.Equal(t, 8, edited.Quantity)
		require.NotNil(t, edited.EditedAt)
		assert.Equal(t, stock.UserID("auditor"), edited.EditedBy)

		entries, err := f.svc.History(f.ctx, f.org, stock.AuditFilter{EntityID: string(tx.ID), Action: stock.AuditEdit})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "miscounted delivery", entries[0].Reason)
		assert.EqualValues(t, 10, entries[0].OldValues["quantity"])
		assert.EqualValues(t, 8, entries[0].NewValues["quantity"])
	})
}

func TestEdit_RequiresReasonAndChanges(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		p := f.product(t, "ED-2")
		tx := f.record(t, purchase(p, 3))

		_, err := f.svc.EditTransaction(f.ctx, f.org, user, tx.ID, inventory.TransactionChanges{Notes: strPtr("x")}, "  ")
		assert.True(t, stock.IsValidation(err))

		_, err = f.svc.EditTransaction(f.ctx, f.org, user, tx.ID, inventory.TransactionChanges{}, "typo")
		assert.True(t, stock.IsValidation(err))

		_, err = f.svc.EditTransaction(f.ctx, f.org, user, tx.ID,
			inventory.TransactionChanges{LifecycleStatus: strPtr("LOST")}, "typo")
		assert.True(t, stock.IsValidation(err))

		_, err = f.svc.EditTransaction(f.ctx, f.org, user, "missing", inventory.TransactionChanges{Notes: strPtr("x")}, "typo")
		assert.True(t, stock.IsNotFound(err))
	})
}

func TestEdit_CannotDriveStockNegative(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: purchase 5, sale 4
		p := f.product(t, "ED-3")
		buy := f.record(t, purchase(p, 5))
		f.record(t, sale(p, 4))

		// WHEN: the purchase is corrected down to 3
		_, err := f.svc.EditTransaction(f.ctx, f.org, user, buy.ID,
			inventory.TransactionChanges{Quantity: intPtr(3)}, "recount")

		// THEN: rejected, nothing changes
		assert.ErrorIs(t, err, stock.ErrInsufficientStock)
		assert.Equal(t, 1, f.stock(t, p))
	})
}

func TestEdit_CannotOverflowStock(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: stock at the bound across two purchases
		p := f.product(t, "ED-5")
		small := f.record(t, purchase(p, 10))
		f.record(t, purchase(p, stock.MaxQuantity-10))

		// WHEN: the small purchase is raised by one, or beyond the bound
		_, err := f.svc.EditTransaction(f.ctx, f.org, user, small.ID,
			inventory.TransactionChanges{Quantity: intPtr(11)}, "recount")
		assert.True(t, stock.IsValidation(err), "got %v", err)
		_, err = f.svc.EditTransaction(f.ctx, f.org, user, small.ID,
			inventory.TransactionChanges{Quantity: intPtr(stock.MaxQuantity + 1)}, "recount")
		assert.True(t, stock.IsValidation(err), "got %v", err)

		// THEN: nothing changes
		assert.Equal(t, stock.MaxQuantity, f.stock(t, p))

		// Lowering it is fine.
		_, err = f.svc.EditTransaction(f.ctx, f.org, user, small.ID,
			inventory.TransactionChanges{Quantity: intPtr(9)}, "recount")
		require.NoError(t, err)
		assert.Equal(t, stock.MaxQuantity-1, f.stock(t, p))
	})
}

func TestEdit_ConcurrentEditsKeepStockValid(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: purchase 5, sale 3
		p := f.product(t, "ED-6")
		buy := f.record(t, purchase(p, 5))
		f.record(t, sale(p, 3))

		// WHEN: two goroutines correct the same purchase down to 3 and to 1
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, qty := range []int{3, 1} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.svc.EditTransaction(f.ctx, f.org, user, buy.ID,
					inventory.TransactionChanges{Quantity: intPtr(qty)}, "recount")
			}()
		}
		wg.Wait()

		// THEN: the edit to 1 is always rejected, the other lands, and
		//       stock never goes below zero
		require.NoError(t, errs[0])
		assert.ErrorIs(t, errs[1], stock.ErrInsufficientStock)
		assert.Equal(t, 0, f.stock(t, p))

		entries, err := f.svc.History(f.ctx, f.org, stock.AuditFilter{EntityID: string(buy.ID), Action: stock.AuditEdit})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestEdit_SerializedQuantityIsFixed(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		p := f.product(t, "ED-4", serialized)
		tx := f.record(t, purchase(p, 1, "Q1"))

		_, err := f.svc.EditTransaction(f.ctx, f.org, user, tx.ID,
			inventory.TransactionChanges{Quantity: intPtr(2)}, "wrong")
		assert.True(t, stock.IsValidation(err))

		price := decimal.RequireFromString("12.50")
		edited, err := f.svc.EditTransaction(f.ctx, f.org, user, tx.ID,
			inventory.TransactionChanges{UnitPrice: &price, ReferenceNumber: strPtr("INV-77")}, "invoice arrived")
		require.NoError(t, err)
		assert.True(t, edited.UnitPrice.Valid)
		assert.True(t, price.Equal(edited.UnitPrice.Decimal))
		assert.Equal(t, "INV-77", edited.ReferenceNumber)
	})
}

func TestSoftDelete_StockAndAudit(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: purchase 10, sale 3
		p := f.product(t, "DEL-1")
		f.record(t, purchase(p, 10))
		s := f.record(t, sale(p, 3))

		// WHEN: the sale is deleted
		require.NoError(t, f.svc.SoftDeleteTransaction(f.ctx, f.org, user, s.ID, "entered twice"))

		// THEN: stock is back to 10, the row remains with its delete stamp,
		//       and a DELETE entry holds the reason
		assert.Equal(t, 10, f.stock(t, p))

		row, err := f.svc.GetTransaction(f.ctx, f.org, s.ID)
		require.NoError(t, err)
		require.NotNil(t, row.DeletedAt)
		assert.Equal(t, user, row.DeletedBy)
		assert.Len(t, f.ledger(t, p), 2)

		entries, err := f.svc.History(f.ctx, f.org, stock.AuditFilter{EntityID: string(s.ID), Action: stock.AuditDelete})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "entered twice", entries[0].Reason)

		// Deleting again is a conflict and writes nothing.
		err = f.svc.SoftDeleteTransaction(f.ctx, f.org, user, s.ID, "again")
		assert.ErrorIs(t, err, stock.ErrAlreadyDeleted)
		entries, err = f.svc.History(f.ctx, f.org, stock.AuditFilter{EntityID: string(s.ID), Action: stock.AuditDelete})
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		// A deleted row cannot be edited.
		_, err = f.svc.EditTransaction(f.ctx, f.org, user, s.ID, inventory.TransactionChanges{Notes: strPtr("n")}, "fix")
		assert.ErrorIs(t, err, stock.ErrAlreadyDeleted)
	})
}

func TestSoftDelete_ConcurrentDeletes(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: purchase 10, sale 3
		p := f.product(t, "DEL-5")
		f.record(t, purchase(p, 10))
		s := f.record(t, sale(p, 3))

		// WHEN: four goroutines delete the same sale
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			deleted int
			already int
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := f.svc.SoftDeleteTransaction(f.ctx, f.org, user, s.ID, "entered twice")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					deleted++
				case errors.Is(err, stock.ErrAlreadyDeleted):
					already++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		// THEN: exactly one delete wins and writes one DELETE entry
		assert.Equal(t, 1, deleted)
		assert.Equal(t, 3, already)
		assert.Equal(t, 10, f.stock(t, p))

		entries, err := f.svc.History(f.ctx, f.org, stock.AuditFilter{EntityID: string(s.ID), Action: stock.AuditDelete})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestSoftDelete_RederivesInstances(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: units A and B purchased, A sold
		p := f.product(t, "DEL-2", serialized)
		buy := f.record(t, purchase(p, 2, "A", "B"))
		s := f.record(t, sale(p, 1, "A"))

		// WHEN: the sale is deleted
		require.NoError(t, f.svc.SoftDeleteTransaction(f.ctx, f.org, user, s.ID, "cancelled order"))

		// THEN: A is available again, pointing back at the purchase
		inst, err := f.svc.InstanceBySerial(f.ctx, f.org, p, "A")
		require.NoError(t, err)
		require.NotNil(t, inst)
		assert.Equal(t, stock.InstanceAvailable, inst.Status)
		assert.Equal(t, buy.ID, inst.LastTransactionID)

		// WHEN: the purchase is deleted too
		require.NoError(t, f.svc.SoftDeleteTransaction(f.ctx, f.org, user, buy.ID, "wrong supplier"))

		// THEN: neither unit exists any more
		all, err := f.svc.Instances(f.ctx, f.org, p, "")
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.Equal(t, 0, f.stock(t, p))
	})
}

func TestSoftDelete_CannotDriveStockNegative(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		p := f.product(t, "DEL-3")
		buy := f.record(t, purchase(p, 5))
		f.record(t, sale(p, 2))

		err := f.svc.SoftDeleteTransaction(f.ctx, f.org, user, buy.ID, "oops")
		assert.ErrorIs(t, err, stock.ErrInsufficientStock)
		assert.Equal(t, 3, f.stock(t, p))
	})
}

func TestHistoricalLock(t *testing.T) {
	backends(t, func(t *testing.T, f *fixture) {
		// GIVEN: a row recorded 31 days ago
		p := f.product(t, "OLD-2")
		tx := f.record(t, purchase(p, 4))
		f.clock.Advance(31 * 24 * time.Hour)

		// THEN: it can be neither edited nor deleted
		_, err := f.svc.EditTransaction(f.ctx, f.org, user, tx.ID, inventory.TransactionChanges{Notes: strPtr("late")}, "late fix")
		assert.ErrorIs(t, err, stock.ErrHistoricalLock)

		err = f.svc.SoftDeleteTransaction(f.ctx, f.org, user, tx.ID, "late fix")
		assert.ErrorIs(t, err, stock.ErrHistoricalLock)
		assert.Equal(t, 4, f.stock(t, p))
	})
}

func TestHistoricalLock_ZeroDisables(t *testing.T) {
	c := newClock()
	settings := stock.DefaultSettings()
	settings.HistoricalLock = 0
	f := newFixture(t, store.NewMemory())
	f.clock = c
	f.svc = inventory.New(f.store, inventory.WithClock(c.Now), inventory.WithSettings(settings))

	p := f.product(t, "OLD-3")
	tx := f.record(t, purchase(p, 4))
	c.Advance(400 * 24 * time.Hour)

	_, err := f.svc.EditTransaction(f.ctx, f.org, user, tx.ID, inventory.TransactionChanges{Quantity: intPtr(6)}, "annual recount")
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, p))
}
