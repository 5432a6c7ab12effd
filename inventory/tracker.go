package inventory

import (
	"context"
	"time"

	"github.com/warp/inventory-engine/stock"
)

// AvailableInstances lists the product's serialized units currently in
// stock, ordered by serial number.
func (s *Service) AvailableInstances(ctx context.Context, org stock.OrgID, productID stock.ProductID) ([]stock.ProductInstance, error) {
	return s.Instances(ctx, org, productID, stock.InstanceAvailable)
}

// Instances lists the product's serialized units, optionally filtered by
// status.
func (s *Service) Instances(ctx context.Context, org stock.OrgID, productID stock.ProductID, status stock.InstanceStatus) (_ []stock.ProductInstance, err error) {
	defer s.observe("list_instances", time.Now(), &err)

	if err := s.requireProduct(ctx, org, productID); err != nil {
		return nil, err
	}
	return s.store.ListInstances(ctx, productID, status)
}

// InstanceBySerial returns the unit with the given serial, or nil when the
// ledger never established it.
func (s *Service) InstanceBySerial(ctx context.Context, org stock.OrgID, productID stock.ProductID, serial string) (_ *stock.ProductInstance, err error) {
	defer s.observe("instance_by_serial", time.Now(), &err)

	if err := s.requireProduct(ctx, org, productID); err != nil {
		return nil, err
	}
	return s.store.GetInstance(ctx, productID, serial)
}

// requireProduct scopes instance lookups to the organization.
func (s *Service) requireProduct(ctx context.Context, org stock.OrgID, productID stock.ProductID) error {
	product, err := s.store.GetProduct(ctx, org, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return stock.NotFound("product", string(productID))
	}
	return nil
}

// rederiveInstances replays the ledger for each serial after a row stopped
// counting. Units no remaining movement establishes are removed.
func (s *Service) rederiveInstances(ctx context.Context, tx stock.Tx, org stock.OrgID, productID stock.ProductID, serials []string) error {
	if len(serials) == 0 {
		return nil
	}
	rows, err := tx.ListTransactions(ctx, org, stock.TransactionFilter{ProductID: productID})
	if err != nil {
		return err
	}
	existing, err := tx.LockInstances(ctx, productID, serials)
	if err != nil {
		return err
	}
	byserial := make(map[string]stock.ProductInstance, len(existing))
	for _, inst := range existing {
		byserial[inst.SerialNumber] = inst
	}

	now := s.clock()
	for _, sn := range serials {
		state, ok := s.settings.ReplayInstance(sn, rows)
		if !ok {
			if err := tx.DeleteInstance(ctx, productID, sn); err != nil {
				return err
			}
			continue
		}
		inst, found := byserial[sn]
		if !found {
			inst = stock.ProductInstance{
				ID:           stock.InstanceID(stock.NewID()),
				ProductID:    productID,
				SerialNumber: sn,
			}
		}
		inst.Status = state.Status
		inst.BatchID = state.BatchID
		inst.LastTransactionID = state.LastTransactionID
		inst.UpdatedAt = now
		if err := tx.UpsertInstance(ctx, inst); err != nil {
			return err
		}
	}
	return nil
}
