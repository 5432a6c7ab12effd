package inventory

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/inventory-engine/stock"
)

// CurrentStock recomputes a product's quantity on hand from its non-deleted
// ledger rows. A product without rows has zero stock.
func (s *Service) CurrentStock(ctx context.Context, org stock.OrgID, productID stock.ProductID) (_ int, err error) {
	defer s.observe("current_stock", time.Now(), &err)

	product, err := s.store.GetProduct(ctx, org, productID)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return 0, stock.NotFound("product", string(productID))
	}
	rows, err := s.store.ListTransactions(ctx, org, stock.TransactionFilter{ProductID: productID})
	if err != nil {
		return 0, err
	}
	return s.settings.CurrentStock(rows), nil
}

// StockLevels returns every product of the organization with its derived
// stock and low-stock flag.
func (s *Service) StockLevels(ctx context.Context, org stock.OrgID, filter stock.ProductFilter) (_ []stock.ProductStock, err error) {
	defer s.observe("stock_levels", time.Now(), &err)

	products, rows, err := s.loadOrg(ctx, org, filter)
	if err != nil {
		return nil, err
	}
	return s.settings.Levels(products, rows), nil
}

// DashboardTotals summarizes an organization's inventory. Reads are
// advisory and run outside a transaction.
func (s *Service) DashboardTotals(ctx context.Context, org stock.OrgID) (_ stock.DashboardTotals, err error) {
	defer s.observe("dashboard_totals", time.Now(), &err)

	products, rows, err := s.loadOrg(ctx, org, stock.ProductFilter{})
	if err != nil {
		return stock.DashboardTotals{}, err
	}
	return s.settings.Totals(products, rows), nil
}

// loadOrg fetches products and non-deleted ledger rows concurrently.
func (s *Service) loadOrg(ctx context.Context, org stock.OrgID, filter stock.ProductFilter) ([]stock.Product, []stock.Transaction, error) {
	var (
		products []stock.Product
		rows     []stock.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.store.ListProducts(gctx, org, filter)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.store.ListTransactions(gctx, org, stock.TransactionFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, rows, nil
}
