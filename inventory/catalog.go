package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/inventory-engine/stock"
)

// =============================================================================
// ORGANIZATIONS
// =============================================================================

func (s *Service) CreateOrganization(ctx context.Context, name string) (_ *stock.Organization, err error) {
	defer s.observe("create_organization", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, stock.Invalid("name", "required")
	}
	org := stock.Organization{
		ID:        stock.OrgID(stock.NewID()),
		Name:      name,
		CreatedAt: s.clock(),
	}
	if err := s.store.WithTx(ctx, func(tx stock.Tx) error {
		return tx.CreateOrganization(ctx, org)
	}); err != nil {
		return nil, err
	}
	return &org, nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductInput struct {
	Name          string
	SKU           string
	Category      string
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
	// LowStockLimit defaults to the configured limit when nil.
	LowStockLimit  *int
	IsSerialized   bool
	IsBatchTracked bool
}

// ProductUpdate lists the mutable product fields. Nil means unchanged.
// Tracking flags are fixed at creation.
type ProductUpdate struct {
	Name          *string
	SKU           *string
	Category      *string
	PurchasePrice *decimal.Decimal
	SellingPrice  *decimal.Decimal
	LowStockLimit *int
	IsActive      *bool
}

func (s *Service) CreateProduct(ctx context.Context, org stock.OrgID, actor stock.UserID, in ProductInput) (_ *stock.Product, err error) {
	defer s.observe("create_product", time.Now(), &err)

	p := stock.Product{
		ID:             stock.ProductID(stock.NewID()),
		OrgID:          org,
		Name:           strings.TrimSpace(in.Name),
		SKU:            strings.TrimSpace(in.SKU),
		Category:       strings.TrimSpace(in.Category),
		PurchasePrice:  in.PurchasePrice,
		SellingPrice:   in.SellingPrice,
		LowStockLimit:  s.settings.DefaultLowStockLimit,
		IsSerialized:   in.IsSerialized,
		IsBatchTracked: in.IsBatchTracked,
		IsActive:       true,
		CreatedAt:      s.clock(),
	}
	if in.LowStockLimit != nil {
		p.LowStockLimit = *in.LowStockLimit
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		o, err := tx.GetOrganization(ctx, org)
		if err != nil {
			return err
		}
		if o == nil {
			return stock.NotFound("organization", string(org))
		}
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityProduct,
			EntityID:   string(p.ID),
			Action:     stock.AuditCreate,
			ActorID:    actor,
			NewValues:  productValues(p),
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func validateProduct(p stock.Product) error {
	if p.Name == "" {
		return stock.Invalid("name", "required")
	}
	if p.SKU == "" {
		return stock.Invalid("sku", "required")
	}
	if p.PurchasePrice.IsNegative() {
		return stock.Invalid("purchasePrice", "must not be negative")
	}
	if p.SellingPrice.IsNegative() {
		return stock.Invalid("sellingPrice", "must not be negative")
	}
	if p.LowStockLimit < 0 {
		return stock.Invalid("lowStockLimit", "must not be negative")
	}
	return nil
}

// UpdateProduct changes catalog fields. Prices are locked once any live
// ledger row references the product.
func (s *Service) UpdateProduct(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.ProductID, u ProductUpdate) (_ *stock.Product, err error) {
	defer s.observe("update_product", time.Now(), &err)

	var updated stock.Product
	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		current, err := tx.LockProduct(ctx, org, id)
		if err != nil {
			return err
		}
		if current == nil {
			return stock.NotFound("product", string(id))
		}

		updated = *current
		if u.Name != nil {
			updated.Name = strings.TrimSpace(*u.Name)
		}
		if u.SKU != nil {
			updated.SKU = strings.TrimSpace(*u.SKU)
		}
		if u.Category != nil {
			updated.Category = strings.TrimSpace(*u.Category)
		}
		if u.PurchasePrice != nil {
			updated.PurchasePrice = *u.PurchasePrice
		}
		if u.SellingPrice != nil {
			updated.SellingPrice = *u.SellingPrice
		}
		if u.LowStockLimit != nil {
			updated.LowStockLimit = *u.LowStockLimit
		}
		if u.IsActive != nil {
			updated.IsActive = *u.IsActive
		}
		if err := validateProduct(updated); err != nil {
			return err
		}

		if !updated.PurchasePrice.Equal(current.PurchasePrice) || !updated.SellingPrice.Equal(current.SellingPrice) {
			n, err := tx.CountTransactions(ctx, org, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return stock.Conflict(stock.ErrPriceLocked, "%s has %d transactions", current.SKU, n)
			}
		}

		if err := tx.UpdateProduct(ctx, updated); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityProduct,
			EntityID:   string(id),
			Action:     stock.AuditUpdate,
			ActorID:    actor,
			OldValues:  productValues(*current),
			NewValues:  productValues(updated),
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) GetProduct(ctx context.Context, org stock.OrgID, id stock.ProductID) (*stock.Product, error) {
	p, err := s.store.GetProduct(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, stock.NotFound("product", string(id))
	}
	return p, nil
}

func productValues(p stock.Product) stock.Values {
	return stock.Values{
		"name":          p.Name,
		"sku":           p.SKU,
		"category":      p.Category,
		"purchasePrice": p.PurchasePrice.String(),
		"sellingPrice":  p.SellingPrice.String(),
		"lowStockLimit": p.LowStockLimit,
		"isActive":      p.IsActive,
	}
}

// =============================================================================
// BATCHES
// =============================================================================

type BatchInput struct {
	BatchNumber    string
	ManufacturedAt *time.Time
	ExpiresAt      *time.Time
}

func (s *Service) CreateBatch(ctx context.Context, org stock.OrgID, productID stock.ProductID, in BatchInput) (_ *stock.Batch, err error) {
	defer s.observe("create_batch", time.Now(), &err)

	b := stock.Batch{
		ID:             stock.BatchID(stock.NewID()),
		ProductID:      productID,
		BatchNumber:    strings.TrimSpace(in.BatchNumber),
		ManufacturedAt: in.ManufacturedAt,
		ExpiresAt:      in.ExpiresAt,
		CreatedAt:      s.clock(),
	}
	if b.BatchNumber == "" {
		return nil, stock.Invalid("batchNumber", "required")
	}
	if b.ManufacturedAt != nil && b.ExpiresAt != nil && b.ExpiresAt.Before(*b.ManufacturedAt) {
		return nil, stock.Invalid("expiresAt", "must not be before manufacturedAt")
	}

	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		p, err := tx.GetProduct(ctx, org, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return stock.NotFound("product", string(productID))
		}
		return tx.CreateBatch(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) ListBatches(ctx context.Context, org stock.OrgID, productID stock.ProductID) ([]stock.Batch, error) {
	if err := s.requireProduct(ctx, org, productID); err != nil {
		return nil, err
	}
	return s.store.ListBatches(ctx, productID)
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientInput struct {
	Name         string
	ContactEmail string
	Phone        string
}

func (s *Service) CreateClient(ctx context.Context, org stock.OrgID, in ClientInput) (_ *stock.Client, err error) {
	defer s.observe("create_client", time.Now(), &err)

	c := stock.Client{
		ID:           stock.ClientID(stock.NewID()),
		OrgID:        org,
		Name:         strings.TrimSpace(in.Name),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		Phone:        strings.TrimSpace(in.Phone),
		CreatedAt:    s.clock(),
	}
	if c.Name == "" {
		return nil, stock.Invalid("name", "required")
	}

	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		o, err := tx.GetOrganization(ctx, org)
		if err != nil {
			return err
		}
		if o == nil {
			return stock.NotFound("organization", string(org))
		}
		return tx.CreateClient(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListClients(ctx context.Context, org stock.OrgID) ([]stock.Client, error) {
	return s.store.ListClients(ctx, org)
}

// =============================================================================
// LEDGER READS
// =============================================================================

func (s *Service) GetTransaction(ctx context.Context, org stock.OrgID, id stock.TransactionID) (*stock.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, stock.NotFound("transaction", string(id))
	}
	return t, nil
}

func (s *Service) ListTransactions(ctx context.Context, org stock.OrgID, filter stock.TransactionFilter) ([]stock.Transaction, error) {
	return s.store.ListTransactions(ctx, org, filter)
}
