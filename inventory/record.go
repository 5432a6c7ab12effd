package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/inventory-engine/stock"
)

// TransactionInput describes one stock movement to record.
type TransactionInput struct {
	ProductID     stock.ProductID
	Type          stock.TransactionType
	Quantity      int
	ClientID      *stock.ClientID
	BatchID       *stock.BatchID
	SerialNumbers []string
	// Status is an optional explicit lifecycle status. DAMAGED, RETURNED
	// and INSTALLED override the type default.
	Status              string
	SourceLocation      string
	DestinationLocation string
	ReferenceNumber     string
	UnitPrice           decimal.NullDecimal
	Notes               string
}

// RecordTransaction validates a movement against current state and
// appends it to the ledger, updating serialized instances and writing a
// CREATE audit entry in the same store transaction.
//
// Checks run in this order and stop at the first failure:
//  1. product exists in org (NotFoundError)
//  2. serialized: serial count equals quantity (ValidationError); for
//     outbound movements every serial is AVAILABLE (SerialError)
//  3. batch-tracked: batch supplied (ValidationError)
//  4. outbound: quantity <= current stock (InsufficientStockError)
func (s *Service) RecordTransaction(ctx context.Context, org stock.OrgID, actor stock.UserID, in TransactionInput) (_ *stock.Transaction, err error) {
	defer s.observe("record_transaction", time.Now(), &err)

	in = normalizeInput(in)
	if err := validateInput(org, actor, in); err != nil {
		return nil, err
	}

	var recorded stock.Transaction
	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		var err error
		recorded, err = s.record(ctx, tx, org, actor, in)
		return err
	})
	if err != nil {
		s.log.Warn("transaction rejected",
			zap.String("org_id", string(org)),
			zap.String("product_id", string(in.ProductID)),
			zap.String("type", string(in.Type)),
			zap.Int("quantity", in.Quantity),
			zap.Error(err))
		return nil, err
	}

	s.metrics.Recorded(recorded.Type)
	s.log.Info("transaction recorded",
		zap.String("org_id", string(org)),
		zap.String("transaction_id", string(recorded.ID)),
		zap.String("type", string(recorded.Type)),
		zap.Int("quantity", recorded.Quantity))
	return &recorded, nil
}

func normalizeInput(in TransactionInput) TransactionInput {
	in.Type = stock.TransactionType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	in.SourceLocation = strings.TrimSpace(in.SourceLocation)
	in.DestinationLocation = strings.TrimSpace(in.DestinationLocation)
	if len(in.SerialNumbers) > 0 {
		serials := make([]string, len(in.SerialNumbers))
		for i, sn := range in.SerialNumbers {
			serials[i] = strings.TrimSpace(sn)
		}
		in.SerialNumbers = serials
	}
	return in
}

// validateInput checks what can be checked without the store.
func validateInput(org stock.OrgID, actor stock.UserID, in TransactionInput) error {
	if org == "" {
		return stock.Invalid("orgId", "required")
	}
	if actor == "" {
		return stock.Invalid("userId", "required")
	}
	if in.ProductID == "" {
		return stock.Invalid("productId", "required")
	}
	if !in.Type.IsValid() {
		return stock.Invalid("type", "unknown transaction type %q", in.Type)
	}
	if err := validateQuantity(in.Type, in.Quantity); err != nil {
		return err
	}
	if in.Type == stock.TxStockTransfer && (in.SourceLocation == "" || in.DestinationLocation == "") {
		return stock.Invalid("location", "stock transfers require both source and destination")
	}
	if in.UnitPrice.Valid && in.UnitPrice.Decimal.IsNegative() {
		return stock.Invalid("unitPrice", "must not be negative")
	}

	seen := make(map[string]bool, len(in.SerialNumbers))
	for _, sn := range in.SerialNumbers {
		if sn == "" {
			return stock.Invalid("serialNumbers", "serial numbers must not be empty")
		}
		if seen[sn] {
			return stock.Invalid("serialNumbers", "serial %s listed twice", sn)
		}
		seen[sn] = true
	}
	return nil
}

func validateQuantity(t stock.TransactionType, qty int) error {
	if qty > stock.MaxQuantity || qty < -stock.MaxQuantity {
		return stock.Invalid("quantity", "magnitude must not exceed %d", stock.MaxQuantity)
	}
	if t == stock.TxManualAdjustment {
		if qty == 0 {
			return stock.Invalid("quantity", "adjustment must not be zero")
		}
		return nil
	}
	if qty <= 0 {
		return stock.Invalid("quantity", "must be positive")
	}
	return nil
}

// record runs the ledger checks and writes inside an open transaction.
// Purchase order receiving calls it once per line.
func (s *Service) record(ctx context.Context, tx stock.Tx, org stock.OrgID, actor stock.UserID, in TransactionInput) (stock.Transaction, error) {
	// 1. Product, locked so concurrent outbound movements queue here.
	product, err := tx.LockProduct(ctx, org, in.ProductID)
	if err != nil {
		return stock.Transaction{}, err
	}
	if product == nil {
		return stock.Transaction{}, stock.NotFound("product", string(in.ProductID))
	}
	if !product.IsActive {
		return stock.Transaction{}, stock.Invalid("productId", "product %s is inactive", product.SKU)
	}

	outbound := s.settings.IsOutbound(in.Type, in.SourceLocation, in.DestinationLocation)
	inbound := s.settings.IsInbound(in.Type, in.SourceLocation, in.DestinationLocation)

	// 2. Serial numbers.
	instances := make(map[string]stock.ProductInstance)
	if product.IsSerialized {
		if in.Quantity < 0 || len(in.SerialNumbers) != in.Quantity {
			return stock.Transaction{}, stock.Invalid("serialNumbers",
				"expected %d serial numbers, got %d", in.Quantity, len(in.SerialNumbers))
		}
		locked, err := tx.LockInstances(ctx, product.ID, in.SerialNumbers)
		if err != nil {
			return stock.Transaction{}, err
		}
		for _, inst := range locked {
			instances[inst.SerialNumber] = inst
		}
		for _, sn := range in.SerialNumbers {
			inst, exists := instances[sn]
			switch {
			case outbound && (!exists || inst.Status != stock.InstanceAvailable):
				return stock.Transaction{}, &stock.SerialError{Serial: sn, Status: inst.Status}
			case !outbound && inbound && exists && inst.Status == stock.InstanceAvailable:
				return stock.Transaction{}, stock.Conflict(stock.ErrDuplicateSerial, "%s is already in stock", sn)
			}
		}
	} else if len(in.SerialNumbers) > 0 {
		return stock.Transaction{}, stock.Invalid("serialNumbers", "product %s is not serialized", product.SKU)
	}

	// 3. Batch and client references.
	if product.IsBatchTracked && in.BatchID == nil {
		return stock.Transaction{}, stock.Invalid("batchId", "required for batch-tracked product %s", product.SKU)
	}
	if in.BatchID != nil {
		batch, err := tx.GetBatch(ctx, product.ID, *in.BatchID)
		if err != nil {
			return stock.Transaction{}, err
		}
		if batch == nil {
			return stock.Transaction{}, stock.NotFound("batch", string(*in.BatchID))
		}
	}
	if in.ClientID != nil {
		client, err := tx.GetClient(ctx, org, *in.ClientID)
		if err != nil {
			return stock.Transaction{}, err
		}
		if client == nil {
			return stock.Transaction{}, stock.NotFound("client", string(*in.ClientID))
		}
	}

	// 4. Stock bounds, from the ledger as seen inside this transaction.
	draws := outbound || (in.Type == stock.TxManualAdjustment && in.Quantity < 0)
	delta := s.settings.StockDelta(stock.Transaction{
		Type:                in.Type,
		Quantity:            in.Quantity,
		SourceLocation:      in.SourceLocation,
		DestinationLocation: in.DestinationLocation,
	})
	if draws || delta > 0 {
		rows, err := tx.ListTransactions(ctx, org, stock.TransactionFilter{ProductID: product.ID})
		if err != nil {
			return stock.Transaction{}, err
		}
		available := s.settings.CurrentStock(rows)
		if draws {
			requested := in.Quantity
			if requested < 0 {
				requested = -requested
			}
			if requested > available {
				return stock.Transaction{}, &stock.InsufficientStockError{
					ProductID: product.ID,
					Available: available,
					Requested: requested,
				}
			}
		}
		if delta > 0 && available > stock.MaxQuantity-delta {
			return stock.Transaction{}, stock.Invalid("quantity",
				"stock of %s would exceed %d", product.SKU, stock.MaxQuantity)
		}
	}

	// 5. Persist.
	now := s.clock()
	recorded := stock.Transaction{
		ID:                  stock.TransactionID(stock.NewID()),
		OrgID:               org,
		ProductID:           product.ID,
		Type:                in.Type,
		Quantity:            in.Quantity,
		ClientID:            in.ClientID,
		BatchID:             in.BatchID,
		SerialNumbers:       in.SerialNumbers,
		LifecycleStatus:     stock.DeriveLifecycle(in.Type, in.Status),
		SourceLocation:      in.SourceLocation,
		DestinationLocation: in.DestinationLocation,
		ReferenceNumber:     in.ReferenceNumber,
		UnitPrice:           in.UnitPrice,
		Notes:               in.Notes,
		CreatedBy:           actor,
		CreatedAt:           now,
	}
	if err := tx.InsertTransaction(ctx, recorded); err != nil {
		return stock.Transaction{}, err
	}

	// 6. Instance side effects.
	if product.IsSerialized {
		if next, ok := s.settings.InstanceTransition(in.Type, in.SourceLocation, in.DestinationLocation); ok {
			for _, sn := range in.SerialNumbers {
				inst, exists := instances[sn]
				if !exists {
					inst = stock.ProductInstance{
						ID:           stock.InstanceID(stock.NewID()),
						ProductID:    product.ID,
						SerialNumber: sn,
					}
				}
				inst.Status = next
				if next == stock.InstanceAvailable {
					inst.BatchID = recorded.BatchID
				}
				inst.LastTransactionID = recorded.ID
				inst.UpdatedAt = now
				if err := tx.UpsertInstance(ctx, inst); err != nil {
					return stock.Transaction{}, err
				}
			}
		}
	}

	// 7. Audit.
	if err := s.appendAudit(ctx, tx, stock.AuditEntry{
		OrgID:      org,
		EntityType: stock.EntityTransaction,
		EntityID:   string(recorded.ID),
		Action:     stock.AuditCreate,
		ActorID:    actor,
		NewValues:  transactionValues(recorded),
	}); err != nil {
		return stock.Transaction{}, err
	}
	return recorded, nil
}

// transactionValues snapshots a ledger row for the audit log.
func transactionValues(t stock.Transaction) stock.Values {
	v := stock.Values{
		"productId":           string(t.ProductID),
		"type":                string(t.Type),
		"quantity":            t.Quantity,
		"lifecycleStatus":     string(t.LifecycleStatus),
		"sourceLocation":      t.SourceLocation,
		"destinationLocation": t.DestinationLocation,
		"referenceNumber":     t.ReferenceNumber,
		"notes":               t.Notes,
	}
	if len(t.SerialNumbers) > 0 {
		v["serialNumbers"] = []string(t.SerialNumbers)
	}
	if t.ClientID != nil {
		v["clientId"] = string(*t.ClientID)
	}
	if t.BatchID != nil {
		v["batchId"] = string(*t.BatchID)
	}
	if t.UnitPrice.Valid {
		v["unitPrice"] = t.UnitPrice.Decimal.String()
	}
	return v
}
