package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/inventory-engine/stock"
)

type PurchaseOrderInput struct {
	PONumber     string
	SupplierName string
	ExpectedAt   *time.Time
	Notes        string
	Items        []POItemInput
}

type POItemInput struct {
	ProductID     stock.ProductID
	Quantity      int
	UnitCost      decimal.Decimal
	BatchID       *stock.BatchID
	SerialNumbers []string
}

// ReceiveResult is the outcome of ReceivePurchaseOrder. Transactions is
// empty when the order had already been received.
type ReceiveResult struct {
	Order           stock.PurchaseOrder `json:"order"`
	Transactions    []stock.Transaction `json:"transactions"`
	AlreadyReceived bool                `json:"alreadyReceived"`
}

// CreatePurchaseOrder stores a DRAFT order. Lines are checked against the
// catalog now so receiving cannot fail on a malformed line later.
func (s *Service) CreatePurchaseOrder(ctx context.Context, org stock.OrgID, actor stock.UserID, in PurchaseOrderInput) (_ *stock.PurchaseOrder, err error) {
	defer s.observe("create_purchase_order", time.Now(), &err)

	in.PONumber = strings.TrimSpace(in.PONumber)
	if in.PONumber == "" {
		return nil, stock.Invalid("poNumber", "required")
	}
	if actor == "" {
		return nil, stock.Invalid("userId", "required")
	}
	if len(in.Items) == 0 {
		return nil, stock.Invalid("items", "at least one line is required")
	}

	po := stock.PurchaseOrder{
		ID:           stock.PurchaseOrderID(stock.NewID()),
		OrgID:        org,
		PONumber:     in.PONumber,
		SupplierName: strings.TrimSpace(in.SupplierName),
		Status:       stock.PODraft,
		ExpectedAt:   in.ExpectedAt,
		Notes:        in.Notes,
		CreatedBy:    actor,
		CreatedAt:    s.clock(),
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 || item.Quantity > stock.MaxQuantity {
			return nil, stock.Invalid(fmt.Sprintf("items[%d].quantity", i), "must be between 1 and %d", stock.MaxQuantity)
		}
		if item.UnitCost.IsNegative() {
			return nil, stock.Invalid(fmt.Sprintf("items[%d].unitCost", i), "must not be negative")
		}
		po.Items = append(po.Items, stock.POItem{
			ID:            stock.POItemID(stock.NewID()),
			POID:          po.ID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitCost:      item.UnitCost,
			BatchID:       item.BatchID,
			SerialNumbers: item.SerialNumbers,
		})
	}

	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		ordered := make(map[stock.ProductID]int)
		for i, item := range po.Items {
			if err := checkLine(ctx, tx, org, i, item, ordered[item.ProductID]); err != nil {
				return err
			}
			ordered[item.ProductID] += item.Quantity
		}
		if err := tx.CreatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityPurchaseOrder,
			EntityID:   string(po.ID),
			Action:     stock.AuditCreate,
			ActorID:    actor,
			NewValues: stock.Values{
				"poNumber": po.PONumber,
				"supplier": po.SupplierName,
				"lines":    len(po.Items),
				"total":    po.Total().String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// checkLine validates one order line. earlier is the quantity already ordered
// for the same product on previous lines.
func checkLine(ctx context.Context, tx stock.Tx, org stock.OrgID, i int, item stock.POItem, earlier int) error {
	product, err := tx.GetProduct(ctx, org, item.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return stock.NotFound("product", string(item.ProductID))
	}
	field := fmt.Sprintf("items[%d]", i)
	if earlier > stock.MaxQuantity-item.Quantity {
		return stock.Invalid(field+".quantity", "order total for %s exceeds %d", product.SKU, stock.MaxQuantity)
	}
	if product.IsSerialized && len(item.SerialNumbers) != item.Quantity {
		return stock.Invalid(field+".serialNumbers", "expected %d serial numbers, got %d",
			item.Quantity, len(item.SerialNumbers))
	}
	if !product.IsSerialized && len(item.SerialNumbers) > 0 {
		return stock.Invalid(field+".serialNumbers", "product %s is not serialized", product.SKU)
	}
	if product.IsBatchTracked && item.BatchID == nil {
		return stock.Invalid(field+".batchId", "required for batch-tracked product %s", product.SKU)
	}
	if item.BatchID != nil {
		batch, err := tx.GetBatch(ctx, product.ID, *item.BatchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return stock.NotFound("batch", string(*item.BatchID))
		}
	}
	return nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, org stock.OrgID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	po, err := s.store.GetPurchaseOrder(ctx, org, id)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, stock.NotFound("purchase order", string(id))
	}
	return po, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, org stock.OrgID, status stock.POStatus) ([]stock.PurchaseOrder, error) {
	return s.store.ListPurchaseOrders(ctx, org, status)
}

// OpenPurchaseOrder moves a DRAFT order to OPEN.
func (s *Service) OpenPurchaseOrder(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	return s.transitionPurchaseOrder(ctx, org, actor, id, stock.POOpen, stock.PODraft)
}

// CancelPurchaseOrder abandons an order that has not been received.
func (s *Service) CancelPurchaseOrder(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.PurchaseOrderID) (*stock.PurchaseOrder, error) {
	return s.transitionPurchaseOrder(ctx, org, actor, id, stock.POCancelled, stock.PODraft, stock.POOpen)
}

func (s *Service) transitionPurchaseOrder(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.PurchaseOrderID, to stock.POStatus, from ...stock.POStatus) (_ *stock.PurchaseOrder, err error) {
	defer s.observe("transition_purchase_order", time.Now(), &err)

	var po *stock.PurchaseOrder
	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		var err error
		po, err = tx.LockPurchaseOrder(ctx, org, id)
		if err != nil {
			return err
		}
		if po == nil {
			return stock.NotFound("purchase order", string(id))
		}
		if !statusIn(po.Status, from) {
			return stock.Conflict(stock.ErrInvalidState, "purchase order %s is %s, cannot become %s",
				po.PONumber, po.Status, to)
		}
		old := po.Status
		po.Status = to
		if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
			return err
		}
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityPurchaseOrder,
			EntityID:   string(po.ID),
			Action:     stock.AuditUpdate,
			ActorID:    actor,
			OldValues:  stock.Values{"status": string(old)},
			NewValues:  stock.Values{"status": string(to)},
		})
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

func statusIn(status stock.POStatus, allowed []stock.POStatus) bool {
	for _, a := range allowed {
		if status == a {
			return true
		}
	}
	return false
}

// ReceivePurchaseOrder books every line of the order as a PURCHASE through
// the ledger, all or nothing. Receiving an already received order returns
// it unchanged with AlreadyReceived set.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, org stock.OrgID, actor stock.UserID, id stock.PurchaseOrderID) (_ *ReceiveResult, err error) {
	defer s.observe("receive_purchase_order", time.Now(), &err)

	if actor == "" {
		return nil, stock.Invalid("userId", "required")
	}

	var result ReceiveResult
	err = s.store.WithTx(ctx, func(tx stock.Tx) error {
		result = ReceiveResult{}
		po, err := tx.LockPurchaseOrder(ctx, org, id)
		if err != nil {
			return err
		}
		if po == nil {
			return stock.NotFound("purchase order", string(id))
		}

		switch po.Status {
		case stock.POReceived:
			result.Order = *po
			result.AlreadyReceived = true
			return nil
		case stock.POCancelled:
			return stock.Conflict(stock.ErrInvalidState, "purchase order %s is cancelled", po.PONumber)
		}

		txIDs := make([]string, 0, len(po.Items))
		for i := range po.Items {
			item := &po.Items[i]
			in := normalizeInput(TransactionInput{
				ProductID:       item.ProductID,
				Type:            stock.TxPurchase,
				Quantity:        item.Quantity,
				BatchID:         item.BatchID,
				SerialNumbers:   item.SerialNumbers,
				ReferenceNumber: po.PONumber,
				UnitPrice:       decimal.NewNullDecimal(item.UnitCost),
				Notes:           "Received against purchase order " + po.PONumber,
			})
			if err := validateInput(org, actor, in); err != nil {
				return err
			}
			recorded, err := s.record(ctx, tx, org, actor, in)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			item.ReceivedQuantity = item.Quantity
			result.Transactions = append(result.Transactions, recorded)
			txIDs = append(txIDs, string(recorded.ID))
		}

		now := s.clock()
		old := po.Status
		po.Status = stock.POReceived
		po.ReceivedAt = &now
		po.ReceivedBy = actor
		if err := tx.UpdatePurchaseOrder(ctx, *po); err != nil {
			return err
		}
		result.Order = *po
		return s.appendAudit(ctx, tx, stock.AuditEntry{
			OrgID:      org,
			EntityType: stock.EntityPurchaseOrder,
			EntityID:   string(po.ID),
			Action:     stock.AuditReceive,
			ActorID:    actor,
			OldValues:  stock.Values{"status": string(old)},
			NewValues:  stock.Values{"status": string(po.Status), "transactionIds": txIDs},
		})
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyReceived {
		for _, t := range result.Transactions {
			s.metrics.Recorded(t.Type)
		}
		s.log.Info("purchase order received",
			zap.String("org_id", string(org)),
			zap.String("po_number", result.Order.PONumber),
			zap.Int("lines", len(result.Transactions)))
	}
	return &result, nil
}
