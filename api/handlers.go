/*
handlers.go - HTTP API handlers for the inventory engine

PURPOSE:
  Exposes the inventory service via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the service.

REQUEST FLOW:
  1. Tenant middleware resolves organization and user
  2. Decode and convert the request body
  3. Call the service
  4. Serialize the result or map the error

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: ValidationError, malformed JSON
  - 404: NotFoundError
  - 409: ConflictError (insufficient stock, serial not in stock,
         duplicates, already deleted, locked), retryable store conflicts
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/metrics"
	"github.com/warp/inventory-engine/stock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *inventory.Service
	Log     *zap.Logger
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *inventory.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: svc, Log: log}
}

// =============================================================================
// ORGANIZATIONS
// =============================================================================

// CreateOrganization registers a tenant.
// POST /api/organizations
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := h.Service.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ListProducts returns products with their derived stock.
// GET /api/products?active=true&category=...
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	filter := stock.ProductFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Category:   r.URL.Query().Get("category"),
	}
	levels, err := h.Service.StockLevels(r.Context(), id.org, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req CreateProductRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Service.CreateProduct(r.Context(), id.org, id.user, inventory.ProductInput{
		Name:           req.Name,
		SKU:            req.SKU,
		Category:       req.Category,
		PurchasePrice:  req.PurchasePrice,
		SellingPrice:   req.SellingPrice,
		LowStockLimit:  req.LowStockLimit,
		IsSerialized:   req.IsSerialized,
		IsBatchTracked: req.IsBatchTracked,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /api/products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	p, err := h.Service.GetProduct(r.Context(), id.org, stock.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PUT /api/products/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req UpdateProductRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Service.UpdateProduct(r.Context(), id.org, id.user, stock.ProductID(chi.URLParam(r, "id")),
		inventory.ProductUpdate{
			Name:          req.Name,
			SKU:           req.SKU,
			Category:      req.Category,
			PurchasePrice: req.PurchasePrice,
			SellingPrice:  req.SellingPrice,
			LowStockLimit: req.LowStockLimit,
			IsActive:      req.IsActive,
		})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetStock returns the current stock of one product.
// GET /api/products/{id}/stock
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	productID := stock.ProductID(chi.URLParam(r, "id"))

	p, err := h.Service.GetProduct(r.Context(), id.org, productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	qty, err := h.Service.CurrentStock(r.Context(), id.org, productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{
		ProductID:     productID,
		Stock:         qty,
		LowStockLimit: p.LowStockLimit,
		LowStock:      qty <= p.LowStockLimit,
	})
}

// ListInstances returns serialized units, AVAILABLE ones unless a status
// is given (status=all lists every unit).
// GET /api/products/{id}/instances?status=SOLD
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	productID := stock.ProductID(chi.URLParam(r, "id"))

	var (
		instances []stock.ProductInstance
		err       error
	)
	switch status := strings.ToUpper(r.URL.Query().Get("status")); status {
	case "":
		instances, err = h.Service.AvailableInstances(r.Context(), id.org, productID)
	case "ALL":
		instances, err = h.Service.Instances(r.Context(), id.org, productID, "")
	default:
		instances, err = h.Service.Instances(r.Context(), id.org, productID, stock.InstanceStatus(status))
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if instances == nil {
		instances = []stock.ProductInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

// GET /api/products/{id}/instances/{serial}
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	serial := chi.URLParam(r, "serial")
	inst, err := h.Service.InstanceBySerial(r.Context(), id.org, stock.ProductID(chi.URLParam(r, "id")), serial)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if inst == nil {
		writeError(w, http.StatusNotFound, "Instance not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// GET /api/products/{id}/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	batches, err := h.Service.ListBatches(r.Context(), id.org, stock.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if batches == nil {
		batches = []stock.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// POST /api/products/{id}/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req CreateBatchRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.Service.CreateBatch(r.Context(), id.org, stock.ProductID(chi.URLParam(r, "id")), inventory.BatchInput{
		BatchNumber:    req.BatchNumber,
		ManufacturedAt: req.ManufacturedAt,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// GET /api/transactions?productId=...&includeDeleted=true&limit=50
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	q := r.URL.Query()
	filter := stock.TransactionFilter{
		ProductID:      stock.ProductID(q.Get("productId")),
		IncludeDeleted: q.Get("includeDeleted") == "true",
		NewestFirst:    true,
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}
	txs, err := h.Service.ListTransactions(r.Context(), id.org, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []stock.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// RecordTransaction appends a stock movement to the ledger.
// POST /api/transactions
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req RecordTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	tx, err := h.Service.RecordTransaction(r.Context(), id.org, id.user, req.toInput())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	tx, err := h.Service.GetTransaction(r.Context(), id.org, stock.TransactionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// PATCH /api/transactions/{id}
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req EditTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	tx, err := h.Service.EditTransaction(r.Context(), id.org, id.user,
		stock.TransactionID(chi.URLParam(r, "id")), req.toChanges(), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction soft-deletes a ledger row. The reason comes from the
// JSON body or the reason query parameter.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	reason := r.URL.Query().Get("reason")
	if reason == "" && r.ContentLength != 0 {
		var req DeleteTransactionRequest
		if !decode(w, r, &req) {
			return
		}
		reason = req.Reason
	}
	if err := h.Service.SoftDeleteTransaction(r.Context(), id.org, id.user,
		stock.TransactionID(chi.URLParam(r, "id")), reason); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CLIENTS
// =============================================================================

// GET /api/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	clients, err := h.Service.ListClients(r.Context(), id.org)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if clients == nil {
		clients = []stock.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req CreateClientRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Service.CreateClient(r.Context(), id.org, inventory.ClientInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Phone:        req.Phone,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

// GET /api/purchase-orders?status=OPEN
func (h *Handler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	status := stock.POStatus(strings.ToUpper(r.URL.Query().Get("status")))
	orders, err := h.Service.ListPurchaseOrders(r.Context(), id.org, status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []stock.PurchaseOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// POST /api/purchase-orders
func (h *Handler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	var req CreatePurchaseOrderRequest
	if !decode(w, r, &req) {
		return
	}
	po, err := h.Service.CreatePurchaseOrder(r.Context(), id.org, id.user, req.toInput())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, po)
}

// GET /api/purchase-orders/{id}
func (h *Handler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	po, err := h.Service.GetPurchaseOrder(r.Context(), id.org, stock.PurchaseOrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// POST /api/purchase-orders/{id}/open
func (h *Handler) OpenPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	po, err := h.Service.OpenPurchaseOrder(r.Context(), id.org, id.user, stock.PurchaseOrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// POST /api/purchase-orders/{id}/cancel
func (h *Handler) CancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	po, err := h.Service.CancelPurchaseOrder(r.Context(), id.org, id.user, stock.PurchaseOrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

// ReceivePurchaseOrder books the order into stock. Repeating the call is
// safe and answers 200 with alreadyReceived set.
// POST /api/purchase-orders/{id}/receive
func (h *Handler) ReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	res, err := h.Service.ReceivePurchaseOrder(r.Context(), id.org, id.user, stock.PurchaseOrderID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if res.Transactions == nil {
		res.Transactions = []stock.Transaction{}
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// DASHBOARD / AUDIT
// =============================================================================

// GET /api/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	totals, err := h.Service.DashboardTotals(r.Context(), id.org)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if totals.RecentTransactions == nil {
		totals.RecentTransactions = []stock.Transaction{}
	}
	writeJSON(w, http.StatusOK, totals)
}

// GET /api/audit?entityType=transaction&entityId=...&action=EDIT&limit=50
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	q := r.URL.Query()
	filter := stock.AuditFilter{
		EntityType: stock.EntityType(q.Get("entityType")),
		EntityID:   q.Get("entityId"),
		Action:     stock.AuditAction(strings.ToUpper(q.Get("action"))),
		Limit:      100,
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}
	entries, err := h.Service.History(r.Context(), id.org, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []stock.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Code: metrics.Class(err), Details: err.Error()}
	status := http.StatusInternalServerError

	var ise *stock.InsufficientStockError
	switch {
	case stock.IsValidation(err):
		status, resp.Error = http.StatusBadRequest, "Validation failed"
	case stock.IsNotFound(err):
		status, resp.Error = http.StatusNotFound, "Not found"
	case errors.As(err, &ise):
		status, resp.Error = http.StatusConflict, "Insufficient stock"
		resp.Details = map[string]any{
			"message":   err.Error(),
			"available": ise.Available,
			"requested": ise.Requested,
		}
	case stock.IsConflict(err):
		status, resp.Error = http.StatusConflict, "Conflict"
	case stock.IsRetryable(err):
		status, resp.Error = http.StatusConflict, "Concurrent modification, retry"
	default:
		resp.Error = "Internal error"
		resp.Details = nil
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, resp)
}
