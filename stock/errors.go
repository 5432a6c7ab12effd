/*
errors.go - Error taxonomy for the stock ledger

PURPOSE:
  Every failure the engine reports falls into one of four classes:

    ValidationError  malformed input, rejected before touching state
    NotFoundError    a referenced row does not exist in the organization
    ConflictError    the request is well-formed but current state forbids it
    StoreError       the persistence layer failed

  Each class has a sentinel usable with errors.Is. Specific conflicts
  (insufficient stock, serial not in stock, duplicates) carry their own
  sentinel and still match ErrConflict.

USAGE:

    if errors.Is(err, stock.ErrInsufficientStock) {
        var ise *stock.InsufficientStockError
        errors.As(err, &ise)
    }
    if stock.IsClientError(err) { ... }

SEE ALSO:
  - inventory/: produces these errors
  - api/handlers.go: maps classes to HTTP status codes
*/
package stock

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store failure")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSerialUnavailable = errors.New("serial not in stock")
	ErrDuplicateSerial   = errors.New("duplicate serial number")
	ErrDuplicateSKU      = errors.New("duplicate sku")
	ErrDuplicateBatch    = errors.New("duplicate batch number")
	ErrDuplicatePONumber = errors.New("duplicate purchase order number")
	ErrAlreadyDeleted    = errors.New("transaction already deleted")
	ErrPriceLocked       = errors.New("price locked by existing transactions")
	ErrHistoricalLock    = errors.New("transaction is outside the editable window")
	ErrInvalidState      = errors.New("invalid state transition")

	// ErrConcurrentModification is returned when the database aborts a
	// transaction because of a competing writer. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing row. Rows of other organizations are
// reported the same way.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError wraps a specific conflict sentinel with detail.
type ConflictError struct {
	Err    error
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ConflictError) Unwrap() []error { return []error{e.Err, ErrConflict} }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID ProductID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() []error {
	return []error{ErrInsufficientStock, ErrConflict}
}

// SerialError reports a serial that cannot leave stock. Status is empty
// when no instance exists for the serial.
type SerialError struct {
	Serial string
	Status InstanceStatus
}

func (e *SerialError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("serial not in stock: %s (unknown serial)", e.Serial)
	}
	return fmt.Sprintf("serial not in stock: %s (status %s)", e.Serial, e.Status)
}

func (e *SerialError) Unwrap() []error {
	return []error{ErrSerialUnavailable, ErrConflict}
}

// StoreError wraps an infrastructure failure with the operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{e.Err, ErrStore} }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func Conflict(sentinel error, format string, args ...any) error {
	return &ConflictError{Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}

// WrapStore wraps err as a StoreError unless it already belongs to the
// taxonomy. nil stays nil.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || errors.Is(err, ErrStore) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR CLASSIFICATION HELPERS
// =============================================================================

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsClientError returns true if the error was caused by the request rather
// than by the system.
func IsClientError(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsConflict(err)
}

// IsRetryable returns true if the operation may succeed when repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
