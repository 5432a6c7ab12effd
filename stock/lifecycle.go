package stock

import "strings"

// DeriveLifecycle stamps the lifecycle status of a new transaction. An
// explicit DAMAGED, RETURNED or INSTALLED (in that order of precedence,
// case-insensitive) wins; any other explicit value falls back to the
// type-derived default.
func DeriveLifecycle(t TransactionType, explicit string) Lifecycle {
	switch strings.ToUpper(strings.TrimSpace(explicit)) {
	case string(LifecycleDamaged):
		return LifecycleDamaged
	case string(LifecycleReturned):
		return LifecycleReturned
	case string(LifecycleInstalled):
		return LifecycleInstalled
	}

	switch t {
	case TxPurchase:
		return LifecyclePurchased
	case TxSale:
		return LifecycleInstalled
	case TxCustomerReturn:
		return LifecycleReturned
	case TxStockTransfer:
		return LifecycleInstalled
	default:
		return LifecyclePurchased
	}
}

// ParseLifecycle accepts any of the four statuses, case-insensitively.
func ParseLifecycle(s string) (Lifecycle, bool) {
	switch l := Lifecycle(strings.ToUpper(strings.TrimSpace(s))); l {
	case LifecyclePurchased, LifecycleInstalled, LifecycleReturned, LifecycleDamaged:
		return l, true
	}
	return "", false
}

// InstanceTransition returns the status a serialized unit takes after a
// movement, and false when the movement leaves instances untouched.
func (s Settings) InstanceTransition(t TransactionType, source, destination string) (InstanceStatus, bool) {
	if s.IsInbound(t, source, destination) {
		return InstanceAvailable, true
	}
	if s.IsOutbound(t, source, destination) {
		if t == TxSale {
			return InstanceSold, true
		}
		return InstanceTransferred, true
	}
	return "", false
}
