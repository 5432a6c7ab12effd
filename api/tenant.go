package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/inventory-engine/stock"
)

const (
	HeaderOrganization = "X-Organization-ID"
	HeaderUser         = "X-User-ID"
)

type ctxKey int

const identityKey ctxKey = iota

type identity struct {
	org  stock.OrgID
	user stock.UserID
}

// Tenant requires an organization header and stores it, with the optional
// user header, in the request context.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := strings.TrimSpace(r.Header.Get(HeaderOrganization))
		if org == "" {
			writeError(w, http.StatusBadRequest, "Missing "+HeaderOrganization+" header", nil)
			return
		}
		id := identity{
			org:  stock.OrgID(org),
			user: stock.UserID(strings.TrimSpace(r.Header.Get(HeaderUser))),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey).(identity)
	return id
}
