package permission

import (
	"context"
	"net/http"
	"slices"

	"github.com/dmitrymomot/billing/pkg/response"
)

const (
	// Superuser is granted access to every guarded route.
	Superuser = "superuser"
	// BackofficeManager guards refund and administrative cancellation routes.
	BackofficeManager = "backoffice_manager"
)

// Source returns the permissions granted to the caller of a request.
type Source func(ctx context.Context) []string

// Allowed reports whether granted intersects required or contains Superuser.
func Allowed(granted, required []string) bool {
	for _, g := range granted {
		if g == Superuser || slices.Contains(required, g) {
			return true
		}
	}
	return false
}

// Require returns middleware that lets a request through only when the caller
// holds at least one of required. It panics when required is empty.
func Require(source Source, required ...string) func(http.Handler) http.Handler {
	if source == nil {
		panic("permission: source is required")
	}
	if len(required) == 0 {
		panic("permission: at least one required permission must be given")
	}
	required = slices.Clone(required)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Allowed(source(r.Context()), required) {
				response.Error(w, http.StatusForbidden, "forbidden", "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
