package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/storefront-api/internal/domain/auth"
)

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// identityFrom extracts the verified identity stored by authenticate.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// authenticate requires a valid bearer token and stores the identity it
// carries in the request context.
func (h *Handler) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "not authorized, no token provided")
			return
		}

		identity, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "not authorized, token invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next(w, r.WithContext(ctx))
	}
}

// adminOnly is authenticate plus an admin role requirement.
func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return h.authenticate(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok || !identity.IsAdmin() {
			respondError(w, http.StatusForbidden, "access denied, admin only")
			return
		}
		next(w, r)
	})
}
