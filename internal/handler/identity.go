package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nveliz/tienda-backend/internal/domain/user"
)

// identity is the caller as asserted by the upstream API gateway, which has
// already authenticated the request. The core trusts the forwarded headers.
type identity struct {
	UserID uuid.UUID
	Role   user.Role
}

func (id identity) admin() bool { return id.Role == user.RoleAdmin }

// callerIdentity extracts the forwarded identity headers. The boolean is
// false when no valid X-User-ID is present.
func callerIdentity(r *http.Request) (identity, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return identity{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return identity{}, false
	}

	return identity{
		UserID: id,
		Role:   user.ToRole(r.Header.Get("X-User-Role")),
	}, true
}

// requireIdentity writes 401 and returns false when the request carries no
// valid identity.
func requireIdentity(w http.ResponseWriter, r *http.Request) (identity, bool) {
	id, ok := callerIdentity(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing or invalid identity")
	}
	return id, ok
}

// requireAdmin writes 403 when the caller is not an administrator.
func requireAdmin(w http.ResponseWriter, r *http.Request) (identity, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return identity{}, false
	}
	if !id.admin() {
		writeError(w, r, http.StatusForbidden, "administrator role required")
		return identity{}, false
	}
	return id, true
}
