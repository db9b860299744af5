package shared

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

// Identity is the already-authenticated caller: the tenant workspace and,
// for mutating requests, the acting user.
type Identity struct {
	WorkspaceID int64
	UserID      int64
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.WorkspaceID > 0
}

// RequireIdentity reads the identity or answers 401.
func RequireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: missing workspace identity", httpx.ErrUnauthorized))
		return Identity{}, false
	}
	return id, true
}
