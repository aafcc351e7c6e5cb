package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmoreira/storefront-backend/api/responses"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/logger"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

const (
	sessionIDHeader = "X-Session-Id"
	userIDHeader    = "X-User-Id"
)

// Session resolves the caller identity from headers. A missing session id is
// minted and echoed back so the storefront can persist it client-side; a
// malformed user id is rejected rather than silently treated as a guest.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := types.Identity{SessionID: r.Header.Get(sessionIDHeader)}
			if identity.SessionID == "" {
				identity.SessionID = uuid.NewString()
			}
			w.Header().Set(sessionIDHeader, identity.SessionID)

			if raw := r.Header.Get(userIDHeader); raw != "" {
				userID, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
					return
				}
				identity.UserID = &userID
			}

			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, identity.SessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
