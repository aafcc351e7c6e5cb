package webhooks

import (
	"net/http"
	"strings"

	"github.com/dmoreira/storefront-backend/api/controllers/orders"
	"github.com/dmoreira/storefront-backend/api/responses"
	"github.com/dmoreira/storefront-backend/api/validators"
	paymentsvc "github.com/dmoreira/storefront-backend/internal/payments"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/logger"
)

type callbackRequest struct {
	Token string `json:"token" validate:"omitempty,max=500"`
}

// PaymentCallback receives the provider's return/webhook call. The session id
// travels on the checkout header when the buyer's browser is redirected back;
// server-to-server webhooks omit it and rely on token correlation.
func PaymentCallback(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" && r.Body != nil && r.ContentLength != 0 {
			var payload callbackRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			token = strings.TrimSpace(payload.Token)
		}

		sessionID := strings.TrimSpace(r.Header.Get("X-Session-Id"))

		order, err := svc.HandleCallback(r.Context(), sessionID, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewOrderView(order))
	}
}
