package checkout

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmoreira/storefront-backend/api/controllers/orders"
	"github.com/dmoreira/storefront-backend/api/middleware"
	"github.com/dmoreira/storefront-backend/api/responses"
	"github.com/dmoreira/storefront-backend/api/validators"
	cartsvc "github.com/dmoreira/storefront-backend/internal/cart"
	checkoutsvc "github.com/dmoreira/storefront-backend/internal/checkout"
	paymentsvc "github.com/dmoreira/storefront-backend/internal/payments"
	"github.com/dmoreira/storefront-backend/internal/pricing"
	shippingsvc "github.com/dmoreira/storefront-backend/internal/shipping"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/logger"
	"github.com/dmoreira/storefront-backend/pkg/types"
)

type addressRequest struct {
	FullName   string  `json:"full_name" validate:"required,max=200"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	State      *string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string  `json:"postal_code" validate:"max=20"`
	Country    string  `json:"country" validate:"required,len=2"`
}

type selectRateRequest struct {
	ServiceCode string `json:"service_code" validate:"required,max=100"`
}

type initializePaymentRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

func (p addressRequest) toAddress() types.Address {
	return types.Address{
		FullName:   p.FullName,
		Phone:      p.Phone,
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Country:    p.Country,
	}
}

// StoreAddress validates and caches the checkout address for the session.
func StoreAddress(svc shippingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		var payload addressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address := payload.toAddress()
		if err := svc.StoreAddress(r.Context(), identity.SessionID, address); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, address)
	}
}

// FetchRates quotes shipping for the current cart and cached address.
func FetchRates(shipping shippingsvc.Service, carts cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if shipping == nil || carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		cart, err := carts.Resolve(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address, err := shipping.StoredAddress(r.Context(), identity.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if address == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "checkout address not set"))
			return
		}

		rates, err := shipping.GetRates(r.Context(), identity.SessionID, cart, *address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rates)
	}
}

// SelectRate pins one of the quoted services for the session.
func SelectRate(svc shippingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		var payload selectRateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := svc.SelectRate(r.Context(), identity.SessionID, payload.ServiceCode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rate)
	}
}

type totalsLineView struct {
	ProductID uuid.UUID       `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxName   string          `json:"tax_name"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	TaxTotal  decimal.Decimal `json:"tax_total"`
	Total     decimal.Decimal `json:"total"`
}

type totalsView struct {
	Currency      string           `json:"currency"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	DiscountTotal decimal.Decimal  `json:"discount_total"`
	TaxTotal      decimal.Decimal  `json:"tax_total"`
	ShippingTotal decimal.Decimal  `json:"shipping_total"`
	GrandTotal    decimal.Decimal  `json:"grand_total"`
	Lines         []totalsLineView `json:"lines"`
}

func newTotalsView(totals *pricing.TotalsView) totalsView {
	view := totalsView{
		Currency:      totals.Currency,
		Subtotal:      totals.Subtotal,
		DiscountTotal: totals.DiscountTotal,
		TaxTotal:      totals.TaxTotal,
		ShippingTotal: totals.ShippingTotal,
		GrandTotal:    totals.GrandTotal,
		Lines:         make([]totalsLineView, 0, len(totals.Lines)),
	}
	for _, line := range totals.Lines {
		view.Lines = append(view.Lines, totalsLineView{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			TaxName:   line.Tax.Name,
			TaxRate:   line.Tax.Rate,
			TaxTotal:  line.TaxTotal,
			Total:     line.Total,
		})
	}
	return view
}

// Totals previews what Confirm would charge for the current cart and
// shipping selection without creating anything.
func Totals(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		totals, err := svc.Totals(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTotalsView(totals))
	}
}

// Confirm turns the cart plus checkout session state into a pending order.
func Confirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		order, err := svc.Confirm(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewOrderView(order))
	}
}

// InitializePayment opens a provider conversation for a pending order.
func InitializePayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
			return
		}

		var payload initializePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initialize(r.Context(), identity, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"payment_id":      result.Payment.ID,
			"conversation_id": result.Payment.ConversationID,
			"status":          result.Payment.Status,
			"order":           orders.NewOrderView(result.Order),
			"provider":        result.Provider.Raw,
		})
	}
}
