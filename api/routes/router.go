package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmoreira/storefront-backend/api/controllers"
	cartcontrollers "github.com/dmoreira/storefront-backend/api/controllers/cart"
	checkoutcontrollers "github.com/dmoreira/storefront-backend/api/controllers/checkout"
	ordercontrollers "github.com/dmoreira/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/dmoreira/storefront-backend/api/controllers/webhooks"
	"github.com/dmoreira/storefront-backend/api/middleware"
	cartsvc "github.com/dmoreira/storefront-backend/internal/cart"
	checkoutsvc "github.com/dmoreira/storefront-backend/internal/checkout"
	ordersvc "github.com/dmoreira/storefront-backend/internal/orders"
	paymentsvc "github.com/dmoreira/storefront-backend/internal/payments"
	"github.com/dmoreira/storefront-backend/internal/products"
	shippingsvc "github.com/dmoreira/storefront-backend/internal/shipping"
	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db"
	"github.com/dmoreira/storefront-backend/pkg/logger"
	"github.com/dmoreira/storefront-backend/pkg/metrics"
	"github.com/dmoreira/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	catalog *products.Repository,
	cartService cartsvc.Service,
	shippingService shippingsvc.Service,
	checkoutService checkoutsvc.Service,
	orderService ordersvc.Service,
	paymentService paymentsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(catalog, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalog, logg))
		})

		r.Post("/webhooks/payment", webhookcontrollers.PaymentCallback(paymentService, logg))
		r.Get("/webhooks/payment", webhookcontrollers.PaymentCallback(paymentService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(cartService, logg))
				r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
				r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(cartService, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(cartService, logg))
				r.Delete("/items", cartcontrollers.CartClear(cartService, logg))
				r.Post("/merge", cartcontrollers.CartMerge(cartService, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/totals", checkoutcontrollers.Totals(checkoutService, logg))
				r.Post("/address", checkoutcontrollers.StoreAddress(shippingService, logg))
				r.Post("/rates", checkoutcontrollers.FetchRates(shippingService, cartService, logg))
				r.Post("/shipping-rate", checkoutcontrollers.SelectRate(shippingService, logg))
				r.Post("/confirm", checkoutcontrollers.Confirm(checkoutService, logg))
				r.Post("/payment", checkoutcontrollers.InitializePayment(paymentService, logg))
			})
		})
	})

	r.Route("/admin/v1/orders", func(r chi.Router) {
		r.Get("/", ordercontrollers.List(orderService, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(orderService, logg))
		r.Post("/{orderId}/mark-paid", ordercontrollers.MarkPaid(orderService, logg))
		r.Post("/{orderId}/mark-failed", ordercontrollers.MarkFailed(orderService, logg))
		r.Post("/{orderId}/cancel", ordercontrollers.Cancel(orderService, logg))
		r.Post("/{orderId}/refund", ordercontrollers.Refund(orderService, logg))
	})

	return r
}
