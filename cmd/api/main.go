package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmoreira/storefront-backend/api/routes"
	"github.com/dmoreira/storefront-backend/internal/cart"
	"github.com/dmoreira/storefront-backend/internal/checkout"
	"github.com/dmoreira/storefront-backend/internal/inventory"
	"github.com/dmoreira/storefront-backend/internal/orders"
	"github.com/dmoreira/storefront-backend/internal/payments"
	"github.com/dmoreira/storefront-backend/internal/pricing"
	"github.com/dmoreira/storefront-backend/internal/products"
	"github.com/dmoreira/storefront-backend/internal/shipping"
	"github.com/dmoreira/storefront-backend/pkg/config"
	"github.com/dmoreira/storefront-backend/pkg/db"
	"github.com/dmoreira/storefront-backend/pkg/logger"
	"github.com/dmoreira/storefront-backend/pkg/metrics"
	"github.com/dmoreira/storefront-backend/pkg/migrate"
	"github.com/dmoreira/storefront-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	productRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())

	pricingEngine := pricing.NewEngine(cfg.Store)

	shippingClient, err := shipping.NewClient(cfg.Shipping)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping client", err)
		os.Exit(1)
	}

	shippingService, err := shipping.NewService(shipping.NewSessionCache(redisClient, cfg.Store.CheckoutSessionTTL), shippingClient, cfg.Store)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo, shippingService, cfg.Store.BaseCurrency)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orderRepo, dbClient, inventory.NewLedger())
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(cartService, shippingService, productRepo, orderRepo, pricingEngine, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentClient, err := payments.NewClient(cfg.Payment)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment client", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(
		paymentRepo,
		orderService,
		cartRepo,
		paymentClient,
		redisClient,
		shippingService,
		dbClient,
		cfg.Payment.Provider,
		cfg.Store.CheckoutSessionTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			httpMetrics,
			productRepo,
			cartService,
			shippingService,
			checkoutService,
			orderService,
			paymentService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
