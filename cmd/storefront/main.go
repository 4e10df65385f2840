package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-orderflow/internal/account"
	"github.com/joao-fontenele/storefront-orderflow/internal/cart"
	"github.com/joao-fontenele/storefront-orderflow/internal/catalog"
	"github.com/joao-fontenele/storefront-orderflow/internal/config"
	"github.com/joao-fontenele/storefront-orderflow/internal/identity"
	"github.com/joao-fontenele/storefront-orderflow/internal/messaging"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/orders"
	"github.com/joao-fontenele/storefront-orderflow/internal/shipping"
	"github.com/joao-fontenele/storefront-orderflow/internal/storage"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

const (
	cartTTL    = 30 * 24 * time.Hour
	accountTTL = 5 * time.Minute
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(".env", "8081")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	if err := cfg.Require("POSTGRES_URL", "STORAGE_ACCESS_KEY", "STORAGE_SECRET_KEY"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", "0.1.0", cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var cartPersister cart.Persister = cart.NewMemoryPersister()
	var accountCache account.Cache = account.NopCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		cartPersister = cart.NewRedisPersister(rdb, cartTTL)
		accountCache = account.NewRedisCache(rdb, accountTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, carts are kept in memory and account views are not cached")
	}

	var publisher notify.Publisher = notify.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, notify.Topic)
		defer func() { _ = producer.Close() }()
		publisher = notify.NewKafkaPublisher(producer)
	}

	receipts, err := storage.NewS3Storage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if err := receipts.EnsureBucket(ctx); err != nil {
		logger.Error("failed to ensure storage bucket", "error", err)
		os.Exit(1)
	}

	customers := identity.NewRepository(db)
	items := catalog.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	carts := cart.NewStore(cartPersister, logger)
	accounts := account.NewService(orderRepo, accountCache, logger)

	checkout, err := orders.NewCheckoutService(orderRepo, items, customers, accounts, publisher, logger)
	if err != nil {
		logger.Error("failed to initialize checkout", "error", err)
		os.Exit(1)
	}
	payments, err := orders.NewPaymentService(orderRepo, receipts, accounts, publisher, cfg.Storage.SignedURLTTL, logger)
	if err != nil {
		logger.Error("failed to initialize payments", "error", err)
		os.Exit(1)
	}
	shipments, err := shipping.NewService(orderRepo, shipping.NewRepository(db), accounts, publisher, cfg.PublicBaseURL, logger)
	if err != nil {
		logger.Error("failed to initialize shipping", "error", err)
		os.Exit(1)
	}

	cartHandler := cart.NewHandler(carts, logger)
	catalogHandler := catalog.NewHandler(items, logger)
	orderHandler := orders.NewHandler(checkout, payments, customers, carts, logger)
	trackingHandler := shipping.NewHandler(shipments, logger)
	accountHandler := account.NewHandler(accounts, customers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /cart/{cartID}", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/{cartID}/items", telemetry.WithHTTPRoute(cartHandler.HandleAdd))
	mux.HandleFunc("DELETE /cart/{cartID}/items/{itemID}", telemetry.WithHTTPRoute(cartHandler.HandleRemove))
	mux.HandleFunc("DELETE /cart/{cartID}", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(orderHandler.HandleCheckout))
	mux.HandleFunc("POST /orders/{id}/payment", telemetry.WithHTTPRoute(orderHandler.HandleConfirmPayment))
	mux.HandleFunc("GET /track/{trackingNumber}", telemetry.WithHTTPRoute(trackingHandler.HandleTrack))
	mux.HandleFunc("GET /account", telemetry.WithHTTPRoute(accountHandler.HandleGet))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "storefront",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
