package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/farmstore/internal/auth"
	"github.com/joao-fontenele/farmstore/internal/catalog"
	"github.com/joao-fontenele/farmstore/internal/config"
	"github.com/joao-fontenele/farmstore/internal/contact"
	"github.com/joao-fontenele/farmstore/internal/feedback"
	"github.com/joao-fontenele/farmstore/internal/messaging"
	"github.com/joao-fontenele/farmstore/internal/notify"
	"github.com/joao-fontenele/farmstore/internal/orders"
	"github.com/joao-fontenele/farmstore/internal/payment"
	"github.com/joao-fontenele/farmstore/internal/pos"
	"github.com/joao-fontenele/farmstore/internal/review"
	"github.com/joao-fontenele/farmstore/internal/telemetry"
)

const (
	serviceName    = "farmstore"
	serviceVersion = "1.0.0"
)

// paymentProvider is satisfied by both the Square client and the simulator.
type paymentProvider interface {
	payment.Gateway
	payment.Terminal
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if cfg.UsesDefaultSecret() {
		logger.Warn("SECRET_KEY is not set, tokens are signed with the default key and can be forged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("failed to init tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to init meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	users := auth.NewUserRepository(db)
	if cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Error("failed to seed admin user", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("admin user created", "username", cfg.AdminUsername)
		}
	}

	var cache orders.Cache = orders.NopCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, order cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = orders.NewRedisCache(rdb, cfg.OrderCacheTTL, logger)
		}
	}

	var sink notify.Sink = notify.NewLogSink(logger)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers)
		defer func() { _ = producer.Close() }()
		sink = producer
	}
	publisher := notify.NewPublisher(sink, logger)

	var provider paymentProvider
	if cfg.SquareConfigured() {
		client := &http.Client{
			Timeout:   cfg.PaymentTimeout,
			Transport: telemetry.NewTransport(nil),
		}
		provider = payment.NewSquare(payment.SquareConfig{
			BaseURL:     cfg.SquareBaseURL(),
			AccessToken: cfg.SquareAccessToken,
			LocationID:  cfg.SquareLocationID,
			Version:     cfg.SquareVersion,
		}, client, logger)
		logger.Info("square payments enabled", "env", cfg.SquareEnv)
	} else {
		provider = payment.NewSimulated(logger)
		logger.Warn("square credentials missing, payments are simulated")
	}

	products := catalog.NewProductRepository(db)
	orderService, err := orders.NewService(products, orders.NewOrderRepository(db), provider, cache, publisher, logger)
	if err != nil {
		logger.Error("failed to build order service", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokens(cfg.SecretKey, cfg.TokenTTL)
	authn := auth.NewAuthenticator(tokens, users, logger)

	authHandler := auth.NewHandler(tokens, users, logger)
	catalogHandler := catalog.NewHandler(products, cfg.LowStock(), logger)
	orderHandler := orders.NewHandler(orderService, logger)
	posHandler := pos.NewHandler(orderService, provider, logger)
	contactHandler := contact.NewHandler(contact.NewMessageRepository(db), publisher, logger)
	reviewHandler := review.NewHandler(review.NewReviewRepository(db), logger)
	feedbackHandler := feedback.NewHandler(feedback.NewFeedbackRepository(db), logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /health", healthHandler(db, logger))

	route("POST /auth/login", authHandler.HandleLogin)

	route("GET /products", catalogHandler.HandleList)
	route("GET /products/{id}", catalogHandler.HandleGet)
	route("POST /products", authn.Require(catalogHandler.HandleCreate))
	route("PUT /products/{id}", authn.Require(catalogHandler.HandleUpdate))
	route("DELETE /products/{id}", authn.Require(catalogHandler.HandleDelete))

	route("POST /orders", orderHandler.HandleCreate)
	route("GET /orders", authn.Require(orderHandler.HandleList))
	route("GET /orders/{id}", authn.Require(orderHandler.HandleGet))
	route("PUT /orders/{id}", authn.Require(orderHandler.HandleUpdateStatus))

	route("POST /pos/checkout", authn.Require(posHandler.HandleCheckout))
	route("POST /pos/terminal/checkout", authn.Require(posHandler.HandleCreateTerminalCheckout))
	route("GET /pos/terminal/checkout/{id}", authn.Require(posHandler.HandleGetTerminalCheckout))

	route("POST /contact", contactHandler.HandleCreate)
	route("GET /admin/messages", authn.Require(contactHandler.HandleList))
	route("DELETE /admin/messages/{id}", authn.Require(contactHandler.HandleDelete))

	route("POST /reviews", reviewHandler.HandleCreate)
	route("GET /reviews", reviewHandler.HandleList)

	route("POST /feedback", feedbackHandler.HandleCreate)
	route("GET /admin/feedback", authn.Require(feedbackHandler.HandleList))
	route("GET /admin/feedback/summary", authn.Require(feedbackHandler.HandleSummary))
	route("DELETE /admin/feedback/{id}", authn.Require(feedbackHandler.HandleDelete))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewHandler(mux, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting farmstore", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	publisher.Wait()
}

func healthHandler(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
