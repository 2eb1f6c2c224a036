package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/farmstore/internal/domain"
	"github.com/joao-fontenele/farmstore/internal/messaging"
	"github.com/joao-fontenele/farmstore/internal/telemetry"
	"github.com/joao-fontenele/farmstore/internal/worker"
)

const groupID = "farmstore-notifier"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if os.Getenv("TRACING_ENABLED") == "true" {
		shutdown, err := telemetry.InitTracerProvider(ctx, "farmstore-notifier", "1.0.0", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if err != nil {
			logger.Error("failed to init tracer", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	brokers := strings.Split(kafkaBrokers, ",")
	orderConsumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, groupID, messaging.WithLogger(logger))
	defer func() { _ = orderConsumer.Close() }()
	contactConsumer := messaging.NewConsumer(brokers, domain.TopicContactReceived, groupID, messaging.WithLogger(logger))
	defer func() { _ = contactConsumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: telemetry.NewTransport(nil),
	}

	handler := worker.NewNotificationHandler(emailServiceURL, os.Getenv("CONTACT_TO"), httpClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", brokers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orderConsumer.Consume(gctx, handler.HandleOrderPlaced) })
	g.Go(func() error { return contactConsumer.Consume(gctx, handler.HandleContactReceived) })

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumers stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
