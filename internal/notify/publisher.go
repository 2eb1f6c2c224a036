// Package notify emits best-effort events about orders and contact messages.
// Delivery happens in the background and never reports back to the caller.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

const publishTimeout = 5 * time.Second

// Sink delivers one event. *messaging.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Publisher struct {
	sink   Sink
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{
		sink:   sink,
		logger: logger,
	}
}

func (p *Publisher) OrderPlaced(ctx context.Context, order domain.Order) {
	event := domain.OrderPlacedEvent{
		OrderID:           order.ID,
		Status:            order.Status,
		Source:            order.Source,
		Total:             order.Total,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		FulfillmentMethod: order.FulfillmentMethod,
		Items:             order.Items,
		Timestamp:         order.CreatedAt,
	}
	p.publish(ctx, domain.TopicOrderPlaced, strconv.FormatInt(order.ID, 10), event)
}

func (p *Publisher) ContactReceived(ctx context.Context, msg domain.ContactMessage) {
	event := domain.ContactReceivedEvent{
		MessageID: msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Phone:     msg.Phone,
		Message:   msg.Message,
		Timestamp: msg.CreatedAt,
	}
	p.publish(ctx, domain.TopicContactReceived, strconv.FormatInt(msg.ID, 10), event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event any) {
	// Keep the trace, drop the request's cancellation.
	ctx = context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := p.sink.Publish(ctx, topic, key, event); err != nil {
			p.logger.Error("failed to publish notification", "error", err, "topic", topic, "key", key)
		}
	}()
}

// Wait blocks until every in-flight notification has finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

// LogSink records events in the log when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, topic, key string, event any) error {
	s.logger.Info("notification", "topic", topic, "key", key, "event", event)
	return nil
}
