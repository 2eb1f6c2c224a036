package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

type published struct {
	topic string
	key   string
	event any
}

type recordingSink struct {
	mu    sync.Mutex
	got   []published
	err   error
	block chan struct{}
}

func (s *recordingSink) Publish(ctx context.Context, topic, key string, event any) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, published{topic: topic, key: key, event: event})
	return s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_OrderPlaced(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(sink, discard())

	order := domain.Order{
		ID:                42,
		Total:             decimal.RequireFromString("9.00"),
		Status:            domain.OrderStatusPending,
		Source:            domain.SourceWeb,
		FulfillmentMethod: domain.FulfillmentPickup,
		CreatedAt:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.OrderPlaced(ctx, order)
	cancel()
	p.Wait()

	if len(sink.got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.got))
	}
	got := sink.got[0]
	if got.topic != domain.TopicOrderPlaced || got.key != "42" {
		t.Errorf("unexpected topic/key %s/%s", got.topic, got.key)
	}

	data, err := json.Marshal(got.event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.OrderID != 42 || !event.Total.Equal(order.Total) {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestPublisher_DoesNotBlockCaller(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{}), err: errors.New("broker down")}
	p := NewPublisher(sink, discard())

	done := make(chan struct{})
	go func() {
		p.ContactReceived(context.Background(), domain.ContactMessage{ID: 1, Message: "hi"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ContactReceived blocked on the sink")
	}

	close(sink.block)
	p.Wait()

	if len(sink.got) != 1 || sink.got[0].topic != domain.TopicContactReceived {
		t.Errorf("unexpected events %+v", sink.got)
	}
}
