package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/farmstore/internal/domain"
	"github.com/joao-fontenele/farmstore/internal/payment"
)

// memStore keeps products and orders in memory and mirrors the repository's
// all-or-nothing persistence.
type memStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	nextID   int64
	gets     int
	failNext error
}

func newMemStore(products ...domain.Product) *memStore {
	s := &memStore{
		products: map[int64]domain.Product{},
		orders:   map[int64]domain.Order{},
		nextID:   1,
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) FindByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64]domain.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) Create(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	next := map[int64]domain.Product{}
	for _, item := range order.Items {
		p, ok := next[item.ProductID]
		if !ok {
			p = s.products[item.ProductID]
		}
		if p.Stock.LessThan(item.Quantity) {
			return fmt.Errorf("%w for product %d", domain.ErrInsufficientStock, item.ProductID)
		}
		p.Stock = p.Stock.Sub(item.Quantity)
		next[item.ProductID] = p
	}
	for id, p := range next {
		s.products[id] = p
	}

	order.ID = s.nextID
	order.CreatedAt = time.Now().UTC()
	s.nextID++
	s.orders[order.ID] = *order
	return nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return &o, nil
}

func (s *memStore) List(context.Context, ListFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Order{}
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	o.Status = status
	s.orders[id] = o
	return &o, nil
}

func (s *memStore) stock(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type fakeGateway struct {
	result payment.Result
	err    error
	calls  []payment.ChargeRequest
}

func (g *fakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (payment.Result, error) {
	g.calls = append(g.calls, req)
	return g.result, g.err
}

type recordingNotifier struct {
	orders []domain.Order
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, order domain.Order) {
	n.orders = append(n.orders, order)
}

type memCache struct {
	mu      sync.Mutex
	entries map[int64]domain.Order
}

func (c *memCache) Get(_ context.Context, id int64) (*domain.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return &o, true
}

func (c *memCache) Set(_ context.Context, order *domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[order.ID] = *order
}

func (c *memCache) Invalidate(_ context.Context, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

const (
	eggsID = int64(3)
	lambID = int64(2)
)

func seedProducts() []domain.Product {
	return []domain.Product{
		{ID: lambID, Name: "Lamb", Price: decimal.RequireFromString("9.99"), Stock: decimal.NewFromInt(100), Unit: "lb", IsWeightBased: true},
		{ID: eggsID, Name: "Eggs", Price: decimal.RequireFromString("4.50"), Stock: decimal.NewFromInt(30), Unit: "dozen"},
	}
}

type fixture struct {
	store    *memStore
	gateway  *fakeGateway
	notifier *recordingNotifier
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(seedProducts()...),
		gateway:  &fakeGateway{result: payment.Result{Accepted: true, PaymentID: "pay-1"}},
		notifier: &recordingNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(f.store, f.store, f.gateway, &memCache{entries: map[int64]domain.Order{}}, f.notifier, logger)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	f.service = svc
	return f
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestService_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("web order without payment", func(t *testing.T) {
		f := newFixture(t)

		order, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:  []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
			Source: "web",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !order.Total.Equal(qty("9.00")) {
			t.Errorf("expected total 9.00, got %s", order.Total)
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("expected status pending, got %s", order.Status)
		}
		if order.FulfillmentMethod != domain.FulfillmentPickup {
			t.Errorf("expected default pickup, got %s", order.FulfillmentMethod)
		}
		if got := f.store.stock(eggsID); !got.Equal(qty("28")) {
			t.Errorf("expected eggs stock 28, got %s", got)
		}
		if len(order.Items) != 1 || order.Items[0].Name != "Eggs" || !order.Items[0].Subtotal.Equal(qty("9")) {
			t.Errorf("unexpected items %+v", order.Items)
		}
		if len(f.gateway.calls) != 0 {
			t.Error("gateway must not be called without a payment token")
		}
		if len(f.notifier.orders) != 1 || f.notifier.orders[0].ID != order.ID {
			t.Errorf("expected one notification for order %d", order.ID)
		}
	})

	t.Run("pos source starts processing", func(t *testing.T) {
		f := newFixture(t)

		order, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:  []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
			Source: " POS ",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Source != "pos" {
			t.Errorf("expected source pos, got %s", order.Source)
		}
		if order.Status != domain.OrderStatusProcessing {
			t.Errorf("expected status processing, got %s", order.Status)
		}
	})

	t.Run("total rounds once at the end", func(t *testing.T) {
		f := newFixture(t)

		order, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items: []CartLine{
				{ProductID: lambID, Quantity: qty("1.335")},
				{ProductID: lambID, Quantity: qty("1.335")},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// 9.99 * 2.67 = 26.6733; rounding each line first would give 13.34 + 13.34.
		if !order.Total.Equal(qty("26.67")) {
			t.Errorf("expected total 26.67, got %s", order.Total)
		}
		if got := f.store.stock(lambID); !got.Equal(qty("97.33")) {
			t.Errorf("expected lamb stock 97.33, got %s", got)
		}
	})

	t.Run("trailing zeros past thousandths are accepted", func(t *testing.T) {
		f := newFixture(t)

		order, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items: []CartLine{{ProductID: lambID, Quantity: qty("2.5000")}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !order.Total.Equal(qty("24.98")) {
			t.Errorf("expected total 24.98, got %s", order.Total)
		}
	})

	t.Run("accepted payment marks order paid", func(t *testing.T) {
		f := newFixture(t)

		order, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:        []CartLine{{ProductID: eggsID, Quantity: qty("2")}, {ProductID: lambID, Quantity: qty("0.5")}},
			PaymentToken: "cnon:ok",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusPaid {
			t.Errorf("expected status paid, got %s", order.Status)
		}
		if order.PaymentReference != "pay-1" {
			t.Errorf("expected payment reference pay-1, got %s", order.PaymentReference)
		}
		if len(f.gateway.calls) != 1 {
			t.Fatalf("expected one charge, got %d", len(f.gateway.calls))
		}
		// 9.00 + 4.995 = 13.995 -> 1400 cents
		if f.gateway.calls[0].AmountCents != 1400 {
			t.Errorf("expected 1400 cents, got %d", f.gateway.calls[0].AmountCents)
		}
		if f.gateway.calls[0].SourceID != "cnon:ok" {
			t.Errorf("unexpected source id %s", f.gateway.calls[0].SourceID)
		}
	})

	t.Run("simulated payment keeps status", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.result = payment.Result{Accepted: true, PaymentID: "sim-1", Simulated: true}

		order, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:        []CartLine{{ProductID: eggsID, Quantity: qty("1")}},
			PaymentToken: "tok",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusPending {
			t.Errorf("expected status pending, got %s", order.Status)
		}
	})

	t.Run("declined payment persists nothing", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.result = payment.Result{Accepted: false, Detail: `{"errors":["declined"]}`}

		_, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:        []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
			PaymentToken: "tok",
		})
		if !errors.Is(err, domain.ErrPaymentFailed) {
			t.Fatalf("expected ErrPaymentFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "declined") {
			t.Errorf("expected gateway detail in error, got %v", err)
		}
		if got := f.store.stock(eggsID); !got.Equal(qty("30")) {
			t.Errorf("expected eggs stock unchanged at 30, got %s", got)
		}
		if f.store.orderCount() != 0 {
			t.Error("expected no order to be persisted")
		}
		if len(f.notifier.orders) != 0 {
			t.Error("expected no notification")
		}
	})

	t.Run("gateway timeout persists nothing", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.err = errors.New("Client.Timeout exceeded while awaiting headers")

		_, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:        []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
			PaymentToken: "tok",
		})
		if !errors.Is(err, domain.ErrPaymentError) {
			t.Fatalf("expected ErrPaymentError, got %v", err)
		}
		if !strings.Contains(err.Error(), "Timeout") {
			t.Errorf("expected timeout message in error, got %v", err)
		}
		if got := f.store.stock(eggsID); !got.Equal(qty("30")) {
			t.Errorf("expected eggs stock unchanged at 30, got %s", got)
		}
		if f.store.orderCount() != 0 {
			t.Error("expected no order to be persisted")
		}
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name    string
			req     PlaceOrderRequest
			wantErr error
			wantMsg string
		}{
			{
				name:    "empty cart",
				req:     PlaceOrderRequest{},
				wantErr: domain.ErrInvalidRequest,
			},
			{
				name:    "zero quantity",
				req:     PlaceOrderRequest{Items: []CartLine{{ProductID: eggsID, Quantity: decimal.Zero}}},
				wantErr: domain.ErrInvalidRequest,
			},
			{
				name: "quantity below storable precision",
				req: PlaceOrderRequest{
					Items:        []CartLine{{ProductID: lambID, Quantity: qty("0.0001")}},
					PaymentToken: "cnon:card-nonce-ok",
				},
				wantErr: domain.ErrInvalidRequest,
				wantMsg: "decimal places",
			},
			{
				name: "quantity with a fourth decimal",
				req: PlaceOrderRequest{
					Items:        []CartLine{{ProductID: lambID, Quantity: qty("2.0004")}},
					PaymentToken: "cnon:card-nonce-ok",
				},
				wantErr: domain.ErrInvalidRequest,
			},
			{
				name: "bad fulfillment method",
				req: PlaceOrderRequest{
					Items:             []CartLine{{ProductID: eggsID, Quantity: qty("1")}},
					FulfillmentMethod: "drone",
				},
				wantErr: domain.ErrInvalidRequest,
			},
			{
				name: "bad email",
				req: PlaceOrderRequest{
					Items:         []CartLine{{ProductID: eggsID, Quantity: qty("1")}},
					CustomerEmail: "not-an-email",
				},
				wantErr: domain.ErrInvalidRequest,
			},
			{
				name: "unknown product",
				req: PlaceOrderRequest{Items: []CartLine{
					{ProductID: eggsID, Quantity: qty("1")},
					{ProductID: 999, Quantity: qty("1")},
				}},
				wantErr: domain.ErrProductNotFound,
				wantMsg: "999",
			},
			{
				name: "more than in stock",
				req: PlaceOrderRequest{Items: []CartLine{
					{ProductID: lambID, Quantity: qty("1")},
					{ProductID: eggsID, Quantity: qty("31")},
				}},
				wantErr: domain.ErrInsufficientStock,
				wantMsg: "product 3",
			},
			{
				name: "repeated lines add up",
				req: PlaceOrderRequest{Items: []CartLine{
					{ProductID: eggsID, Quantity: qty("20")},
					{ProductID: eggsID, Quantity: qty("11")},
				}},
				wantErr: domain.ErrInsufficientStock,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)

				_, err := f.service.PlaceOrder(ctx, tt.req)
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("expected %q in error, got %v", tt.wantMsg, err)
				}
				if f.store.orderCount() != 0 {
					t.Error("expected no order to be persisted")
				}
				if !f.store.stock(eggsID).Equal(qty("30")) || !f.store.stock(lambID).Equal(qty("100")) {
					t.Error("expected stock to be untouched")
				}
				if len(f.gateway.calls) != 0 {
					t.Error("gateway must not be called for rejected carts")
				}
			})
		}
	})

	t.Run("stock race lost at commit", func(t *testing.T) {
		f := newFixture(t)
		f.store.failNext = fmt.Errorf("%w for product %d", domain.ErrInsufficientStock, eggsID)

		_, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items:        []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
			PaymentToken: "tok",
		})
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
	})

	t.Run("storage failure is not a client error", func(t *testing.T) {
		f := newFixture(t)
		f.store.failNext = errors.New("connection reset")

		_, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
			Items: []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if ErrorStatus(err) != http.StatusInternalServerError {
			t.Errorf("expected a 500 mapping, got %d", ErrorStatus(err))
		}
	})

	t.Run("cancelled client does not abort persistence", func(t *testing.T) {
		f := newFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		order, err := f.service.PlaceOrder(cctx, PlaceOrderRequest{
			Items: []CartLine{{ProductID: eggsID, Quantity: qty("1")}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID == 0 {
			t.Error("expected order to be persisted")
		}
	})
}

func TestService_GetOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	placed, err := f.service.PlaceOrder(ctx, PlaceOrderRequest{
		Items: []CartLine{{ProductID: eggsID, Quantity: qty("2")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := f.service.GetOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.service.GetOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != second.ID || !first.Total.Equal(second.Total) || first.Status != second.Status {
		t.Errorf("expected identical reads, got %+v and %+v", first, second)
	}
	if f.store.gets != 1 {
		t.Errorf("expected the second read to be served from cache, store hit %d times", f.store.gets)
	}

	updated, err := f.service.UpdateStatus(ctx, placed.ID, "completed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}

	third, err := f.service.GetOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Status != domain.OrderStatusCompleted {
		t.Errorf("expected cache to be invalidated, got status %s", third.Status)
	}

	if _, err := f.service.GetOrder(ctx, 404); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	if _, err := f.service.UpdateStatus(ctx, placed.ID, "  "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for blank status, got %v", err)
	}
}
