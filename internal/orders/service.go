package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/farmstore/internal/domain"
	"github.com/joao-fontenele/farmstore/internal/payment"
)

var tracer = otel.Tracer("orders")

const persistTimeout = 10 * time.Second

// quantityScale matches the NUMERIC(12,3) stock and order_items.quantity columns.
const quantityScale = 3

type ProductFinder interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
}

type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error)
}

// Notifier is told about placed orders. Implementations must not block.
type Notifier interface {
	OrderPlaced(ctx context.Context, order domain.Order)
}

type CartLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type PlaceOrderRequest struct {
	Items             []CartLine `json:"items"`
	Source            string     `json:"source"`
	FulfillmentMethod string     `json:"fulfillment_method"`
	CustomerName      string     `json:"customer_name"`
	CustomerEmail     string     `json:"customer_email"`
	PaymentToken      string     `json:"payment_token"`
}

type Service struct {
	products ProductFinder
	store    Store
	gateway  payment.Gateway
	cache    Cache
	notifier Notifier
	logger   *slog.Logger

	reads    singleflight.Group
	placed   metric.Int64Counter
	payments metric.Int64Counter
}

func NewService(products ProductFinder, store Store, gateway payment.Gateway, cache Cache, notifier Notifier, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("orders")

	placed, err := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders committed, by source and status"))
	if err != nil {
		return nil, fmt.Errorf("create orders counter: %w", err)
	}

	payments, err := meter.Int64Counter("payment_outcomes_total",
		metric.WithDescription("Payment gateway outcomes during checkout"))
	if err != nil {
		return nil, fmt.Errorf("create payments counter: %w", err)
	}

	if cache == nil {
		cache = NopCache{}
	}

	return &Service{
		products: products,
		store:    store,
		gateway:  gateway,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		placed:   placed,
		payments: payments,
	}, nil
}

// PlaceOrder validates the cart against current stock, charges the payment
// token if one was given, and persists the order. Nothing is written unless
// every step before persistence succeeded.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()

	order, err := s.placeOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
	)
	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", order.Source),
		attribute.String("status", string(order.Status)),
	))

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, *order)
	}

	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", domain.ErrInvalidRequest)
	}

	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = domain.SourceWeb
	}

	method := domain.FulfillmentMethod(strings.ToLower(strings.TrimSpace(req.FulfillmentMethod)))
	if method == "" {
		method = domain.FulfillmentPickup
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: fulfillment_method must be pickup or delivery", domain.ErrInvalidRequest)
	}

	email := strings.TrimSpace(req.CustomerEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: invalid customer_email", domain.ErrInvalidRequest)
		}
	}

	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: quantity must be greater than 0 for product %d", domain.ErrInvalidRequest, line.ProductID)
		}
		if !line.Quantity.Equal(line.Quantity.Truncate(quantityScale)) {
			return nil, fmt.Errorf("%w: quantity for product %d has more than %d decimal places", domain.ErrInvalidRequest, line.ProductID, quantityScale)
		}
		ids = append(ids, line.ProductID)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	items, total, err := priceCart(req.Items, products)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		Items:             items,
		Status:            domain.OrderStatusPending,
		Source:            source,
		CustomerName:      strings.TrimSpace(req.CustomerName),
		CustomerEmail:     email,
		FulfillmentMethod: method,
	}
	if source == domain.SourcePOS {
		order.Status = domain.OrderStatusProcessing
	}

	if req.PaymentToken != "" {
		if err := s.charge(ctx, order, total, req.PaymentToken); err != nil {
			return nil, err
		}
	}

	order.Total = total.Round(2)

	// Persistence is detached from request cancellation once payment may be captured.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.Create(storeCtx, order); err != nil {
		if order.PaymentReference != "" {
			s.logger.Error("payment captured but order not persisted",
				"error", err, "payment_id", order.PaymentReference, "total", order.Total.String())
		}
		if errors.Is(err, domain.ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.logger.Info("order placed",
		"order_id", order.ID, "source", order.Source, "status", order.Status, "total", order.Total.String())
	return order, nil
}

// priceCart snapshots each line against the products read once up front.
// Quantities of repeated products add up before being compared with stock.
// The total is exact; rounding is left to the caller.
func priceCart(lines []CartLine, products map[int64]domain.Product) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	requested := make(map[int64]decimal.Decimal, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %d", domain.ErrProductNotFound, line.ProductID)
		}

		requested[p.ID] = requested[p.ID].Add(line.Quantity)
		if requested[p.ID].GreaterThan(p.Stock) {
			return nil, decimal.Zero, fmt.Errorf("%w for product %d", domain.ErrInsufficientStock, p.ID)
		}

		subtotal := p.Price.Mul(line.Quantity)
		total = total.Add(subtotal)
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      p.Unit,
			Quantity:  line.Quantity,
			PriceEach: p.Price,
			Subtotal:  subtotal,
		})
	}

	return items, total, nil
}

func (s *Service) charge(ctx context.Context, order *domain.Order, total decimal.Decimal, token string) error {
	amount := total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	res, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		AmountCents: amount,
		SourceID:    token,
		ReferenceID: order.Source,
	})
	if err != nil {
		s.recordPayment(ctx, "error")
		s.logger.Error("payment gateway error", "error", err, "amount_cents", amount)
		return fmt.Errorf("%w: %v", domain.ErrPaymentError, err)
	}

	if !res.Accepted {
		s.recordPayment(ctx, "declined")
		s.logger.Warn("payment declined", "amount_cents", amount, "detail", res.Detail)
		return fmt.Errorf("%w: %s", domain.ErrPaymentFailed, res.Detail)
	}

	order.PaymentReference = res.PaymentID
	if res.Simulated {
		s.recordPayment(ctx, "simulated")
		return nil
	}

	s.recordPayment(ctx, "accepted")
	order.Status = domain.OrderStatusPaid
	return nil
}

func (s *Service) recordPayment(ctx context.Context, outcome string) {
	s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// GetOrder serves from the cache when possible; concurrent misses for the
// same id share a single database read.
func (s *Service) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if order, ok := s.cache.Get(ctx, id); ok {
		return order, nil
	}

	v, err, _ := s.reads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		if order, ok := s.cache.Get(ctx, id); ok {
			return order, nil
		}
		order, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, order)
		return order, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	return s.store.List(ctx, filter)
}

// UpdateStatus accepts any non-empty status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	status = domain.OrderStatus(strings.TrimSpace(string(status)))
	if status == "" {
		return nil, fmt.Errorf("%w: status is required", domain.ErrInvalidRequest)
	}

	order, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info("order status updated", "order_id", id, "status", status)
	return order, nil
}
