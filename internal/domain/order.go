package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

const (
	SourceWeb = "web"
	SourcePOS = "pos"
)

type FulfillmentMethod string

const (
	FulfillmentPickup   FulfillmentMethod = "pickup"
	FulfillmentDelivery FulfillmentMethod = "delivery"
)

func (m FulfillmentMethod) Valid() bool {
	return m == FulfillmentPickup || m == FulfillmentDelivery
}

// OrderItem is a snapshot of the product at the time the order was placed.
// Later catalog edits never reach it.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	PriceEach decimal.Decimal `json:"price_each"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID                int64             `json:"id"`
	Items             []OrderItem       `json:"items"`
	Total             decimal.Decimal   `json:"total_amount"`
	Status            OrderStatus       `json:"status"`
	Source            string            `json:"source"`
	CustomerName      string            `json:"customer_name,omitempty"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	FulfillmentMethod FulfillmentMethod `json:"fulfillment_method"`
	PaymentReference  string            `json:"payment_reference,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
