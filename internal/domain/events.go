package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderPlaced     = "order.placed"
	TopicContactReceived = "contact.received"
)

type OrderPlacedEvent struct {
	OrderID           int64             `json:"order_id"`
	Status            OrderStatus       `json:"status"`
	Source            string            `json:"source"`
	Total             decimal.Decimal   `json:"total_amount"`
	CustomerName      string            `json:"customer_name,omitempty"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	FulfillmentMethod FulfillmentMethod `json:"fulfillment_method"`
	Items             []OrderItem       `json:"items"`
	Timestamp         time.Time         `json:"timestamp"`
}

type ContactReceivedEvent struct {
	MessageID int64     `json:"message_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
