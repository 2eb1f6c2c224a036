package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

// NotificationHandler turns store events into mail for the email relay.
type NotificationHandler struct {
	emailServiceURL string
	staffAddress    string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, staffAddress string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		staffAddress:    staffAddress,
		httpClient:      client,
		logger:          logger,
	}
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Redelivery cannot fix a malformed payload.
		h.logger.Error("dropping unreadable order event", "error", err)
		return nil
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "source", event.Source)

	if event.CustomerEmail != "" {
		if err := h.sendEmail(ctx, emailRequest{
			To:      event.CustomerEmail,
			Subject: fmt.Sprintf("Order #%d received", event.OrderID),
			Body:    orderSummary(event),
		}); err != nil {
			return fmt.Errorf("send order confirmation: %w", err)
		}
	}

	if h.staffAddress != "" {
		if err := h.sendEmail(ctx, emailRequest{
			To:      h.staffAddress,
			Subject: fmt.Sprintf("New %s order #%d (%s)", event.Source, event.OrderID, event.FulfillmentMethod),
			Body:    orderSummary(event),
		}); err != nil {
			return fmt.Errorf("send staff order notice: %w", err)
		}
	}

	h.logger.Info("order notifications sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandleContactReceived(ctx context.Context, payload []byte) error {
	var event domain.ContactReceivedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping unreadable contact event", "error", err)
		return nil
	}

	if h.staffAddress == "" {
		h.logger.Warn("no staff address configured, contact message not relayed", "message_id", event.MessageID)
		return nil
	}

	name := event.Name
	if name == "" {
		name = "Website"
	}

	err := h.sendEmail(ctx, emailRequest{
		To:      h.staffAddress,
		Subject: "New Contact Message from " + name,
		Body:    fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n\n%s", event.Name, event.Email, event.Phone, event.Message),
	})
	if err != nil {
		return fmt.Errorf("relay contact message: %w", err)
	}

	h.logger.Info("contact message relayed", "message_id", event.MessageID)
	return nil
}

func orderSummary(event domain.OrderPlacedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d (%s, %s)\n\n", event.OrderID, event.Status, event.FulfillmentMethod)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%s %s x %s @ %s = %s\n",
			item.Quantity.String(), item.Unit, item.Name, item.PriceEach.StringFixed(2), item.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.Total.StringFixed(2))
	return b.String()
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body emailRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
