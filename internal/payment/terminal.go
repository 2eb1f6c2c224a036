package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// ErrTerminalRejected means Square answered a terminal call with a non-2xx status.
var ErrTerminalRejected = errors.New("terminal request rejected")

const (
	TerminalStatusPending   = "PENDING"
	TerminalStatusCompleted = "COMPLETED"
)

type TerminalCheckoutRequest struct {
	AmountCents int64  `json:"amount_cents"`
	DeviceID    string `json:"device_id,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
}

type TerminalCheckout struct {
	CheckoutID string `json:"checkout_id"`
	Status     string `json:"status"`
}

// Terminal drives a card reader at the counter.
type Terminal interface {
	CreateCheckout(ctx context.Context, req TerminalCheckoutRequest) (TerminalCheckout, error)
	GetCheckout(ctx context.Context, id string) (TerminalCheckout, error)
}

type terminalCheckoutBody struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Checkout       terminalParams `json:"checkout"`
}

type terminalParams struct {
	AmountMoney   money          `json:"amount_money"`
	ReferenceID   string         `json:"reference_id,omitempty"`
	DeviceOptions *deviceOptions `json:"device_options,omitempty"`
}

type deviceOptions struct {
	DeviceID string `json:"device_id"`
}

type terminalCheckoutResponse struct {
	Checkout struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"checkout"`
}

func (s *Square) CreateCheckout(ctx context.Context, req TerminalCheckoutRequest) (TerminalCheckout, error) {
	body := terminalCheckoutBody{
		IdempotencyKey: uuid.NewString(),
		Checkout: terminalParams{
			AmountMoney: money{Amount: req.AmountCents, Currency: Currency},
			ReferenceID: req.ReferenceID,
		},
	}
	if req.DeviceID != "" {
		body.Checkout.DeviceOptions = &deviceOptions{DeviceID: req.DeviceID}
	}

	status, data, err := s.do(ctx, http.MethodPost, "/v2/terminals/checkouts", body)
	if err != nil {
		return TerminalCheckout{}, err
	}
	if status >= http.StatusMultipleChoices {
		return TerminalCheckout{}, fmt.Errorf("%w: create failed: %s", ErrTerminalRejected, data)
	}

	return decodeTerminalCheckout(data)
}

func (s *Square) GetCheckout(ctx context.Context, id string) (TerminalCheckout, error) {
	status, data, err := s.do(ctx, http.MethodGet, "/v2/terminals/checkouts/"+url.PathEscape(id), nil)
	if err != nil {
		return TerminalCheckout{}, err
	}
	if status >= http.StatusMultipleChoices {
		return TerminalCheckout{}, fmt.Errorf("%w: poll failed: %s", ErrTerminalRejected, data)
	}

	return decodeTerminalCheckout(data)
}

func decodeTerminalCheckout(data []byte) (TerminalCheckout, error) {
	var resp terminalCheckoutResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return TerminalCheckout{}, fmt.Errorf("decode terminal checkout: %w", err)
	}
	return TerminalCheckout{CheckoutID: resp.Checkout.ID, Status: resp.Checkout.Status}, nil
}

// CreateCheckout on the simulated adapter hands back a pending checkout.
func (s *Simulated) CreateCheckout(_ context.Context, req TerminalCheckoutRequest) (TerminalCheckout, error) {
	id := "sim-" + uuid.NewString()
	s.logger.Info("simulated terminal checkout created", "checkout_id", id, "amount_cents", req.AmountCents)
	return TerminalCheckout{CheckoutID: id, Status: TerminalStatusPending}, nil
}

// GetCheckout on the simulated adapter reports every checkout as completed.
func (s *Simulated) GetCheckout(_ context.Context, id string) (TerminalCheckout, error) {
	return TerminalCheckout{CheckoutID: id, Status: TerminalStatusCompleted}, nil
}
