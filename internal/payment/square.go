package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// maxResponseBytes caps how much of a Square response body is read.
const maxResponseBytes = 1 << 20

type SquareConfig struct {
	BaseURL     string
	AccessToken string
	LocationID  string
	Version     string
}

// Square talks to the Square Payments and Terminal APIs.
type Square struct {
	cfg        SquareConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSquare(cfg SquareConfig, client *http.Client, logger *slog.Logger) *Square {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Square{
		cfg:        cfg,
		httpClient: client,
		logger:     logger,
	}
}

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createPaymentRequest struct {
	SourceID       string `json:"source_id"`
	IdempotencyKey string `json:"idempotency_key"`
	AmountMoney    money  `json:"amount_money"`
	LocationID     string `json:"location_id"`
	ReferenceID    string `json:"reference_id,omitempty"`
}

type createPaymentResponse struct {
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

func (s *Square) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	body := createPaymentRequest{
		SourceID:       req.SourceID,
		IdempotencyKey: uuid.NewString(),
		AmountMoney:    money{Amount: req.AmountCents, Currency: Currency},
		LocationID:     s.cfg.LocationID,
		ReferenceID:    req.ReferenceID,
	}

	status, data, err := s.do(ctx, http.MethodPost, "/v2/payments", body)
	if err != nil {
		return Result{}, err
	}

	if status >= http.StatusMultipleChoices {
		s.logger.Warn("square payment declined", "status", status, "amount_cents", req.AmountCents)
		return Result{Accepted: false, Detail: string(data)}, nil
	}

	var resp createPaymentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Result{}, fmt.Errorf("decode square payment response: %w", err)
	}

	s.logger.Info("square payment accepted", "payment_id", resp.Payment.ID, "status", resp.Payment.Status)
	return Result{
		Accepted:  true,
		Detail:    resp.Payment.Status,
		PaymentID: resp.Payment.ID,
	}, nil
}

// do sends a JSON request and returns the raw response. Only transport
// failures are errors; any HTTP status is handed back to the caller.
func (s *Square) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal square request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create square request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	req.Header.Set("Square-Version", s.cfg.Version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read square response: %w", err)
	}

	return resp.StatusCode, data, nil
}
