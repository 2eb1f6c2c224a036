// Package pos serves the staff-operated point of sale: counter checkout and
// card terminal checkouts.
package pos

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/farmstore/internal/auth"
	"github.com/joao-fontenele/farmstore/internal/domain"
	"github.com/joao-fontenele/farmstore/internal/orders"
	"github.com/joao-fontenele/farmstore/internal/payment"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error)
}

type Handler struct {
	orders   OrderPlacer
	terminal payment.Terminal
	logger   *slog.Logger
}

func NewHandler(placer OrderPlacer, terminal payment.Terminal, logger *slog.Logger) *Handler {
	return &Handler{
		orders:   placer,
		terminal: terminal,
		logger:   logger,
	}
}

// HandleCheckout places the order as a pos sale. A pending result is moved
// to processing afterwards; that follow-up may fail without undoing the sale.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req orders.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Source = domain.SourcePOS

	order, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		status := orders.ErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("pos checkout failed", "error", err, "by", principal.Username)
			h.writeError(w, status, "internal server error")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	if order.Status == domain.OrderStatusPending {
		updated, err := h.orders.UpdateStatus(context.WithoutCancel(r.Context()), order.ID, domain.OrderStatusProcessing)
		if err != nil {
			h.logger.Error("failed to move pos order to processing", "error", err, "order_id", order.ID)
		} else {
			order = updated
		}
	}

	h.logger.Info("pos checkout complete", "order_id", order.ID, "status", order.Status, "by", principal.Username)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCreateTerminalCheckout(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req payment.TerminalCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AmountCents <= 0 {
		h.writeError(w, http.StatusBadRequest, "amount_cents must be greater than 0")
		return
	}

	checkout, err := h.terminal.CreateCheckout(r.Context(), req)
	if err != nil {
		h.writeTerminalError(w, err)
		return
	}

	h.logger.Info("terminal checkout created",
		"checkout_id", checkout.CheckoutID, "status", checkout.Status, "amount_cents", req.AmountCents, "by", principal.Username)
	h.writeJSON(w, http.StatusOK, checkout)
}

func (h *Handler) HandleGetTerminalCheckout(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing checkout id")
		return
	}

	checkout, err := h.terminal.GetCheckout(r.Context(), id)
	if err != nil {
		h.writeTerminalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, checkout)
}

func (h *Handler) writeTerminalError(w http.ResponseWriter, err error) {
	if errors.Is(err, payment.ErrTerminalRejected) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("terminal unavailable", "error", err)
	h.writeError(w, http.StatusBadGateway, "terminal unavailable")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
