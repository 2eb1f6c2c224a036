package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/farmstore/internal/auth"
	"github.com/joao-fontenele/farmstore/internal/domain"
)

type Store interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	store    Store
	lowStock decimal.Decimal
	logger   *slog.Logger
}

func NewHandler(store Store, lowStock decimal.Decimal, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		lowStock: lowStock,
		logger:   logger,
	}
}

type productView struct {
	domain.Product
	StockStatus        domain.StockStatus `json:"stock_status"`
	StockLabel         string             `json:"stock_label"`
	BackorderAvailable bool               `json:"backorder_available"`
}

func (h *Handler) view(p domain.Product) productView {
	status, label, backorder := domain.StockMeta(p.Stock, h.lowStock)
	return productView{
		Product:            p,
		StockStatus:        status,
		StockLabel:         label,
		BackorderAvailable: backorder,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, h.view(p))
	}

	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	p, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, id)
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(*p))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var in productInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if in.Price == nil {
		h.writeError(w, http.StatusUnprocessableEntity, "price is required")
		return
	}

	var p domain.Product
	in.apply(&p)
	if err := validateProduct(p); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.Create(r.Context(), &p); err != nil {
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product created", "product_id", p.ID, "by", principal.Username)
	h.writeJSON(w, http.StatusCreated, h.view(p))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var in productInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, id)
		return
	}

	in.apply(p)
	if err := validateProduct(*p); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.Update(r.Context(), p); err != nil {
		h.handleStoreError(w, err, id)
		return
	}

	h.logger.Info("product updated", "product_id", id, "by", principal.Username)
	h.writeJSON(w, http.StatusOK, h.view(*p))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, id)
		return
	}

	h.logger.Info("product deleted", "product_id", id, "by", principal.Username)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleStoreError(w http.ResponseWriter, err error, id int64) {
	if errors.Is(err, domain.ErrProductNotFound) {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	h.logger.Error("product store failure", "error", err, "product_id", id)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
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
