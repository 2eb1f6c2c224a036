package contact

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joao-fontenele/farmstore/internal/auth"
	"github.com/joao-fontenele/farmstore/internal/domain"
)

const (
	rateLimitWindow = 10 * time.Minute
	rateLimitMax    = 3
)

type Store interface {
	CountRecent(ctx context.Context, since time.Time, ip, email, phone string) (int, error)
	Create(ctx context.Context, msg *domain.ContactMessage) error
	List(ctx context.Context) ([]domain.ContactMessage, error)
	Delete(ctx context.Context, id int64) error
}

// Notifier relays new messages to staff. Implementations must not block.
type Notifier interface {
	ContactReceived(ctx context.Context, msg domain.ContactMessage)
}

type Handler struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(store Store, notifier Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

type createRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (req *createRequest) normalize() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	switch {
	case strings.TrimSpace(req.Message) == "":
		return "message is required"
	case utf8.RuneCountInString(req.Message) > 4000:
		return "message must be at most 4000 characters"
	case utf8.RuneCountInString(req.Name) > 100:
		return "name must be at most 100 characters"
	case utf8.RuneCountInString(req.Phone) > 30:
		return "phone must be at most 30 characters"
	}

	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return "email is not valid"
		}
	}
	return ""
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if problem := req.normalize(); problem != "" {
		h.writeError(w, http.StatusUnprocessableEntity, problem)
		return
	}

	ip := clientIP(r)
	recent, err := h.store.CountRecent(r.Context(), h.now().Add(-rateLimitWindow), ip, req.Email, req.Phone)
	if err != nil {
		h.logger.Error("failed to check contact rate limit", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recent >= rateLimitMax {
		h.logger.Warn("contact rate limited", "ip", ip)
		h.writeError(w, http.StatusTooManyRequests, "Too many messages, please try later")
		return
	}

	msg := domain.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
		IP:      ip,
	}
	if err := h.store.Create(r.Context(), &msg); err != nil {
		h.logger.Error("failed to store contact message", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.notifier != nil {
		h.notifier.ContactReceived(r.Context(), msg)
	}

	h.logger.Info("contact message received", "message_id", msg.ID)
	h.writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	msgs, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list contact messages", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			h.writeError(w, http.StatusNotFound, "Message not found")
			return
		}
		h.logger.Error("failed to delete contact message", "error", err, "message_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("contact message deleted", "message_id", id, "by", principal.Username)
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
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
