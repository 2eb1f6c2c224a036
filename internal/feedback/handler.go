// Package feedback collects private visitor surveys for staff review.
package feedback

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
	CountRecent(ctx context.Context, since time.Time, ip, email string) (int, error)
	Create(ctx context.Context, fb *domain.Feedback) error
	List(ctx context.Context) ([]domain.Feedback, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

type createRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Rating   int    `json:"rating"`
	Interest string `json:"interest"`
	Comments string `json:"comments"`
}

func (req *createRequest) normalize() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Interest = strings.TrimSpace(req.Interest)
	req.Comments = strings.TrimSpace(req.Comments)

	switch {
	case req.Rating < 1 || req.Rating > 5:
		return "rating must be between 1 and 5"
	case utf8.RuneCountInString(req.Name) > 100:
		return "name must be at most 100 characters"
	case utf8.RuneCountInString(req.Interest) > 100:
		return "interest must be at most 100 characters"
	case utf8.RuneCountInString(req.Comments) > 2000:
		return "comments must be at most 2000 characters"
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
	recent, err := h.store.CountRecent(r.Context(), h.now().Add(-rateLimitWindow), ip, req.Email)
	if err != nil {
		h.logger.Error("failed to check feedback rate limit", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recent >= rateLimitMax {
		h.logger.Warn("feedback rate limited", "ip", ip)
		h.writeError(w, http.StatusTooManyRequests, "Too many submissions, please try later")
		return
	}

	fb := domain.Feedback{
		Name:     req.Name,
		Email:    req.Email,
		Rating:   req.Rating,
		Interest: req.Interest,
		Comments: req.Comments,
		IP:       ip,
	}
	if err := h.store.Create(r.Context(), &fb); err != nil {
		h.logger.Error("failed to store feedback", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("visitor feedback received", "feedback_id", fb.ID, "rating", fb.Rating)
	h.writeJSON(w, http.StatusCreated, fb)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list feedback", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to summarize feedback", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, summarize(entries, h.now()))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid feedback id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrFeedbackNotFound) {
			h.writeError(w, http.StatusNotFound, "Feedback not found")
			return
		}
		h.logger.Error("failed to delete feedback", "error", err, "feedback_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("visitor feedback deleted", "feedback_id", id, "by", principal.Username)
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
