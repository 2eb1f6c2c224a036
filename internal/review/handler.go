// Package review takes public storefront reviews and lists them newest first.
package review

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

const (
	rateLimitWindow = 10 * time.Minute
	rateLimitMax    = 5

	anonymousName = "Anonymous"
)

type Store interface {
	CountRecent(ctx context.Context, since time.Time, ip string) (int, error)
	Create(ctx context.Context, rv *domain.Review) error
	List(ctx context.Context) ([]domain.Review, error)
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
	Location string `json:"location"`
	Rating   *int   `json:"rating"`
	Message  string `json:"message"`
	PhotoURL string `json:"photo_url"`
}

// normalize trims fields and checks their shapes. A blank message is
// reported separately after the rate limit, with its own status.
func (req *createRequest) normalize() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	req.Message = strings.TrimSpace(req.Message)
	req.PhotoURL = strings.TrimSpace(req.PhotoURL)

	switch {
	case req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5):
		return "rating must be between 1 and 5"
	case utf8.RuneCountInString(req.Name) > 100:
		return "name must be at most 100 characters"
	case utf8.RuneCountInString(req.Location) > 100:
		return "location must be at most 100 characters"
	case utf8.RuneCountInString(req.Message) > 2000:
		return "message must be at most 2000 characters"
	case len(req.PhotoURL) > 500:
		return "photo_url must be at most 500 characters"
	}

	if req.PhotoURL != "" {
		u, err := url.Parse(req.PhotoURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "photo_url must be an http(s) URL"
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
	recent, err := h.store.CountRecent(r.Context(), h.now().Add(-rateLimitWindow), ip)
	if err != nil {
		h.logger.Error("failed to check review rate limit", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recent >= rateLimitMax {
		h.logger.Warn("review rate limited", "ip", ip)
		h.writeError(w, http.StatusTooManyRequests, "Too many reviews submitted recently. Please try again later.")
		return
	}

	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "Review message cannot be empty.")
		return
	}

	rv := domain.Review{
		Name:     req.Name,
		Location: req.Location,
		Rating:   req.Rating,
		Message:  req.Message,
		PhotoURL: req.PhotoURL,
		IP:       ip,
	}
	if err := h.store.Create(r.Context(), &rv); err != nil {
		h.logger.Error("failed to store review", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("review received", "review_id", rv.ID)
	h.writeJSON(w, http.StatusCreated, present(rv))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list reviews", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	for i := range reviews {
		reviews[i] = present(reviews[i])
	}
	h.writeJSON(w, http.StatusOK, reviews)
}

func present(rv domain.Review) domain.Review {
	if rv.Name == "" {
		rv.Name = anonymousName
	}
	return rv
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
