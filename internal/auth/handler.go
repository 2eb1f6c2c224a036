package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

type Handler struct {
	tokens *Tokens
	users  UserStore
	logger *slog.Logger
}

func NewHandler(tokens *Tokens, users UserStore, logger *slog.Logger) *Handler {
	return &Handler{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			h.logger.Warn("login rejected", "username", req.Username)
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("failed to load user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.tokens.Issue(strconv.FormatInt(user.ID, 10))
	if err != nil {
		h.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	h.writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

// authenticate returns ErrUserNotFound for both unknown users and bad passwords.
func (h *Handler) authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrUserNotFound
	}
	return user, nil
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
