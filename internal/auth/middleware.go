package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

const CookieName = "farmstore_token"

// Principal is the authenticated caller handed to protected handlers.
type Principal struct {
	UserID   int64
	Username string
	Admin    bool
}

// AuthedHandlerFunc is an http.HandlerFunc that also receives the caller.
type AuthedHandlerFunc func(w http.ResponseWriter, r *http.Request, p Principal)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type Authenticator struct {
	tokens *Tokens
	users  UserStore
	logger *slog.Logger
}

func NewAuthenticator(tokens *Tokens, users UserStore, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Require rejects requests without a valid token with 401 and otherwise
// calls h with the resolved principal.
func (a *Authenticator) Require(h AuthedHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		p, err := a.resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrUserNotFound) {
				a.logger.Error("failed to resolve principal", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			writeUnauthorized(w, "Invalid token")
			return
		}

		h(w, r, p)
	}
}

// resolve looks the subject up as a user id first, then as a username.
func (a *Authenticator) resolve(ctx context.Context, token string) (Principal, error) {
	subject, err := a.tokens.Subject(token)
	if err != nil {
		return Principal{}, err
	}

	var user *User
	if id, convErr := strconv.ParseInt(subject, 10, 64); convErr == nil {
		user, err = a.users.GetByID(ctx, id)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return Principal{}, err
		}
	}

	if user == nil {
		user, err = a.users.GetByUsername(ctx, subject)
		if err != nil {
			return Principal{}, err
		}
	}

	return Principal{UserID: user.ID, Username: user.Username, Admin: user.IsAdmin}, nil
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
