package feedback

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/farmstore/internal/auth"
	"github.com/joao-fontenele/farmstore/internal/domain"
)

type memStore struct {
	entries []domain.Feedback
	nextID  int64
}

func (s *memStore) CountRecent(_ context.Context, since time.Time, ip, email string) (int, error) {
	n := 0
	for _, fb := range s.entries {
		if fb.CreatedAt.Before(since) {
			continue
		}
		if fb.IP == ip || (email != "" && fb.Email == email) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Create(_ context.Context, fb *domain.Feedback) error {
	s.nextID++
	fb.ID = s.nextID
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, *fb)
	return nil
}

func (s *memStore) List(context.Context) ([]domain.Feedback, error) {
	out := make([]domain.Feedback, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	for i, fb := range s.entries {
		if fb.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return ErrFeedbackNotFound
}

func newTestHandler(store *memStore) *Handler {
	return NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postFeedback(h *Handler, remoteAddr, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)
	return rec
}

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("stores feedback", func(t *testing.T) {
		store := &memStore{}
		h := newTestHandler(store)

		rec := postFeedback(h, "10.0.0.1:5555", `{"name":"Ada","email":"ada@example.com","rating":5,"interest":" Eggs ","comments":"More duck eggs please."}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(store.entries) != 1 {
			t.Fatalf("expected one entry, got %d", len(store.entries))
		}
		got := store.entries[0]
		if got.Rating != 5 || got.Interest != "Eggs" || got.IP != "10.0.0.1" {
			t.Errorf("unexpected stored feedback %+v", got)
		}
		if strings.Contains(rec.Body.String(), "10.0.0.1") {
			t.Error("ip must not be exposed in the response")
		}
	})

	t.Run("validation", func(t *testing.T) {
		store := &memStore{}
		h := newTestHandler(store)

		tests := []struct {
			name string
			body string
		}{
			{"missing rating", `{"name":"Ada"}`},
			{"rating above range", `{"rating":6}`},
			{"rating below range", `{"rating":0}`},
			{"bad email", `{"rating":4,"email":"nope"}`},
			{"long interest", `{"rating":4,"interest":"` + strings.Repeat("a", 101) + `"}`},
			{"long comments", `{"rating":4,"comments":"` + strings.Repeat("a", 2001) + `"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if rec := postFeedback(h, "10.0.0.1:5555", tt.body); rec.Code != http.StatusUnprocessableEntity {
					t.Errorf("expected 422, got %d", rec.Code)
				}
			})
		}
		if len(store.entries) != 0 {
			t.Errorf("nothing should be stored, got %+v", store.entries)
		}
	})

	t.Run("rate limited by ip", func(t *testing.T) {
		h := newTestHandler(&memStore{})

		for i := 0; i < rateLimitMax; i++ {
			if rec := postFeedback(h, "10.0.0.2:1", `{"rating":4}`); rec.Code != http.StatusCreated {
				t.Fatalf("entry %d: expected 201, got %d", i, rec.Code)
			}
		}

		rec := postFeedback(h, "10.0.0.2:1", `{"rating":4}`)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Too many submissions, please try later") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("rate limited by email across ips", func(t *testing.T) {
		h := newTestHandler(&memStore{})
		body := `{"rating":5,"email":"bob@example.com"}`

		for i, addr := range []string{"1.1.1.1:1", "2.2.2.2:1", "3.3.3.3:1"} {
			if rec := postFeedback(h, addr, body); rec.Code != http.StatusCreated {
				t.Fatalf("entry %d: expected 201, got %d", i, rec.Code)
			}
		}
		if rec := postFeedback(h, "4.4.4.4:1", body); rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", rec.Code)
		}
		if rec := postFeedback(h, "4.4.4.4:1", `{"rating":5}`); rec.Code != http.StatusCreated {
			t.Errorf("anonymous entry from a fresh ip should pass, got %d", rec.Code)
		}
	})

	t.Run("window expires", func(t *testing.T) {
		store := &memStore{}
		h := newTestHandler(store)
		old := time.Now().Add(-11 * time.Minute)
		for i := 0; i < rateLimitMax; i++ {
			store.entries = append(store.entries, domain.Feedback{ID: int64(i + 1), IP: "10.0.0.3", Rating: 3, CreatedAt: old})
		}
		store.nextID = rateLimitMax

		if rec := postFeedback(h, "10.0.0.3:1", `{"rating":3}`); rec.Code != http.StatusCreated {
			t.Errorf("expected 201 once the window has passed, got %d", rec.Code)
		}
	})
}

func TestHandler_Admin(t *testing.T) {
	store := &memStore{}
	h := newTestHandler(store)
	h.now = func() time.Time { return time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC) }
	admin := auth.Principal{UserID: 1, Username: "admin", Admin: true}
	withAdmin := func(fn auth.AuthedHandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) { fn(w, r, admin) }
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/feedback", withAdmin(h.HandleList))
	mux.HandleFunc("GET /admin/feedback/summary", withAdmin(h.HandleSummary))
	mux.HandleFunc("DELETE /admin/feedback/{id}", withAdmin(h.HandleDelete))

	store.entries = []domain.Feedback{
		{ID: 1, Rating: 5, Interest: "Eggs", IP: "10.0.0.1", CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Rating: 4, IP: "10.0.0.2", CreatedAt: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)},
	}
	store.nextID = 2

	t.Run("list newest first", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var entries []domain.Feedback
		if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(entries) != 2 || entries[0].ID != 2 {
			t.Errorf("unexpected entries %+v", entries)
		}
	})

	t.Run("summary", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback/summary", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got struct {
			Total         int             `json:"total_submissions"`
			AverageRating json.RawMessage `json:"average_rating"`
			Breakdown     []struct {
				Interest string `json:"interest"`
				Count    int    `json:"count"`
			} `json:"interest_breakdown"`
			NextReview string `json:"next_quarterly_review"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		var avg float64
		if err := json.Unmarshal(got.AverageRating, &avg); err != nil {
			t.Fatalf("average_rating should be a number, got %s", got.AverageRating)
		}
		if got.Total != 2 || avg != 4.5 {
			t.Errorf("unexpected totals %+v avg=%v", got, avg)
		}
		if len(got.Breakdown) != 2 || got.Breakdown[0].Interest != "Eggs" || got.Breakdown[1].Interest != unspecifiedInterest {
			t.Errorf("unexpected breakdown %+v", got.Breakdown)
		}
		if got.NextReview != "2026-07-01" {
			t.Errorf("expected 2026-07-01, got %s", got.NextReview)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/feedback/1", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/feedback/1", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Feedback not found") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/feedback/abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}
