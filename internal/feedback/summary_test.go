package feedback

import (
	"testing"
	"time"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

func TestNextQuarterStart(t *testing.T) {
	tests := []struct {
		now  string
		want string
	}{
		{"2026-01-01", "2026-04-01"},
		{"2026-03-31", "2026-04-01"},
		{"2026-04-01", "2026-07-01"},
		{"2026-08-15", "2026-10-01"},
		{"2026-10-17", "2027-01-01"},
		{"2026-12-31", "2027-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			now, err := time.Parse(time.DateOnly, tt.now)
			if err != nil {
				t.Fatal(err)
			}
			if got := nextQuarterStart(now).Format(time.DateOnly); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		got := summarize(nil, now)
		if got.TotalSubmissions != 0 || got.AverageRating != nil || got.LastSubmission != nil {
			t.Errorf("unexpected summary %+v", got)
		}
		if got.InterestBreakdown == nil || len(got.InterestBreakdown) != 0 {
			t.Errorf("expected an empty breakdown, got %v", got.InterestBreakdown)
		}
		if got.NextQuarterlyReview != "2027-01-01" {
			t.Errorf("expected 2027-01-01, got %s", got.NextQuarterlyReview)
		}
	})

	t.Run("aggregates", func(t *testing.T) {
		latest := now.Add(-time.Hour)
		entries := []domain.Feedback{
			{Rating: 5, Interest: "Eggs", CreatedAt: now.Add(-48 * time.Hour)},
			{Rating: 4, Interest: "eggs ", CreatedAt: latest},
			{Rating: 4, Interest: "", CreatedAt: now.Add(-24 * time.Hour)},
			{Rating: 5, Interest: "Lamb", CreatedAt: now.Add(-72 * time.Hour)},
			{Rating: 5, Interest: "Lamb", CreatedAt: now.Add(-96 * time.Hour)},
			{Rating: 3, Interest: "apples", CreatedAt: now.Add(-120 * time.Hour)},
		}

		got := summarize(entries, now)

		if got.TotalSubmissions != 6 {
			t.Errorf("expected 6 submissions, got %d", got.TotalSubmissions)
		}
		if got.AverageRating == nil || got.AverageRating.String() != "4.33" {
			t.Errorf("expected average 4.33, got %v", got.AverageRating)
		}
		if got.LastSubmission == nil || !got.LastSubmission.Equal(latest) {
			t.Errorf("expected last submission %v, got %v", latest, got.LastSubmission)
		}

		want := []domain.InterestCount{
			{Interest: "Lamb", Count: 2},
			{Interest: "apples", Count: 1},
			{Interest: "Eggs", Count: 1},
			{Interest: "eggs", Count: 1},
			{Interest: unspecifiedInterest, Count: 1},
		}
		if len(got.InterestBreakdown) != len(want) {
			t.Fatalf("expected %d interests, got %+v", len(want), got.InterestBreakdown)
		}
		for i := range want {
			if got.InterestBreakdown[i] != want[i] {
				t.Errorf("interest %d: expected %+v, got %+v", i, want[i], got.InterestBreakdown[i])
			}
		}
	})
}
