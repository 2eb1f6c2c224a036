package feedback

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

const unspecifiedInterest = "Unspecified"

func summarize(entries []domain.Feedback, now time.Time) domain.FeedbackSummary {
	summary := domain.FeedbackSummary{
		TotalSubmissions:    len(entries),
		InterestBreakdown:   []domain.InterestCount{},
		NextQuarterlyReview: nextQuarterStart(now).Format(time.DateOnly),
	}

	var (
		ratingSum   int64
		ratingCount int64
		byInterest  = map[string]int{}
	)
	for _, fb := range entries {
		if fb.Rating > 0 {
			ratingSum += int64(fb.Rating)
			ratingCount++
		}

		label := strings.TrimSpace(fb.Interest)
		if label == "" {
			label = unspecifiedInterest
		}
		byInterest[label]++

		if summary.LastSubmission == nil || fb.CreatedAt.After(*summary.LastSubmission) {
			last := fb.CreatedAt
			summary.LastSubmission = &last
		}
	}

	if ratingCount > 0 {
		avg := decimal.NewFromInt(ratingSum).Div(decimal.NewFromInt(ratingCount)).Round(2)
		summary.AverageRating = &avg
	}

	for label, count := range byInterest {
		summary.InterestBreakdown = append(summary.InterestBreakdown, domain.InterestCount{Interest: label, Count: count})
	}
	slices.SortFunc(summary.InterestBreakdown, func(a, b domain.InterestCount) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			strings.Compare(strings.ToLower(a.Interest), strings.ToLower(b.Interest)),
			strings.Compare(a.Interest, b.Interest),
		)
	})

	return summary
}

// nextQuarterStart returns the first day of the calendar quarter after now.
func nextQuarterStart(now time.Time) time.Time {
	firstMonth := (now.Month()-1)/3*3 + 1
	return time.Date(now.Year(), firstMonth+3, 1, 0, 0, 0, 0, now.Location())
}
