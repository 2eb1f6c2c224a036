package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Review is a public storefront review. Rating is optional.
type Review struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Rating    *int      `json:"rating"`
	Message   string    `json:"message"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	IP        string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback is a private visitor survey entry, only visible to staff.
type Feedback struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Rating    int       `json:"rating"`
	Interest  string    `json:"interest,omitempty"`
	Comments  string    `json:"comments,omitempty"`
	IP        string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type InterestCount struct {
	Interest string `json:"interest"`
	Count    int    `json:"count"`
}

// FeedbackSummary aggregates visitor feedback for staff. NextQuarterlyReview
// is a calendar date.
type FeedbackSummary struct {
	TotalSubmissions    int              `json:"total_submissions"`
	AverageRating       *decimal.Decimal `json:"average_rating"`
	InterestBreakdown   []InterestCount  `json:"interest_breakdown"`
	LastSubmission      *time.Time       `json:"last_submission"`
	NextQuarterlyReview string           `json:"next_quarterly_review"`
}
