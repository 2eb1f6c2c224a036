// Package payment charges cards through Square or, when no credentials are
// configured, through a simulated adapter that always accepts.
package payment

import (
	"context"
)

const Currency = "USD"

type ChargeRequest struct {
	AmountCents int64
	SourceID    string
	ReferenceID string
}

// Result describes a completed exchange with the provider. A declined charge
// is a Result with Accepted false, not an error; errors mean the provider
// could not be reached or answered with something unreadable.
type Result struct {
	Accepted  bool
	Detail    string
	PaymentID string
	Simulated bool
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
}
