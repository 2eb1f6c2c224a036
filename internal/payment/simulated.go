package payment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Simulated accepts every charge without contacting anyone.
type Simulated struct {
	logger *slog.Logger
}

func NewSimulated(logger *slog.Logger) *Simulated {
	return &Simulated{logger: logger}
}

func (s *Simulated) Charge(_ context.Context, req ChargeRequest) (Result, error) {
	id := "sim-" + uuid.NewString()
	s.logger.Info("simulated payment accepted", "amount_cents", req.AmountCents, "payment_id", id)
	return Result{
		Accepted:  true,
		Detail:    "simulated",
		PaymentID: id,
		Simulated: true,
	}, nil
}
