// Package payout delivers airdrop transfers to an external payout gateway.
package payout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrRejected = errors.New("payout rejected")

type Transfer struct {
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Period         string          `json:"period"`
	PeriodKey      string          `json:"period_key"`
	Rank           int             `json:"rank"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Sender performs one transfer. Implementations must treat a repeated
// IdempotencyKey as the same transfer.
type Sender interface {
	Send(ctx context.Context, t Transfer) (txHash string, err error)
}

// Noop acknowledges every transfer without moving funds.
type Noop struct{}

func (Noop) Send(_ context.Context, t Transfer) (string, error) {
	return "noop:" + t.IdempotencyKey, nil
}
