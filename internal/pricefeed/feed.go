// Package pricefeed resolves the current price of a trading symbol.
package pricefeed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnavailable = errors.New("price unavailable")
	ErrStale       = errors.New("price stale")
)

type Sample struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	At     time.Time       `json:"at"`
	Source string          `json:"source"`
}

// Feed returns a positive price for the symbol or an error wrapping
// ErrUnavailable / ErrStale.
type Feed interface {
	CurrentPrice(ctx context.Context, symbol string) (Sample, error)
}

// FeedFunc adapts a function to Feed.
type FeedFunc func(ctx context.Context, symbol string) (Sample, error)

func (f FeedFunc) CurrentPrice(ctx context.Context, symbol string) (Sample, error) {
	return f(ctx, symbol)
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
