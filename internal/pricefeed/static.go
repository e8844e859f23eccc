package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Static serves fixed prices. It backs local runs and tests.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]string) (*Static, error) {
	s := &Static{prices: map[string]decimal.Decimal{}}
	for sym, raw := range prices {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("static price %s: %w", sym, err)
		}
		s.Set(sym, p)
	}
	return s, nil
}

func (s *Static) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[NormalizeSymbol(symbol)] = price
}

func (s *Static) Delete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, NormalizeSymbol(symbol))
}

func (s *Static) CurrentPrice(_ context.Context, symbol string) (Sample, error) {
	symbol = NormalizeSymbol(symbol)
	s.mu.RLock()
	p, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok || !p.IsPositive() {
		return Sample{}, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}
	return Sample{Symbol: symbol, Price: p, At: time.Now().UTC(), Source: "static"}, nil
}
