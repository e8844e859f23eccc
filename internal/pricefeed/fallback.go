package pricefeed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Fallback asks each feed in order and returns the first positive price.
type Fallback struct {
	Feeds  []Feed
	Logger *zap.Logger
}

func (f *Fallback) CurrentPrice(ctx context.Context, symbol string) (Sample, error) {
	var errs []error
	for i, feed := range f.Feeds {
		if feed == nil {
			continue
		}
		sample, err := feed.CurrentPrice(ctx, symbol)
		if err == nil && sample.Price.IsPositive() {
			return sample, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: non-positive price", ErrUnavailable)
		}
		if f.Logger != nil && i < len(f.Feeds)-1 {
			f.Logger.Debug("price feed fallback", zap.Int("feed", i), zap.String("symbol", symbol), zap.Error(err))
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Sample{}, fmt.Errorf("%w: no feeds configured", ErrUnavailable)
	}
	return Sample{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}
