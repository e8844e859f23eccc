package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultBinanceRESTURL = "https://api.binance.com/api/v3/ticker/price"

// BinanceREST polls the Binance ticker price endpoint on demand.
type BinanceREST struct {
	HTTP     *http.Client
	Logger   *zap.Logger
	Endpoint string

	mu        sync.Mutex
	lastPoll  *time.Time
	lastError *string
	status    string
}

type Health struct {
	Status     string     `json:"status"`
	LastPollAt *time.Time `json:"last_poll_at,omitempty"`
	LastError  *string    `json:"last_error,omitempty"`
}

func (c *BinanceREST) CurrentPrice(ctx context.Context, symbol string) (Sample, error) {
	if c == nil {
		return Sample{}, ErrUnavailable
	}
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return Sample{}, fmt.Errorf("%w: empty symbol", ErrUnavailable)
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = DefaultBinanceRESTURL
	}

	now := time.Now().UTC()
	price, err := c.fetchPrice(ctx, endpoint, symbol)
	if err != nil {
		msg := err.Error()
		c.setHealth(now, "down", &msg)
		if c.Logger != nil {
			c.Logger.Warn("binance price fetch failed", zap.String("symbol", symbol), zap.Error(err))
		}
		return Sample{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}
	c.setHealth(now, "healthy", nil)
	return Sample{Symbol: symbol, Price: price, At: now, Source: "binance_rest"}, nil
}

func (c *BinanceREST) Health() Health {
	if c == nil {
		return Health{Status: "unknown"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	status := c.status
	if strings.TrimSpace(status) == "" {
		status = "unknown"
	}
	return Health{Status: status, LastPollAt: c.lastPoll, LastError: c.lastError}
}

func (c *BinanceREST) fetchPrice(ctx context.Context, endpoint, symbol string) (decimal.Decimal, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return decimal.Zero, err
	}
	q := u.Query()
	q.Set("symbol", symbol)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("http %d", resp.StatusCode)
	}
	var parsed struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Zero, err
	}
	p, err := decimal.NewFromString(strings.TrimSpace(parsed.Price))
	if err != nil || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid price %q", parsed.Price)
	}
	return p, nil
}

func (c *BinanceREST) setHealth(ts time.Time, status string, errStr *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPoll = &ts
	c.status = status
	c.lastError = errStr
}
