package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultBinanceStreamURL = "wss://stream.binance.com:9443/stream"

type StreamOptions struct {
	URL               string
	Symbols           []string
	MaxAge            time.Duration
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	Logger            *zap.Logger
}

// Stream keeps the latest miniTicker close price per symbol from the Binance
// combined websocket stream. CurrentPrice only answers while the last tick
// is younger than MaxAge.
type Stream struct {
	opts StreamOptions

	mu     sync.RWMutex
	latest map[string]Sample
	now    func() time.Time
}

func NewStream(opts StreamOptions) *Stream {
	if opts.URL == "" {
		opts.URL = DefaultBinanceStreamURL
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = 10 * time.Second
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = 1 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &Stream{opts: opts, latest: map[string]Sample{}, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Stream) CurrentPrice(_ context.Context, symbol string) (Sample, error) {
	if s == nil {
		return Sample{}, ErrUnavailable
	}
	symbol = NormalizeSymbol(symbol)
	s.mu.RLock()
	sample, ok := s.latest[symbol]
	s.mu.RUnlock()
	if !ok {
		return Sample{}, fmt.Errorf("%w: no tick for %s", ErrUnavailable, symbol)
	}
	if age := s.now().Sub(sample.At); age > s.opts.MaxAge {
		return Sample{}, fmt.Errorf("%w: %s last tick %s ago", ErrStale, symbol, age.Truncate(time.Millisecond))
	}
	return sample, nil
}

func (s *Stream) streamURL() string {
	names := make([]string, 0, len(s.opts.Symbols))
	for _, sym := range s.opts.Symbols {
		sym = strings.ToLower(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		names = append(names, sym+"@miniTicker")
	}
	return s.opts.URL + "?streams=" + strings.Join(names, "/")
}

// Run connects and reconnects with jittered backoff until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("stream is nil")
	}
	if len(s.opts.Symbols) == 0 {
		return fmt.Errorf("stream has no symbols")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := websocket.Dial(ctx, s.streamURL(), nil)
		if err != nil {
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("price stream connect failed", zap.Error(err))
			}
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		conn.SetReadLimit(1 << 20)
		if s.opts.Logger != nil {
			s.opts.Logger.Info("price stream connected", zap.Strings("symbols", s.opts.Symbols))
		}
		backoff = s.opts.BackoffMin

		err = s.consume(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, s.opts.BackoffMax)
	}
}

func (s *Stream) consume(ctx context.Context, conn *websocket.Conn) error {
	heartbeatErr := make(chan error, 1)
	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				heartbeatErr <- heartbeatCtx.Err()
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(heartbeatCtx, s.opts.PingTimeout)
				err := conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					heartbeatErr <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		default:
		}
		_, raw, err := conn.Read(ctx)
		if err != nil {
			if s.opts.Logger != nil && !errors.Is(err, context.Canceled) {
				s.opts.Logger.Warn("price stream read failed", zap.Error(err))
			}
			return err
		}
		if err := s.handle(raw); err != nil && s.opts.Logger != nil {
			s.opts.Logger.Debug("price stream message skipped", zap.Error(err))
		}
	}
}

type miniTickerEnvelope struct {
	Stream string `json:"stream"`
	Data   struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
		Symbol    string `json:"s"`
		Close     string `json:"c"`
	} `json:"data"`
}

func (s *Stream) handle(raw []byte) error {
	var env miniTickerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Data.Event != "24hrMiniTicker" {
		return fmt.Errorf("unexpected event %q", env.Data.Event)
	}
	price, err := decimal.NewFromString(env.Data.Close)
	if err != nil || !price.IsPositive() {
		return fmt.Errorf("invalid close %q", env.Data.Close)
	}
	// Receive time bounds staleness; exchange event time can lag.
	sample := Sample{
		Symbol: NormalizeSymbol(env.Data.Symbol),
		Price:  price,
		At:     s.now(),
		Source: "binance_stream",
	}
	s.mu.Lock()
	s.latest[sample.Symbol] = sample
	s.mu.Unlock()
	return nil
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base/2) + 1))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
