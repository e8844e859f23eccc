package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/cache"
	"updown/internal/config"
	"updown/internal/models"
	"updown/internal/payout"
	"updown/internal/pricefeed"
	"updown/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingSender records every transfer and fails users listed in failFor.
type countingSender struct {
	mu      sync.Mutex
	sent    map[string]int
	failFor map[string]bool
}

func newCountingSender() *countingSender {
	return &countingSender{sent: map[string]int{}, failFor: map[string]bool{}}
}

func (s *countingSender) Send(_ context.Context, t payout.Transfer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[t.UserID] {
		return "", fmt.Errorf("gateway down for %s", t.UserID)
	}
	s.sent[t.UserID]++
	return "0xtx-" + t.IdempotencyKey, nil
}

func (s *countingSender) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[userID]
}

type testEngine struct {
	clock       *fakeClock
	store       *memory.Store
	feed        *pricefeed.Static
	sender      *countingSender
	rankings    *RankingAggregator
	scores      *ScoreAccumulator
	resolver    *PredictionResolver
	games       *GameManager
	predictions *PredictionService
	airdrops    *AirdropDistributor
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	clock := newFakeClock()
	store := memory.New().WithClock(clock.Now)
	feed, err := pricefeed.NewStatic(map[string]string{"BTCUSDT": "100", "ETHUSDT": "10"})
	if err != nil {
		t.Fatalf("static feed: %v", err)
	}
	e := &testEngine{clock: clock, store: store, feed: feed, sender: newCountingSender()}
	e.rankings = &RankingAggregator{Repo: store, Clock: clock.Now}
	e.scores = &ScoreAccumulator{Repo: store, Rankings: e.rankings, Clock: clock.Now}
	e.resolver = &PredictionResolver{Repo: store, Scores: e.scores, Rankings: e.rankings, Clock: clock.Now}
	e.games = &GameManager{
		Repo:     store,
		Feed:     feed,
		Resolver: e.resolver,
		Policy:   GlobalSingleActiveGame{},
		Config:   config.GameConfig{DefaultDuration: 5 * time.Minute, CloseConcurrency: 4},
		Clock:    clock.Now,
	}
	e.predictions = &PredictionService{Repo: store, Clock: clock.Now}
	e.airdrops = &AirdropDistributor{
		Repo:     store,
		Rankings: e.rankings,
		Sender:   e.sender,
		Locks:    cache.NewMemoryStore(),
		Config:   config.AirdropConfig{Concurrency: 4},
		Clock:    clock.Now,
	}
	return e
}

// insertActiveGame stores an ACTIVE game directly, bypassing the policy.
func (e *testEngine) insertActiveGame(t *testing.T, symbol string, start decimal.Decimal) models.Game {
	t.Helper()
	now := e.clock.Now()
	g := &models.Game{
		Symbol:     symbol,
		StartTime:  now,
		EndTime:    now.Add(time.Minute),
		Duration:   time.Minute,
		StartPrice: start,
		Status:     models.GameStatusActive,
	}
	if err := e.store.InsertGame(context.Background(), g); err != nil {
		t.Fatalf("insert game: %v", err)
	}
	return *g
}

func (e *testEngine) predict(t *testing.T, gameID uint64, userID, direction string, confidence float64) *models.Prediction {
	t.Helper()
	p, err := e.predictions.SubmitPrediction(context.Background(), SubmitPredictionInput{
		GameID:     gameID,
		UserID:     userID,
		Direction:  direction,
		Confidence: confidence,
	})
	if err != nil {
		t.Fatalf("submit %s: %v", userID, err)
	}
	return p
}
