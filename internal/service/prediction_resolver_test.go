package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		in   ScoreInput
		want float64
	}{
		{"full house", ScoreInput{IsCorrect: true, Accuracy: 100, SpeedMs: 2000, Streak: 5}, 220},
		{"incorrect", ScoreInput{IsCorrect: false, Accuracy: 100, SpeedMs: 10, Streak: 9}, 0},
		{"base only", ScoreInput{IsCorrect: true, Accuracy: 0, SpeedMs: 6000, Streak: 0}, 100},
		{"caps", ScoreInput{IsCorrect: true, Accuracy: 250, SpeedMs: 0, Streak: 40}, 270},
		{"speed edge", ScoreInput{IsCorrect: true, Accuracy: 10, SpeedMs: 5000, Streak: 1}, 115},
	}
	for _, tc := range cases {
		if got := Score(tc.in); got != tc.want {
			t.Fatalf("%s: score=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsCorrect(t *testing.T) {
	start := decimal.NewFromInt(100)
	if !IsCorrect(models.DirectionUp, start, decimal.NewFromInt(101)) {
		t.Fatalf("UP on rise should win")
	}
	if !IsCorrect(models.DirectionDown, start, decimal.RequireFromString("99.5")) {
		t.Fatalf("DOWN on fall should win")
	}
	if IsCorrect(models.DirectionUp, start, start) || IsCorrect(models.DirectionDown, start, start) {
		t.Fatalf("unchanged price should lose both ways")
	}
	if IsCorrect("SIDEWAYS", start, decimal.NewFromInt(200)) {
		t.Fatalf("unknown direction should lose")
	}
}

func TestResolveIsNoOpOnSettledPrediction(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))
	p := e.predict(t, game.ID, "u1", models.DirectionUp, 80)

	if _, err := e.store.CompleteGame(ctx, game.ID, decimal.NewFromInt(120), e.clock.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	closed, _ := e.store.GetGameByID(ctx, game.ID)

	first, applied, err := e.resolver.Resolve(ctx, *p, *closed)
	if err != nil || !applied {
		t.Fatalf("first resolve applied=%v err=%v", applied, err)
	}
	if first.Status != models.PredictionStatusWin || first.Score != 160 {
		t.Fatalf("status=%s score=%v want WIN 160", first.Status, first.Score)
	}

	// A stale PENDING copy loses the storage guard.
	again, applied, err := e.resolver.Resolve(ctx, *p, *closed)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if applied {
		t.Fatalf("second resolve should not apply")
	}
	if again.Score != first.Score || again.ResolvedAt == nil || !again.ResolvedAt.Equal(*first.ResolvedAt) {
		t.Fatalf("stored prediction changed: %+v", again)
	}
}

func TestResolveRejectsOpenGame(t *testing.T) {
	e := newTestEngine(t)
	game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))
	p := e.predict(t, game.ID, "u1", models.DirectionUp, 50)
	if _, _, err := e.resolver.Resolve(context.Background(), *p, game); err == nil {
		t.Fatalf("expected error resolving against an ACTIVE game")
	}
}

func TestResolveGameUsesStreakBeforeOutcome(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	scores := make([]float64, 0, 3)
	for i := 0; i < 3; i++ {
		game, err := e.games.CreateGame(ctx, CreateGameInput{Symbol: "BTCUSDT", Duration: time.Minute})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		e.predict(t, game.ID, "streaker", models.DirectionUp, 0)
		e.clock.Advance(10 * time.Second)
		e.feed.Set("BTCUSDT", game.StartPrice.Add(decimal.NewFromInt(1)))
		if _, err := e.games.CloseGame(ctx, game.ID); err != nil {
			t.Fatalf("close: %v", err)
		}
		p, _ := e.store.GetPredictionByGameAndUser(ctx, game.ID, "streaker")
		scores = append(scores, p.Score)
	}
	// Submitted at game start: speed bonus applies; streak grows 0, 1, 2.
	want := []float64{120, 130, 140}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("scores=%v want %v", scores, want)
		}
	}
}
