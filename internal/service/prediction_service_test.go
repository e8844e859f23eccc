package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
)

func TestSubmitPredictionValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))

	cases := []struct {
		name string
		in   SubmitPredictionInput
		want error
	}{
		{"missing user", SubmitPredictionInput{GameID: game.ID, Direction: "UP"}, ErrInvalidInput},
		{"bad direction", SubmitPredictionInput{GameID: game.ID, UserID: "u1", Direction: "SIDEWAYS"}, ErrInvalidInput},
		{"confidence high", SubmitPredictionInput{GameID: game.ID, UserID: "u1", Direction: "UP", Confidence: 101}, ErrInvalidInput},
		{"confidence low", SubmitPredictionInput{GameID: game.ID, UserID: "u1", Direction: "UP", Confidence: -1}, ErrInvalidInput},
		{"unknown game", SubmitPredictionInput{GameID: 42, UserID: "u1", Direction: "UP"}, ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := e.predictions.SubmitPrediction(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
	}

	p, err := e.predictions.SubmitPrediction(ctx, SubmitPredictionInput{GameID: game.ID, UserID: " u1 ", Direction: "down", Confidence: 40})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.UserID != "u1" || p.Direction != models.DirectionDown || p.Status != models.PredictionStatusPending {
		t.Fatalf("prediction=%+v", p)
	}
	if _, err := e.predictions.SubmitPrediction(ctx, SubmitPredictionInput{GameID: game.ID, UserID: "u1", Direction: "UP"}); !errors.Is(err, ErrDuplicatePrediction) {
		t.Fatalf("duplicate err=%v want ErrDuplicatePrediction", err)
	}
}

func TestSubmitPredictionAfterEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))

	e.clock.Advance(time.Minute)
	in := SubmitPredictionInput{GameID: game.ID, UserID: "late", Direction: "UP"}
	if _, err := e.predictions.SubmitPrediction(ctx, in); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("at end time err=%v want ErrGameNotActive", err)
	}

	other := e.insertActiveGame(t, "ETHUSDT", decimal.NewFromInt(10))
	if _, err := e.games.CloseGame(ctx, other.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	in.GameID = other.ID
	if _, err := e.predictions.SubmitPrediction(ctx, in); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("closed game err=%v want ErrGameNotActive", err)
	}
}

func TestGetGameStats(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))
	e.predict(t, game.ID, "u1", models.DirectionUp, 80)
	e.predict(t, game.ID, "u2", models.DirectionUp, 40)
	e.predict(t, game.ID, "u3", models.DirectionDown, 0)
	e.predict(t, game.ID, "u4", models.DirectionUp, 0)

	stats, err := e.predictions.GetGameStats(ctx, game.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 4 || stats.UpCount != 3 || stats.DownCount != 1 || stats.PendingCount != 4 {
		t.Fatalf("stats=%+v", stats)
	}
	if stats.UpRatio != 0.75 || stats.AvgConfidence != 30 {
		t.Fatalf("up ratio=%v avg confidence=%v", stats.UpRatio, stats.AvgConfidence)
	}

	e.feed.Set("BTCUSDT", decimal.NewFromInt(90))
	if _, err := e.games.CloseGame(ctx, game.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	stats, _ = e.predictions.GetGameStats(ctx, game.ID)
	if stats.WinCount != 1 || stats.LoseCount != 3 || stats.PendingCount != 0 {
		t.Fatalf("settled stats=%+v", stats)
	}
	// Only u3 scores: 100 + 0 accuracy + 20 speed, averaged over four.
	if stats.AvgScore != 30 {
		t.Fatalf("avg score=%v want 30", stats.AvgScore)
	}
	if _, err := e.predictions.GetGameStats(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown game err=%v want ErrNotFound", err)
	}
}

func TestGetUserGameHistory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	var ids []uint64
	for i := 0; i < 3; i++ {
		game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))
		e.predict(t, game.ID, "alice", models.DirectionUp, 10)
		ids = append(ids, game.ID)
		e.clock.Advance(time.Second)
	}

	items, total, err := e.predictions.GetUserGameHistory(ctx, "alice", 1, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d want 3/2", total, len(items))
	}
	if items[0].Prediction.GameID != ids[2] || items[0].Game == nil || items[0].Game.ID != ids[2] {
		t.Fatalf("first item=%+v want newest game %d", items[0], ids[2])
	}
	items, _, _ = e.predictions.GetUserGameHistory(ctx, "alice", 2, 2)
	if len(items) != 1 || items[0].Prediction.GameID != ids[0] {
		t.Fatalf("page 2=%+v want oldest game", items)
	}
	if _, _, err := e.predictions.GetUserGameHistory(ctx, " ", 1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank user err=%v want ErrInvalidInput", err)
	}
}
