package service

import (
	"context"
	"errors"
	"testing"

	"updown/internal/models"
	"updown/internal/repository"
)

func TestApplyIsIdempotentPerPrediction(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	gameID, predictionID := uint64(7), uint64(11)
	ev := ScoreEvent{UserID: "alice", GameID: &gameID, PredictionID: &predictionID, IsCorrect: true, Score: 150}

	first, err := e.scores.Apply(ctx, ev)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if first.TotalPointsAfter != 150 || first.Status != models.ScoreStatusConfirmed {
		t.Fatalf("entry=%+v", first)
	}
	again, err := e.scores.Apply(ctx, ev)
	if err != nil {
		t.Fatalf("repeat apply: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("repeat id=%d want %d", again.ID, first.ID)
	}
	n, _ := e.store.CountScoreEntries(ctx, repository.ListScoreEntriesParams{})
	if n != 1 {
		t.Fatalf("ledger rows=%d want 1", n)
	}
	for _, period := range models.Periods {
		rec, _ := e.store.GetRankingRecord(ctx, "alice", period)
		if rec == nil || rec.TotalScore != 150 {
			t.Fatalf("%s record=%+v want 150", period, rec)
		}
	}
}

func TestApplyLossWritesNoLedgerRow(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	entry, err := e.scores.Apply(ctx, ScoreEvent{UserID: "bob", IsCorrect: false})
	if err != nil || entry != nil {
		t.Fatalf("loss apply=%+v err=%v", entry, err)
	}
	rec, _ := e.store.GetRankingRecord(ctx, "bob", models.PeriodAll)
	if rec == nil || rec.LoseCount != 1 || rec.TotalScore != 0 {
		t.Fatalf("record=%+v want one loss", rec)
	}
	if _, err := e.scores.CurrentEntry(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("current err=%v want ErrNotFound", err)
	}
}

func TestAdjustKeepsRunningTotal(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	if _, err := e.scores.Adjust(ctx, AdjustInput{UserID: "carol", Points: 80}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	penalty, err := e.scores.Adjust(ctx, AdjustInput{UserID: "carol", Points: 30, ScoreType: models.ScoreTypePenalty})
	if err != nil {
		t.Fatalf("penalty: %v", err)
	}
	if penalty.Points != -30 || penalty.TotalPointsAfter != 50 {
		t.Fatalf("penalty=%+v want -30 leaving 50", penalty)
	}
	bonus, _ := e.scores.Adjust(ctx, AdjustInput{UserID: "carol", Points: 10, ScoreType: models.ScoreTypeStreakBonus, Multiplier: 2})
	if bonus.TotalPointsAfter != 70 {
		t.Fatalf("bonus total=%v want 70", bonus.TotalPointsAfter)
	}
	current, err := e.scores.CurrentEntry(ctx, "carol")
	if err != nil || current.ID != bonus.ID {
		t.Fatalf("current=%+v err=%v", current, err)
	}
	rec, _ := e.store.GetRankingRecord(ctx, "carol", models.PeriodDaily)
	if rec.TotalScore != 70 {
		t.Fatalf("daily total=%v want 70", rec.TotalScore)
	}
	items, total, _ := e.scores.History(ctx, "carol", 2, 0)
	if total != 3 || len(items) != 2 || items[0].ID != bonus.ID {
		t.Fatalf("history total=%d items=%+v", total, items)
	}

	for _, in := range []AdjustInput{
		{UserID: "", Points: 1},
		{UserID: "carol", Points: 0},
		{UserID: "carol", Points: 1, ScoreType: "GIFT"},
	} {
		if _, err := e.scores.Adjust(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("input %+v: err=%v want ErrInvalidInput", in, err)
		}
	}
}
