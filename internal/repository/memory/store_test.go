package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
	"updown/internal/repository"
)

func TestCompleteGameOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := &models.Game{Symbol: "BTCUSDT", Status: models.GameStatusActive, StartPrice: decimal.NewFromInt(100)}
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatalf("insert: %v", err)
	}
	now := time.Now().UTC()
	ok, err := s.CompleteGame(ctx, g.ID, decimal.NewFromInt(110), now)
	if err != nil || !ok {
		t.Fatalf("first complete ok=%v err=%v", ok, err)
	}
	ok, err = s.CompleteGame(ctx, g.ID, decimal.NewFromInt(120), now)
	if err != nil || ok {
		t.Fatalf("second complete ok=%v err=%v want false", ok, err)
	}
	got, _ := s.GetGameByID(ctx, g.ID)
	if got.EndPrice == nil || !got.EndPrice.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("end price=%v want 110", got.EndPrice)
	}
	if ok, _ := s.CancelGame(ctx, g.ID, now); ok {
		t.Fatalf("cancel of completed game should not apply")
	}
}

func TestInsertPredictionDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &models.Prediction{GameID: 1, UserID: "u1", Direction: models.DirectionUp, Status: models.PredictionStatusPending}
	if err := s.InsertPrediction(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.InsertPrediction(ctx, &models.Prediction{GameID: 1, UserID: "u1", Direction: models.DirectionDown})
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("err=%v want ErrDuplicateKey", err)
	}
}

func TestInsertScoreEntryRunningTotal(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, pts := range []float64{100, 50, -20} {
		pid := uint64(i + 1)
		e := &models.ScoreEntry{UserID: "u1", PredictionID: &pid, Points: pts, Multiplier: 1, Status: models.ScoreStatusConfirmed}
		if err := s.InsertScoreEntry(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	latest, _ := s.GetLatestScoreEntry(ctx, "u1")
	if latest == nil || latest.TotalPointsAfter != 130 || latest.Points != -20 {
		t.Fatalf("latest=%+v want total 130 points -20", latest)
	}
	pid := uint64(2)
	err := s.InsertScoreEntry(ctx, &models.ScoreEntry{UserID: "u1", PredictionID: &pid, Points: 1, Multiplier: 1})
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("err=%v want ErrDuplicateKey", err)
	}
	sums, _ := s.SumPointsByUser(ctx, nil)
	if len(sums) != 1 || sums[0].Points != 130 {
		t.Fatalf("sums=%+v want 130", sums)
	}
}

func TestClaimAirdropRecord(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	s := New().WithClock(func() time.Time { return now })
	a := &models.AirdropRecord{Period: models.PeriodDaily, PeriodKey: "daily:2026-01-01", UserID: "u1", IdempotencyKey: "k1"}
	if err := s.InsertAirdropRecord(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ok, _ := s.ClaimAirdropRecord(ctx, a.ID, base.Add(-time.Minute)); !ok {
		t.Fatalf("first claim should apply")
	}
	if ok, _ := s.ClaimAirdropRecord(ctx, a.ID, base.Add(-time.Minute)); ok {
		t.Fatalf("fresh processing claim should not apply")
	}
	now = base.Add(10 * time.Minute)
	if ok, _ := s.ClaimAirdropRecord(ctx, a.ID, now.Add(-5*time.Minute)); !ok {
		t.Fatalf("stale processing claim should apply")
	}
	_ = s.FailAirdropRecord(ctx, a.ID, "boom")
	got, _ := s.GetAirdropRecordByID(ctx, a.ID)
	if got.Status != models.AirdropStatusFailed || got.RetryCount != 1 {
		t.Fatalf("status=%s retry=%d", got.Status, got.RetryCount)
	}
	_, _ = s.ClaimAirdropRecord(ctx, a.ID, now)
	_ = s.CompleteAirdropRecord(ctx, a.ID, "0xabc", now)
	if ok, _ := s.ClaimAirdropRecord(ctx, a.ID, now.Add(time.Hour)); ok {
		t.Fatalf("completed record should not be claimable")
	}
}

func TestRecordRankingOutcomeStreaks(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.InsertRankingRecord(ctx, &models.RankingRecord{UserID: "u1", Period: models.PeriodAll})
	for _, win := range []bool{true, true, true, false, true} {
		if ok, _ := s.RecordRankingOutcome(ctx, "u1", models.PeriodAll, win); !ok {
			t.Fatalf("record outcome missed")
		}
	}
	r, _ := s.GetRankingRecord(ctx, "u1", models.PeriodAll)
	if r.WinCount != 4 || r.LoseCount != 1 || r.CurrentStreak != 1 || r.BestStreak != 3 {
		t.Fatalf("record=%+v", r)
	}
}
