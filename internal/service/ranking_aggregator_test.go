package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
)

func TestRecomputeRanksBreaksTiesByCreation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	seed := []struct {
		user  string
		score float64
	}{
		{"dave", 10},
		{"zed", 30},
		{"alice", 50},
		{"amy", 30},
	}
	for _, s := range seed {
		if err := e.rankings.UpdateUserRanking(ctx, s.user, s.score, models.PeriodDaily); err != nil {
			t.Fatalf("update %s: %v", s.user, err)
		}
		e.clock.Advance(time.Second)
	}

	ranked, err := e.rankings.RecomputeRanks(ctx, models.PeriodDaily)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	want := []struct {
		user string
		rank int
	}{{"alice", 1}, {"zed", 2}, {"amy", 3}, {"dave", 4}}
	if len(ranked) != len(want) {
		t.Fatalf("len=%d want %d", len(ranked), len(want))
	}
	for i, w := range want {
		if ranked[i].UserID != w.user || ranked[i].Rank != w.rank {
			t.Fatalf("pos %d=%s/%d want %s/%d", i, ranked[i].UserID, ranked[i].Rank, w.user, w.rank)
		}
		stored, _ := e.store.GetRankingRecord(ctx, w.user, models.PeriodDaily)
		if stored.Rank != w.rank {
			t.Fatalf("stored rank %s=%d want %d", w.user, stored.Rank, w.rank)
		}
	}

	page, err := e.rankings.GetRanking(ctx, models.PeriodDaily, 2, 0, "")
	if err != nil {
		t.Fatalf("get ranking: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 2 || page.Items[0].UserID != "alice" || page.Items[1].UserID != "zed" {
		t.Fatalf("page=%+v", page)
	}
}

func TestAggregatePeriodIsIdempotentAndDecays(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	if _, err := e.scores.Adjust(ctx, AdjustInput{UserID: "alice", Points: 100}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	res, err := e.rankings.AggregatePeriod(ctx, models.PeriodDaily)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if res.Users != 1 || res.Updated != 0 || res.Created != 0 {
		t.Fatalf("first run=%+v want no changes", res)
	}

	e.clock.Advance(24 * time.Hour)
	res, err = e.rankings.AggregatePeriod(ctx, models.PeriodDaily)
	if err != nil {
		t.Fatalf("aggregate next day: %v", err)
	}
	if res.Users != 0 || res.Updated != 1 {
		t.Fatalf("next day=%+v want one decayed user", res)
	}
	daily, _ := e.store.GetRankingRecord(ctx, "alice", models.PeriodDaily)
	if daily.TotalScore != 0 {
		t.Fatalf("daily total=%v want 0", daily.TotalScore)
	}
	if _, err := e.rankings.AggregatePeriod(ctx, models.PeriodWeekly); err != nil {
		t.Fatalf("aggregate weekly: %v", err)
	}
	weekly, _ := e.store.GetRankingRecord(ctx, "alice", models.PeriodWeekly)
	if weekly.TotalScore != 100 {
		t.Fatalf("weekly total=%v want 100", weekly.TotalScore)
	}

	res, _ = e.rankings.AggregatePeriod(ctx, models.PeriodDaily)
	if res.Updated != 0 || res.Created != 0 {
		t.Fatalf("rerun=%+v want no changes", res)
	}
}

func TestAggregatePeriodCreatesMissingRecords(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	now := e.clock.Now()
	// Written straight to the ledger, so no live ranking update happened.
	if err := e.store.InsertScoreEntry(ctx, &models.ScoreEntry{
		UserID:      "bob",
		ScoreType:   models.ScoreTypeAdminAdjustment,
		Points:      40,
		Multiplier:  1,
		Status:      models.ScoreStatusConfirmed,
		ConfirmedAt: &now,
		CreatedAt:   now,
	}); err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	res, err := e.rankings.AggregatePeriod(ctx, models.PeriodAll)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if res.Created != 1 || res.Since != nil {
		t.Fatalf("result=%+v want one created, no window", res)
	}
	rec, _ := e.store.GetRankingRecord(ctx, "bob", models.PeriodAll)
	if rec == nil || rec.TotalScore != 40 {
		t.Fatalf("record=%+v want 40", rec)
	}
}

func TestGetRankingByMetric(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	outcomes := map[string][]bool{
		"u1": {true, true, true, false},
		"u2": {true},
		"u3": {false, true, true},
	}
	for _, user := range []string{"u1", "u2", "u3"} {
		for _, win := range outcomes[user] {
			if err := e.rankings.RecordOutcome(ctx, user, win); err != nil {
				t.Fatalf("record %s: %v", user, err)
			}
		}
	}

	cases := []struct {
		metric string
		first  string
	}{
		{MetricWins, "u1"},
		{MetricWinRate, "u2"},
		{MetricStreak, "u1"},
	}
	for _, tc := range cases {
		page, err := e.rankings.GetRanking(ctx, models.PeriodAll, 10, 0, tc.metric)
		if err != nil {
			t.Fatalf("%s: %v", tc.metric, err)
		}
		if len(page.Items) != 3 || page.Items[0].UserID != tc.first {
			t.Fatalf("%s first=%v want %s", tc.metric, page.Items, tc.first)
		}
	}

	if _, err := e.rankings.GetRanking(ctx, models.PeriodAll, 10, 0, "luck"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("metric err=%v want ErrInvalidInput", err)
	}
	if _, err := e.rankings.GetRanking(ctx, "yearly", 10, 0, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("period err=%v want ErrInvalidInput", err)
	}
	if streak, _ := e.rankings.CurrentStreak(ctx, "u3"); streak != 2 {
		t.Fatalf("u3 streak=%d want 2", streak)
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	daily, ok := PeriodStart(models.PeriodDaily, now)
	if !ok || !daily.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("daily=%v", daily)
	}
	weekly, _ := PeriodStart(models.PeriodWeekly, now)
	if !weekly.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("weekly=%v", weekly)
	}
	if _, ok := PeriodStart(models.PeriodAll, now); ok {
		t.Fatalf("all period should have no start")
	}
}

func TestAggregatePeriodWindowsOutcomeCounters(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	play := func(up bool) {
		t.Helper()
		game := e.insertActiveGame(t, "BTCUSDT", decimal.NewFromInt(100))
		e.predict(t, game.ID, "alice", models.DirectionUp, 0)
		end := decimal.NewFromInt(90)
		if up {
			end = decimal.NewFromInt(120)
		}
		e.feed.Set("BTCUSDT", end)
		if _, err := e.games.CloseGame(ctx, game.ID); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	play(true)
	e.clock.Advance(48 * time.Hour)
	play(true)
	e.clock.Advance(48 * time.Hour)
	play(true)
	play(false)

	res, err := e.rankings.AggregatePeriod(ctx, models.PeriodDaily)
	if err != nil {
		t.Fatalf("aggregate daily: %v", err)
	}
	if res.Outcomes != 1 {
		t.Fatalf("daily result=%+v want one record trimmed", res)
	}
	daily, _ := e.store.GetRankingRecord(ctx, "alice", models.PeriodDaily)
	if daily.WinCount != 1 || daily.LoseCount != 1 || daily.CurrentStreak != 0 || daily.BestStreak != 1 {
		t.Fatalf("daily record=%+v want 1 win, 1 loss, best streak 1", daily)
	}

	if res, _ := e.rankings.AggregatePeriod(ctx, models.PeriodWeekly); res.Outcomes != 0 {
		t.Fatalf("weekly result=%+v want counters already in window", res)
	}
	weekly, _ := e.store.GetRankingRecord(ctx, "alice", models.PeriodWeekly)
	if weekly.WinCount != 3 || weekly.LoseCount != 1 || weekly.BestStreak != 3 {
		t.Fatalf("weekly record=%+v want 3 wins, 1 loss, best streak 3", weekly)
	}

	e.clock.Advance(48 * time.Hour)
	if _, err := e.rankings.AggregatePeriod(ctx, models.PeriodDaily); err != nil {
		t.Fatalf("aggregate next day: %v", err)
	}
	daily, _ = e.store.GetRankingRecord(ctx, "alice", models.PeriodDaily)
	if daily.WinCount != 0 || daily.LoseCount != 0 || daily.BestStreak != 0 || daily.TotalScore != 0 {
		t.Fatalf("daily record=%+v want empty window", daily)
	}
	page, err := e.rankings.GetRanking(ctx, models.PeriodDaily, 10, 0, MetricWins)
	if err != nil || len(page.Items) != 1 || page.Items[0].WinCount != 0 {
		t.Fatalf("daily wins page=%+v err=%v", page, err)
	}
	all, _ := e.store.GetRankingRecord(ctx, "alice", models.PeriodAll)
	if all.WinCount != 3 || all.LoseCount != 1 {
		t.Fatalf("all record=%+v want lifetime counters", all)
	}
}

func TestWindowOutcomes(t *testing.T) {
	settled := []models.Prediction{
		{UserID: "a", Status: models.PredictionStatusWin},
		{UserID: "a", Status: models.PredictionStatusWin},
		{UserID: "a", Status: models.PredictionStatusLose},
		{UserID: "a", Status: models.PredictionStatusWin},
		{UserID: "b", Status: models.PredictionStatusLose},
		{UserID: "b", Status: models.PredictionStatusPending},
	}
	got := WindowOutcomes(settled)
	if a := got["a"]; a.WinCount != 3 || a.LoseCount != 1 || a.CurrentStreak != 1 || a.BestStreak != 2 {
		t.Fatalf("a=%+v", a)
	}
	if b := got["b"]; b.WinCount != 0 || b.LoseCount != 1 || b.CurrentStreak != 0 {
		t.Fatalf("b=%+v", b)
	}
}
