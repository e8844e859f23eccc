package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
	"updown/internal/repository"
)

func seedDaily(t *testing.T, e *testEngine, users map[string]float64) {
	t.Helper()
	for user, score := range users {
		if err := e.rankings.UpdateUserRanking(context.Background(), user, score, models.PeriodDaily); err != nil {
			t.Fatalf("seed %s: %v", user, err)
		}
	}
}

func TestTierForRank(t *testing.T) {
	cases := []struct {
		rank int
		tier int
		ok   bool
	}{
		{0, 0, false},
		{1, 1, true},
		{2, 2, true},
		{51, 2, true},
		{52, 3, true},
		{551, 3, true},
		{552, 4, true},
		{1551, 4, true},
		{1552, 0, false},
	}
	for _, tc := range cases {
		got, ok := TierForRank(tc.rank)
		if ok != tc.ok || got.Tier != tc.tier {
			t.Fatalf("rank %d: tier=%d ok=%v want %d %v", tc.rank, got.Tier, ok, tc.tier, tc.ok)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	at := time.Date(2026, 1, 1, 23, 55, 0, 0, time.UTC)
	cases := map[string]string{
		models.PeriodDaily:   "daily:2026-01-01",
		models.PeriodWeekly:  "weekly:2026-W01",
		models.PeriodMonthly: "monthly:2026-01",
		models.PeriodAll:     "all:lifetime",
	}
	for period, want := range cases {
		if got := PeriodKey(period, at); got != want {
			t.Fatalf("%s key=%s want %s", period, got, want)
		}
	}
	if later := PeriodKey(models.PeriodAll, at.AddDate(0, 2, 0)); later != "all:lifetime" {
		t.Fatalf("all key moved with the run date: %s", later)
	}
}

func TestAirdropDryRunTierCounts(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	users := make(map[string]float64, 1600)
	for i := 0; i < 1600; i++ {
		users[fmt.Sprintf("user-%04d", i)] = float64(2000 - i)
	}
	seedDaily(t, e, users)

	result, err := e.airdrops.Execute(ctx, models.PeriodDaily, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if result.Eligible != 1551 {
		t.Fatalf("eligible=%d want 1551", result.Eligible)
	}
	want := map[int]int{1: 1, 2: 50, 3: 500, 4: 1000}
	for tier, n := range want {
		if result.TierCounts[tier] != n {
			t.Fatalf("tier %d count=%d want %d", tier, result.TierCounts[tier], n)
		}
	}
	if !result.TotalAmount.Equal(decimal.NewFromInt(120000)) {
		t.Fatalf("total=%s want 120000", result.TotalAmount)
	}
	if result.Succeeded != 0 || len(result.Items) != 0 {
		t.Fatalf("dry run should not pay: %+v", result)
	}
	n, _ := e.store.CountAirdropRecords(ctx, repository.ListAirdropParams{})
	if n != 0 || e.sender.count("user-0000") != 0 {
		t.Fatalf("dry run wrote %d records", n)
	}
	top, _ := e.store.GetRankingRecord(ctx, "user-0000", models.PeriodDaily)
	if top.Rank != 1 {
		t.Fatalf("top rank=%d want 1", top.Rank)
	}
}

func TestAirdropSkipsNonPositiveScores(t *testing.T) {
	e := newTestEngine(t)
	seedDaily(t, e, map[string]float64{"alice": 30, "bob": 0, "carol": -5})
	eligible, err := e.airdrops.GetEligible(context.Background(), models.PeriodDaily, 0)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0].UserID != "alice" || eligible[0].Tier != 1 {
		t.Fatalf("eligible=%+v want only alice in tier 1", eligible)
	}
	if _, err := e.airdrops.GetEligible(context.Background(), models.PeriodDaily, 9); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("tier 9 err=%v want ErrInvalidInput", err)
	}
}

func TestAirdropExecuteNeverPaysTwice(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	seedDaily(t, e, map[string]float64{"alice": 300, "bob": 200, "carol": 100})

	first, err := e.airdrops.Execute(ctx, models.PeriodDaily, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if first.Succeeded != 3 || first.Failed != 0 {
		t.Fatalf("first=%+v want 3 paid", first)
	}
	rec, _ := e.store.GetAirdropRecord(ctx, models.PeriodDaily, first.PeriodKey, "alice")
	if rec == nil || rec.Status != models.AirdropStatusCompleted || !rec.Amount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("alice record=%+v", rec)
	}
	bob, _ := e.store.GetAirdropRecord(ctx, models.PeriodDaily, first.PeriodKey, "bob")
	if !bob.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("bob amount=%s want 1000", bob.Amount)
	}

	second, err := e.airdrops.Execute(ctx, models.PeriodDaily, false)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if second.Succeeded != 0 || second.Skipped != 3 {
		t.Fatalf("second=%+v want all skipped", second)
	}
	for _, u := range []string{"alice", "bob", "carol"} {
		if got := e.sender.count(u); got != 1 {
			t.Fatalf("%s sends=%d want 1", u, got)
		}
	}
	ranking, _ := e.store.GetRankingRecord(ctx, "alice", models.PeriodDaily)
	if ranking.AirdropStatus != models.AirdropStatusCompleted {
		t.Fatalf("ranking airdrop status=%s", ranking.AirdropStatus)
	}
}

func TestAirdropFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	seedDaily(t, e, map[string]float64{"alice": 300, "bob": 200})
	e.sender.failFor["bob"] = true

	result, err := e.airdrops.Execute(ctx, models.PeriodDaily, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("result=%+v want 1 ok 1 failed", result)
	}
	failed, _ := e.store.GetAirdropRecord(ctx, models.PeriodDaily, result.PeriodKey, "bob")
	if failed.Status != models.AirdropStatusFailed || failed.RetryCount != 1 || failed.LastError == "" {
		t.Fatalf("bob record=%+v want FAILED with one retry", failed)
	}
	ranking, _ := e.store.GetRankingRecord(ctx, "bob", models.PeriodDaily)
	if ranking.AirdropStatus != models.AirdropStatusFailed || ranking.AirdropRetryCount != 1 {
		t.Fatalf("bob ranking=%s/%d", ranking.AirdropStatus, ranking.AirdropRetryCount)
	}

	delete(e.sender.failFor, "bob")
	retried, err := e.airdrops.Retry(ctx, failed.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != models.AirdropStatusCompleted || retried.TxHash == nil || *retried.TxHash != "0xtx-"+failed.IdempotencyKey {
		t.Fatalf("retried=%+v", retried)
	}
	if !retried.Amount.Equal(failed.Amount) {
		t.Fatalf("amount changed %s -> %s", failed.Amount, retried.Amount)
	}

	again, err := e.airdrops.Retry(ctx, failed.ID)
	if err != nil || again.Status != models.AirdropStatusCompleted {
		t.Fatalf("retry completed: %v %+v", err, again)
	}
	if got := e.sender.count("bob"); got != 1 {
		t.Fatalf("bob sends=%d want 1", got)
	}
	if _, err := e.airdrops.Retry(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown retry err=%v want ErrNotFound", err)
	}
}

func TestAirdropRejectsUnknownPeriod(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.airdrops.Execute(context.Background(), "hourly", true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v want ErrInvalidInput", err)
	}
}

func TestAirdropLockReleaseKeepsNewerHolder(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	key := "airdrop:lock:" + models.PeriodDaily + ":alice"

	unlock, ok := e.airdrops.lock(ctx, models.PeriodDaily, "alice")
	if !ok {
		t.Fatalf("first lock not taken")
	}
	if _, ok := e.airdrops.lock(ctx, models.PeriodDaily, "alice"); ok {
		t.Fatalf("lock taken twice")
	}
	// The first holder's lock expires and another worker takes it.
	_ = e.airdrops.Locks.Delete(ctx, key)
	if ok, _ := e.airdrops.Locks.SetNX(ctx, key, []byte("worker-b"), time.Minute); !ok {
		t.Fatalf("second worker could not lock")
	}

	unlock()
	v, found, _ := e.airdrops.Locks.Get(ctx, key)
	if !found || string(v) != "worker-b" {
		t.Fatalf("lock value=%q found=%v want worker-b still held", v, found)
	}
}
