package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/config"
	cronrunner "updown/internal/cron"
	"updown/internal/models"
	"updown/internal/payout"
	"updown/internal/pricefeed"
	"updown/internal/repository"
	"updown/internal/repository/memory"
	"updown/internal/service"
)

type countingSweeper struct {
	calls int
}

func (s *countingSweeper) Sweep(time.Time) int {
	s.calls++
	return 0
}

func newJobs(t *testing.T) (*Jobs, *memory.Store) {
	t.Helper()
	store := memory.New()
	feed, err := pricefeed.NewStatic(map[string]string{"BTCUSDT": "100"})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	rankings := &service.RankingAggregator{Repo: store}
	scores := &service.ScoreAccumulator{Repo: store, Rankings: rankings}
	resolver := &service.PredictionResolver{Repo: store, Scores: scores, Rankings: rankings}
	jobs := &Jobs{
		Games:    &service.GameManager{Repo: store, Feed: feed, Resolver: resolver},
		Rankings: rankings,
		Airdrops: &service.AirdropDistributor{Repo: store, Rankings: rankings, Sender: payout.Noop{}},
		Flags:    &service.SystemSettingsService{Repo: store},
	}
	if err := jobs.Flags.EnsureDefaultSwitches(context.Background()); err != nil {
		t.Fatalf("switches: %v", err)
	}
	if _, err := scores.Adjust(context.Background(), service.AdjustInput{UserID: "alice", Points: 50}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	return jobs, store
}

func TestEndGamesClosesDueGames(t *testing.T) {
	ctx := context.Background()
	jobs, store := newJobs(t)
	past := time.Now().UTC().Add(-time.Hour)
	game := &models.Game{
		Symbol:     "BTCUSDT",
		StartTime:  past,
		EndTime:    past.Add(time.Minute),
		Duration:   time.Minute,
		StartPrice: decimal.NewFromInt(90),
		Status:     models.GameStatusActive,
	}
	if err := store.InsertGame(ctx, game); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := jobs.Flags.SetEnabled(ctx, service.FeatureEndGames, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := jobs.EndGames(ctx); err != nil {
		t.Fatalf("disabled run: %v", err)
	}
	got, _ := store.GetGameByID(ctx, game.ID)
	if got.Status != models.GameStatusActive {
		t.Fatalf("disabled job closed the game")
	}

	_ = jobs.Flags.SetEnabled(ctx, service.FeatureEndGames, true)
	if err := jobs.EndGames(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ = store.GetGameByID(ctx, game.ID)
	if got.Status != models.GameStatusCompleted {
		t.Fatalf("status=%s want COMPLETED", got.Status)
	}
}

func TestAirdropJobRespectsSwitch(t *testing.T) {
	ctx := context.Background()
	jobs, store := newJobs(t)
	run := jobs.airdrop(models.PeriodDaily)

	if err := run(ctx); err != nil {
		t.Fatalf("default run: %v", err)
	}
	if n, _ := store.CountAirdropRecords(ctx, repository.ListAirdropParams{}); n != 0 {
		t.Fatalf("airdrop ran while switched off: %d records", n)
	}

	_ = jobs.Flags.SetEnabled(ctx, service.FeatureAirdrop, true)
	if err := run(ctx); err != nil {
		t.Fatalf("enabled run: %v", err)
	}
	items, _ := store.ListAirdropRecords(ctx, repository.ListAirdropParams{})
	if len(items) != 1 || items[0].UserID != "alice" || items[0].Status != models.AirdropStatusCompleted {
		t.Fatalf("records=%+v", items)
	}
}

func TestRecomputeAndSweep(t *testing.T) {
	ctx := context.Background()
	jobs, store := newJobs(t)
	if err := jobs.AggregateWindows(ctx); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if err := jobs.RecomputeRanks(ctx); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	for _, period := range models.Periods {
		rec, _ := store.GetRankingRecord(ctx, "alice", period)
		if rec == nil || rec.Rank != 1 {
			t.Fatalf("%s record=%+v want rank 1", period, rec)
		}
	}

	sweeper := &countingSweeper{}
	jobs.Sweeper = sweeper
	if err := jobs.SweepCache(ctx); err != nil || sweeper.calls != 1 {
		t.Fatalf("sweep calls=%d err=%v", sweeper.calls, err)
	}
}

func TestRegisterReportsBadSpecs(t *testing.T) {
	jobs, _ := newJobs(t)
	r := cronrunner.New(nil, context.Background(), nil)
	err := jobs.Register(r, config.CronConfig{
		EndGames:       "*/5 * * * * *",
		AggregateDaily: "not a spec",
	})
	if err == nil {
		t.Fatalf("expected error for bad spec")
	}
	if err := jobs.Register(cronrunner.New(nil, context.Background(), nil), config.CronConfig{EndGames: "*/5 * * * * *"}); err != nil {
		t.Fatalf("register: %v", err)
	}
}
