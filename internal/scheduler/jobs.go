// Package scheduler binds the engine's batch operations to cron specs.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"updown/internal/cache"
	"updown/internal/config"
	cronrunner "updown/internal/cron"
	"updown/internal/models"
	"updown/internal/paas"
	"updown/internal/service"
)

const (
	JobEndGames       = "end_games"
	JobAggregateDaily = "aggregate_daily"
	JobAggregateAll   = "aggregate_all"
	JobRecomputeRanks = "recompute_ranks"
	JobAirdropDaily   = "airdrop_daily"
	JobAirdropWeekly  = "airdrop_weekly"
	JobAirdropMonthly = "airdrop_monthly"
	JobCacheSweep     = "cache_sweep"
)

// Sweeper drops expired entries from an in-process cache.
type Sweeper interface {
	Sweep(now time.Time) int
}

var _ Sweeper = (*cache.MemoryStore)(nil)

// Jobs gates every run on its feature switch. A disabled job returns nil.
type Jobs struct {
	Games    *service.GameManager
	Rankings *service.RankingAggregator
	Airdrops *service.AirdropDistributor
	Flags    *service.SystemSettingsService
	Sweeper  Sweeper
	Audit    *paas.Client
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Register adds every job with a non-empty spec to r.
func (j *Jobs) Register(r *cronrunner.Runner, cfg config.CronConfig) error {
	entries := []struct {
		name string
		spec string
		job  cronrunner.Job
	}{
		{JobEndGames, cfg.EndGames, j.EndGames},
		{JobAggregateDaily, cfg.AggregateDaily, j.AggregateWindows},
		{JobAggregateAll, cfg.AggregateAll, j.AggregateAll},
		{JobRecomputeRanks, cfg.RecomputeRanks, j.RecomputeRanks},
		{JobAirdropDaily, cfg.AirdropDaily, j.airdrop(models.PeriodDaily)},
		{JobAirdropWeekly, cfg.AirdropWeekly, j.airdrop(models.PeriodWeekly)},
		{JobAirdropMonthly, cfg.AirdropMonthly, j.airdrop(models.PeriodMonthly)},
		{JobCacheSweep, cfg.CacheSweep, j.SweepCache},
	}
	var errs []error
	for _, e := range entries {
		if _, err := r.Add(e.name, e.spec, e.job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *Jobs) enabled(ctx context.Context, key string) bool {
	return j.Flags.IsEnabled(ctx, key, service.DefaultFeatureSwitches()[key])
}

func (j *Jobs) EndGames(ctx context.Context) error {
	if j.Games == nil || !j.enabled(ctx, service.FeatureEndGames) {
		return nil
	}
	result, err := j.Games.EndDueGames(ctx)
	if err != nil {
		return err
	}
	if result.Total > 0 && j.Logger != nil {
		j.Logger.Info("cron end games",
			zap.Int("total", result.Total),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
		)
	}
	return nil
}

// AggregateWindows re-derives the daily, weekly and monthly totals.
func (j *Jobs) AggregateWindows(ctx context.Context) error {
	return j.aggregate(ctx, models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly)
}

func (j *Jobs) AggregateAll(ctx context.Context) error {
	return j.aggregate(ctx, models.PeriodAll)
}

func (j *Jobs) aggregate(ctx context.Context, periods ...string) error {
	if j.Rankings == nil || !j.enabled(ctx, service.FeatureAggregate) {
		return nil
	}
	var errs []error
	for _, period := range periods {
		if _, err := j.Rankings.AggregatePeriod(ctx, period); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *Jobs) RecomputeRanks(ctx context.Context) error {
	if j.Rankings == nil || !j.enabled(ctx, service.FeatureRecomputeRanks) {
		return nil
	}
	var errs []error
	for _, period := range models.Periods {
		if _, err := j.Rankings.RecomputeRanks(ctx, period); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *Jobs) airdrop(period string) cronrunner.Job {
	return func(ctx context.Context) error {
		if j.Airdrops == nil || !j.enabled(ctx, service.FeatureAirdrop) {
			return nil
		}
		if j.Rankings != nil {
			if _, err := j.Rankings.AggregatePeriod(ctx, period); err != nil {
				return err
			}
		}
		result, err := j.Airdrops.Execute(ctx, period, false)
		if err != nil {
			j.Audit.Record("cron_airdrop_failed", "error", map[string]any{"period": period, "error": err.Error()})
			return err
		}
		if result.Failed > 0 && j.Logger != nil {
			j.Logger.Warn("cron airdrop had failures",
				zap.String("period_key", result.PeriodKey),
				zap.Int("failed", result.Failed),
			)
		}
		return nil
	}
}

func (j *Jobs) SweepCache(ctx context.Context) error {
	if j.Sweeper == nil || !j.enabled(ctx, service.FeatureCacheSweep) {
		return nil
	}
	now := time.Now()
	if j.Clock != nil {
		now = j.Clock()
	}
	if n := j.Sweeper.Sweep(now); n > 0 && j.Logger != nil {
		j.Logger.Debug("cache swept", zap.Int("expired", n))
	}
	return nil
}
