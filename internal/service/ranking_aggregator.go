package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updown/internal/models"
	"updown/internal/repository"
)

const (
	MetricScore   = "score"
	MetricWins    = "wins"
	MetricStreak  = "streak"
	MetricWinRate = "win_rate"

	scoreEpsilon = 1e-9
)

type RankingPage struct {
	Period string                 `json:"period"`
	Metric string                 `json:"metric"`
	Items  []models.RankingRecord `json:"items"`
	Total  int64                  `json:"total"`
}

type AggregateResult struct {
	Period  string     `json:"period"`
	Since   *time.Time `json:"since,omitempty"`
	Users   int        `json:"users"`
	Updated int        `json:"updated"`
	Created int        `json:"created"`
	// Outcomes counts records whose win/lose counters or streaks were reset
	// to the window.
	Outcomes int `json:"outcomes"`
}

// RankingAggregator is the only writer of RankingRecords.
type RankingAggregator struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Clock  func() time.Time
}

// PeriodStart returns the start of the scoring window for period at now.
// The all period has no start.
func PeriodStart(period string, now time.Time) (time.Time, bool) {
	now = now.UTC()
	switch period {
	case models.PeriodDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	case models.PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour), true
	case models.PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

func validatePeriod(period string) (string, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	if !models.ValidPeriod(period) {
		return "", fmt.Errorf("%w: period %q", ErrInvalidInput, period)
	}
	return period, nil
}

// SortRankingRecords orders by total score desc, then earliest record
// creation, then user id.
func SortRankingRecords(items []models.RankingRecord) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if math.Abs(a.TotalScore-b.TotalScore) > scoreEpsilon {
			return a.TotalScore > b.TotalScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})
}

// UpdateUserRanking adds delta to the user's record for period, creating
// the record when it does not exist yet.
func (s *RankingAggregator) UpdateUserRanking(ctx context.Context, userID string, delta float64, period string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	ok, err := s.Repo.IncrementRankingScore(ctx, userID, period, delta)
	if err != nil || ok {
		return err
	}
	err = s.Repo.InsertRankingRecord(ctx, &models.RankingRecord{
		UserID:        userID,
		Period:        period,
		TotalScore:    delta,
		AirdropStatus: models.AirdropStatusPending,
		AirdropAmount: decimal.Zero,
		CreatedAt:     nowFrom(s.Clock),
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		_, err = s.Repo.IncrementRankingScore(ctx, userID, period, delta)
	}
	return err
}

func (s *RankingAggregator) ensureRecord(ctx context.Context, userID, period string) error {
	existing, err := s.Repo.GetRankingRecord(ctx, userID, period)
	if err != nil || existing != nil {
		return err
	}
	err = s.Repo.InsertRankingRecord(ctx, &models.RankingRecord{
		UserID:        userID,
		Period:        period,
		AirdropStatus: models.AirdropStatusPending,
		AirdropAmount: decimal.Zero,
		CreatedAt:     nowFrom(s.Clock),
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil
	}
	return err
}

// RecordOutcome moves win/lose counters and streaks on every period record
// of the user. AggregatePeriod later trims the windowed periods back to
// what was settled inside their window.
func (s *RankingAggregator) RecordOutcome(ctx context.Context, userID string, isCorrect bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	for _, period := range models.Periods {
		if err := s.ensureRecord(ctx, userID, period); err != nil {
			return err
		}
		if _, err := s.Repo.RecordRankingOutcome(ctx, userID, period, isCorrect); err != nil {
			return err
		}
	}
	return nil
}

// CurrentStreak is the user's streak on the all-time record.
func (s *RankingAggregator) CurrentStreak(ctx context.Context, userID string) (int, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	rec, err := s.Repo.GetRankingRecord(ctx, userID, models.PeriodAll)
	if err != nil || rec == nil {
		return 0, err
	}
	return rec.CurrentStreak, nil
}

// AggregatePeriod sets each user's total for period to the sum of CONFIRMED
// ledger points inside the period window. Deltas go through
// UpdateUserRanking, so a re-run with no new points changes nothing, and
// users whose points left the window decay to zero. Win/lose counters and
// streaks are rebuilt from the predictions settled inside the window.
func (s *RankingAggregator) AggregatePeriod(ctx context.Context, period string) (AggregateResult, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return AggregateResult{}, err
	}
	result := AggregateResult{Period: period}
	if s == nil || s.Repo == nil {
		return result, nil
	}

	var since *time.Time
	if start, ok := PeriodStart(period, nowFrom(s.Clock)); ok {
		since = &start
		result.Since = &start
	}
	sums, err := s.Repo.SumPointsByUser(ctx, since)
	if err != nil {
		return result, err
	}
	records, err := s.Repo.ListRankingRecordsByPeriod(ctx, period)
	if err != nil {
		return result, err
	}
	current := make(map[string]float64, len(records))
	for _, r := range records {
		current[r.UserID] = r.TotalScore
	}

	seen := make(map[string]struct{}, len(sums))
	for _, sum := range sums {
		seen[sum.UserID] = struct{}{}
		result.Users++
		prev, exists := current[sum.UserID]
		delta := sum.Points - prev
		if exists && math.Abs(delta) <= scoreEpsilon {
			continue
		}
		if err := s.UpdateUserRanking(ctx, sum.UserID, delta, period); err != nil {
			return result, err
		}
		if exists {
			result.Updated++
		} else {
			result.Created++
		}
	}
	for userID, total := range current {
		if _, ok := seen[userID]; ok || math.Abs(total) <= scoreEpsilon {
			continue
		}
		if err := s.UpdateUserRanking(ctx, userID, -total, period); err != nil {
			return result, err
		}
		result.Updated++
	}
	changed, err := s.aggregateOutcomes(ctx, period, since)
	if err != nil {
		return result, err
	}
	result.Outcomes = changed
	if s.Logger != nil {
		s.Logger.Info("ranking period aggregated",
			zap.String("period", period),
			zap.Int("users", result.Users),
			zap.Int("updated", result.Updated),
			zap.Int("created", result.Created),
			zap.Int("outcomes", result.Outcomes),
		)
	}
	return result, nil
}

// WindowOutcomes folds settled predictions, ordered by user then settle
// time, into per-user counters. A loss resets the current streak.
func WindowOutcomes(settled []models.Prediction) map[string]repository.RankingOutcomes {
	out := make(map[string]repository.RankingOutcomes)
	for _, p := range settled {
		o := out[p.UserID]
		switch p.Status {
		case models.PredictionStatusWin:
			o.WinCount++
			o.CurrentStreak++
			if o.CurrentStreak > o.BestStreak {
				o.BestStreak = o.CurrentStreak
			}
		case models.PredictionStatusLose:
			o.LoseCount++
			o.CurrentStreak = 0
		default:
			continue
		}
		out[p.UserID] = o
	}
	return out
}

func (s *RankingAggregator) aggregateOutcomes(ctx context.Context, period string, since *time.Time) (int, error) {
	settled, err := s.Repo.ListResolvedPredictions(ctx, since)
	if err != nil {
		return 0, err
	}
	want := WindowOutcomes(settled)
	for userID := range want {
		if err := s.ensureRecord(ctx, userID, period); err != nil {
			return 0, err
		}
	}
	records, err := s.Repo.ListRankingRecordsByPeriod(ctx, period)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, r := range records {
		o := want[r.UserID]
		if r.WinCount == o.WinCount && r.LoseCount == o.LoseCount && r.CurrentStreak == o.CurrentStreak && r.BestStreak == o.BestStreak {
			continue
		}
		if _, err := s.Repo.SetRankingOutcomes(ctx, r.UserID, period, o); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// Reconcile re-aggregates every period.
func (s *RankingAggregator) Reconcile(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	var errs []error
	for _, period := range models.Periods {
		if _, err := s.AggregatePeriod(ctx, period); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", period, err))
		}
	}
	return errors.Join(errs...)
}

// RecomputeRanks assigns rank = position+1 in SortRankingRecords order and
// persists the ranks that changed. The ranked records are returned.
func (s *RankingAggregator) RecomputeRanks(ctx context.Context, period string) ([]models.RankingRecord, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	records, err := s.Repo.ListRankingRecordsByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	SortRankingRecords(records)
	changed := make(map[uint64]int)
	for i := range records {
		rank := i + 1
		if records[i].Rank != rank {
			changed[records[i].ID] = rank
		}
		records[i].Rank = rank
	}
	if len(changed) > 0 {
		if err := s.Repo.UpdateRanks(ctx, period, changed); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// GetRanking pages the period leaderboard ordered by metric (score, wins,
// streak or win_rate).
func (s *RankingAggregator) GetRanking(ctx context.Context, period string, limit, offset int, metric string) (RankingPage, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return RankingPage{}, err
	}
	metric = strings.ToLower(strings.TrimSpace(metric))
	if metric == "" {
		metric = MetricScore
	}
	page := RankingPage{Period: period, Metric: metric}
	if s == nil || s.Repo == nil {
		return page, nil
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	if metric == MetricScore {
		params := repository.ListRankingsParams{Limit: limit, Offset: offset, Period: period}
		items, err := s.Repo.ListRankings(ctx, params)
		if err != nil {
			return page, err
		}
		total, err := s.Repo.CountRankings(ctx, params)
		if err != nil {
			return page, err
		}
		page.Items, page.Total = items, total
		return page, nil
	}

	var key func(models.RankingRecord) float64
	switch metric {
	case MetricWins:
		key = func(r models.RankingRecord) float64 { return float64(r.WinCount) }
	case MetricStreak:
		key = func(r models.RankingRecord) float64 { return float64(r.BestStreak) }
	case MetricWinRate:
		key = func(r models.RankingRecord) float64 { return r.WinRate() }
	default:
		return page, fmt.Errorf("%w: metric %q", ErrInvalidInput, metric)
	}
	records, err := s.Repo.ListRankingRecordsByPeriod(ctx, period)
	if err != nil {
		return page, err
	}
	// Records arrive in score order, which breaks metric ties.
	SortRankingRecords(records)
	sort.SliceStable(records, func(i, j int) bool { return key(records[i]) > key(records[j]) })
	page.Total = int64(len(records))
	if offset >= len(records) {
		page.Items = []models.RankingRecord{}
		return page, nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	page.Items = records[offset:end]
	return page, nil
}

// UserRankings returns the user's record for every period.
func (s *RankingAggregator) UserRankings(ctx context.Context, userID string) ([]models.RankingRecord, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListRankingRecordsByUser(ctx, strings.TrimSpace(userID))
}

// MarkAirdrop mirrors the latest payout state onto the ranking record.
func (s *RankingAggregator) MarkAirdrop(ctx context.Context, userID, period, status string, amount decimal.Decimal, retries int) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	return s.Repo.UpdateRankingAirdrop(ctx, userID, period, repository.RankingAirdropUpdate{
		Status:     status,
		Amount:     amount,
		RetryCount: retries,
	})
}
