package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"updown/internal/cache"
	"updown/internal/config"
	"updown/internal/models"
	"updown/internal/observability"
	"updown/internal/paas"
	"updown/internal/payout"
	"updown/internal/repository"
)

type Tier struct {
	Tier    int             `json:"tier"`
	MinRank int             `json:"min_rank"`
	MaxRank int             `json:"max_rank"`
	Amount  decimal.Decimal `json:"amount"`
}

// DefaultTiers pays by rank position: 1, 2-51, 52-551, 552-1551.
var DefaultTiers = []Tier{
	{Tier: 1, MinRank: 1, MaxRank: 1, Amount: decimal.NewFromInt(10000)},
	{Tier: 2, MinRank: 2, MaxRank: 51, Amount: decimal.NewFromInt(1000)},
	{Tier: 3, MinRank: 52, MaxRank: 551, Amount: decimal.NewFromInt(100)},
	{Tier: 4, MinRank: 552, MaxRank: 1551, Amount: decimal.NewFromInt(10)},
}

func TierForRank(rank int) (Tier, bool) {
	for _, t := range DefaultTiers {
		if rank >= t.MinRank && rank <= t.MaxRank {
			return t, true
		}
	}
	return Tier{}, false
}

const allPeriodKey = "all:lifetime"

// PeriodKey names the payout window a run at t belongs to. The all period
// has a single lifetime window, so it pays each user once.
func PeriodKey(period string, t time.Time) string {
	t = t.UTC()
	switch period {
	case models.PeriodDaily:
		return "daily:" + t.Format("2006-01-02")
	case models.PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("weekly:%04d-W%02d", year, week)
	case models.PeriodMonthly:
		return "monthly:" + t.Format("2006-01")
	case models.PeriodAll:
		return allPeriodKey
	default:
		return period + ":" + t.Format("2006-01-02")
	}
}

type EligibleUser struct {
	UserID     string          `json:"user_id"`
	Rank       int             `json:"rank"`
	Tier       int             `json:"tier"`
	Amount     decimal.Decimal `json:"amount"`
	TotalScore float64         `json:"total_score"`
}

type AirdropOutcome struct {
	UserID    string          `json:"user_id"`
	Rank      int             `json:"rank"`
	Tier      int             `json:"tier"`
	Amount    decimal.Decimal `json:"amount"`
	AirdropID uint64          `json:"airdrop_id,omitempty"`
	Status    string          `json:"status"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type AirdropResult struct {
	Period      string           `json:"period"`
	PeriodKey   string           `json:"period_key"`
	DryRun      bool             `json:"dry_run"`
	Eligible    int              `json:"eligible"`
	TierCounts  map[int]int      `json:"tier_counts"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	Items       []AirdropOutcome `json:"items,omitempty"`
}

// AirdropDistributor pays ranked users per tier. Each (period, period key,
// user) has one AirdropRecord; a COMPLETED record is never paid again.
type AirdropDistributor struct {
	Repo     repository.Repository
	Rankings *RankingAggregator
	Sender   payout.Sender
	Locks    cache.Store
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Audit    *paas.Client
	Config   config.AirdropConfig
	Clock    func() time.Time
}

func eligibleFrom(records []models.RankingRecord, tier int) []EligibleUser {
	out := make([]EligibleUser, 0)
	for _, r := range records {
		if r.TotalScore <= 0 {
			continue
		}
		t, ok := TierForRank(r.Rank)
		if !ok {
			continue
		}
		if tier > 0 && t.Tier != tier {
			continue
		}
		out = append(out, EligibleUser{
			UserID:     r.UserID,
			Rank:       r.Rank,
			Tier:       t.Tier,
			Amount:     t.Amount,
			TotalScore: r.TotalScore,
		})
	}
	return out
}

// GetEligible returns the tiered payout list for period in rank order
// without persisting anything. tier 0 returns every tier.
func (s *AirdropDistributor) GetEligible(ctx context.Context, period string, tier int) ([]EligibleUser, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return nil, err
	}
	if tier < 0 || tier > len(DefaultTiers) {
		return nil, fmt.Errorf("%w: tier %d", ErrInvalidInput, tier)
	}
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	records, err := s.Repo.ListRankingRecordsByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	SortRankingRecords(records)
	for i := range records {
		records[i].Rank = i + 1
	}
	return eligibleFrom(records, tier), nil
}

// Execute recomputes ranks and pays every eligible user. A dry run only
// reports the plan. Per-user failures are recorded on the result and on
// the AirdropRecord; they never fail the batch.
func (s *AirdropDistributor) Execute(ctx context.Context, period string, dryRun bool) (*AirdropResult, error) {
	period, err := validatePeriod(period)
	if err != nil {
		return nil, err
	}
	now := nowFrom(s.Clock)
	result := &AirdropResult{
		Period:      period,
		PeriodKey:   PeriodKey(period, now),
		DryRun:      dryRun,
		TierCounts:  map[int]int{},
		TotalAmount: decimal.Zero,
	}
	for _, t := range DefaultTiers {
		result.TierCounts[t.Tier] = 0
	}
	if s == nil || s.Repo == nil || s.Rankings == nil {
		return result, nil
	}

	records, err := s.Rankings.RecomputeRanks(ctx, period)
	if err != nil {
		return nil, err
	}
	plan := eligibleFrom(records, 0)
	result.Eligible = len(plan)
	for _, u := range plan {
		result.TierCounts[u.Tier]++
		result.TotalAmount = result.TotalAmount.Add(u.Amount)
	}
	if dryRun {
		return result, nil
	}
	if s.Sender == nil {
		return nil, errors.New("airdrop sender not configured")
	}

	outcomes := make([]AirdropOutcome, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i := range plan {
		i, user := i, plan[i]
		g.Go(func() error {
			outcomes[i] = s.payUser(gctx, period, result.PeriodKey, user)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch o.Status {
		case models.AirdropStatusCompleted:
			result.Succeeded++
		case models.AirdropStatusFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}
	result.Items = outcomes

	fields := []zap.Field{
		zap.String("period", period),
		zap.String("period_key", result.PeriodKey),
		zap.Int("eligible", result.Eligible),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	}
	if s.Logger != nil {
		s.Logger.Info("airdrop executed", fields...)
	}
	s.Audit.Record("airdrop_execute", levelForFailures(result.Failed), map[string]any{
		"period":       period,
		"period_key":   result.PeriodKey,
		"eligible":     result.Eligible,
		"succeeded":    result.Succeeded,
		"failed":       result.Failed,
		"skipped":      result.Skipped,
		"total_amount": result.TotalAmount.String(),
	})
	return result, nil
}

// Retry re-attempts one record with its original amount and idempotency
// key. A COMPLETED record is returned unchanged.
func (s *AirdropDistributor) Retry(ctx context.Context, airdropID uint64) (*models.AirdropRecord, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNotFound
	}
	rec, err := s.Repo.GetAirdropRecordByID(ctx, airdropID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: airdrop %d", ErrNotFound, airdropID)
	}
	if rec.Status == models.AirdropStatusCompleted {
		return rec, nil
	}
	if s.Sender == nil {
		return nil, errors.New("airdrop sender not configured")
	}

	unlock, ok := s.lock(ctx, rec.Period, rec.UserID)
	if !ok {
		return rec, nil
	}
	defer unlock()
	s.attempt(ctx, rec)

	return s.Repo.GetAirdropRecordByID(ctx, airdropID)
}

func (s *AirdropDistributor) List(ctx context.Context, params repository.ListAirdropParams) ([]models.AirdropRecord, int64, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, nil
	}
	items, err := s.Repo.ListAirdropRecords(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountAirdropRecords(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *AirdropDistributor) payUser(ctx context.Context, period, periodKey string, user EligibleUser) AirdropOutcome {
	out := AirdropOutcome{UserID: user.UserID, Rank: user.Rank, Tier: user.Tier, Amount: user.Amount, Status: BatchStatusSkipped}

	unlock, ok := s.lock(ctx, period, user.UserID)
	if !ok {
		out.Error = "user payout in progress"
		return out
	}
	defer unlock()

	rec, err := s.recordFor(ctx, period, periodKey, user)
	if err != nil {
		out.Status = models.AirdropStatusFailed
		out.Error = err.Error()
		s.logWarn("airdrop record load failed", err, zap.String("period", period), zap.String("user_id", user.UserID))
		return out
	}
	out.AirdropID = rec.ID
	out.Amount = rec.Amount
	if rec.Status == models.AirdropStatusCompleted {
		if rec.TxHash != nil {
			out.TxHash = *rec.TxHash
		}
		return out
	}

	status, txHash, errText := s.attempt(ctx, rec)
	out.Status, out.TxHash, out.Error = status, txHash, errText
	return out
}

func (s *AirdropDistributor) recordFor(ctx context.Context, period, periodKey string, user EligibleUser) (*models.AirdropRecord, error) {
	rec, err := s.Repo.GetAirdropRecord(ctx, period, periodKey, user.UserID)
	if err != nil || rec != nil {
		return rec, err
	}
	details, _ := json.Marshal(map[string]any{"total_score": user.TotalScore})
	rec = &models.AirdropRecord{
		Period:         period,
		PeriodKey:      periodKey,
		UserID:         user.UserID,
		Rank:           user.Rank,
		Tier:           user.Tier,
		Amount:         user.Amount,
		Status:         models.AirdropStatusPending,
		IdempotencyKey: uuid.NewString(),
		Details:        datatypes.JSON(details),
		CreatedAt:      nowFrom(s.Clock),
	}
	err = s.Repo.InsertAirdropRecord(ctx, rec)
	if errors.Is(err, repository.ErrDuplicateKey) {
		return s.Repo.GetAirdropRecord(ctx, period, periodKey, user.UserID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// attempt claims rec and sends it. It returns the resulting status, the tx
// hash on success and the error text on failure.
func (s *AirdropDistributor) attempt(ctx context.Context, rec *models.AirdropRecord) (string, string, string) {
	staleBefore := nowFrom(s.Clock).Add(-s.staleAfter())
	claimed, err := s.Repo.ClaimAirdropRecord(ctx, rec.ID, staleBefore)
	if err != nil {
		s.logWarn("airdrop claim failed", err, zap.Uint64("airdrop_id", rec.ID), zap.String("user_id", rec.UserID))
		return models.AirdropStatusFailed, "", err.Error()
	}
	if !claimed {
		return BatchStatusSkipped, "", ""
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout())
	txHash, sendErr := s.Sender.Send(sendCtx, payout.Transfer{
		UserID:         rec.UserID,
		Amount:         rec.Amount,
		Period:         rec.Period,
		PeriodKey:      rec.PeriodKey,
		Rank:           rec.Rank,
		IdempotencyKey: rec.IdempotencyKey,
	})
	cancel()

	amount, _ := rec.Amount.Float64()
	if sendErr != nil {
		reason := strings.TrimSpace(sendErr.Error())
		if err := s.Repo.FailAirdropRecord(ctx, rec.ID, reason); err != nil {
			s.logWarn("airdrop fail mark failed", err, zap.Uint64("airdrop_id", rec.ID))
		}
		if err := s.Rankings.MarkAirdrop(ctx, rec.UserID, rec.Period, models.AirdropStatusFailed, rec.Amount, rec.RetryCount+1); err != nil {
			s.logWarn("ranking airdrop mirror failed", err, zap.String("user_id", rec.UserID))
		}
		s.Metrics.AirdropSent(rec.Period, false, amount)
		s.logWarn("airdrop send failed", sendErr,
			zap.Uint64("airdrop_id", rec.ID),
			zap.String("user_id", rec.UserID),
			zap.String("period_key", rec.PeriodKey),
			zap.String("amount", rec.Amount.String()),
		)
		return models.AirdropStatusFailed, "", reason
	}

	if err := s.Repo.CompleteAirdropRecord(ctx, rec.ID, txHash, nowFrom(s.Clock)); err != nil {
		// The transfer went out; a later retry reuses the idempotency key.
		s.logWarn("airdrop complete mark failed", err, zap.Uint64("airdrop_id", rec.ID), zap.String("tx_hash", txHash))
	}
	if err := s.Rankings.MarkAirdrop(ctx, rec.UserID, rec.Period, models.AirdropStatusCompleted, rec.Amount, rec.RetryCount); err != nil {
		s.logWarn("ranking airdrop mirror failed", err, zap.String("user_id", rec.UserID))
	}
	s.Metrics.AirdropSent(rec.Period, true, amount)
	return models.AirdropStatusCompleted, txHash, ""
}

// lock serializes work on one user's payouts for period across workers and
// processes sharing the store.
func (s *AirdropDistributor) lock(ctx context.Context, period, userID string) (func(), bool) {
	if s.Locks == nil {
		return func() {}, true
	}
	key := "airdrop:lock:" + period + ":" + userID
	token := []byte(uuid.NewString())
	ok, err := s.Locks.SetNX(ctx, key, token, s.lockTTL())
	if err != nil {
		s.logWarn("airdrop lock failed", err, zap.String("user_id", userID))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return func() {
		// Only the holder's token releases; an expired lock may belong to
		// another worker by now.
		released, err := s.Locks.DeleteIfValue(context.Background(), key, token)
		if err != nil {
			s.logWarn("airdrop unlock failed", err, zap.String("user_id", userID))
			return
		}
		if !released {
			s.logWarn("airdrop lock expired before unlock", errors.New("lock held by another worker"), zap.String("user_id", userID))
		}
	}, true
}

func (s *AirdropDistributor) concurrency() int {
	if s.Config.Concurrency <= 0 {
		return 4
	}
	return s.Config.Concurrency
}

func (s *AirdropDistributor) sendTimeout() time.Duration {
	if s.Config.SendTimeout <= 0 {
		return 20 * time.Second
	}
	return s.Config.SendTimeout
}

func (s *AirdropDistributor) lockTTL() time.Duration {
	if s.Config.LockTTL <= 0 {
		return 2 * time.Minute
	}
	return s.Config.LockTTL
}

func (s *AirdropDistributor) staleAfter() time.Duration {
	if s.Config.StaleAfter <= 0 {
		return 10 * time.Minute
	}
	return s.Config.StaleAfter
}

func (s *AirdropDistributor) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, append(fields, zap.Error(err))...)
}

func levelForFailures(failed int) string {
	if failed > 0 {
		return "warn"
	}
	return "info"
}
