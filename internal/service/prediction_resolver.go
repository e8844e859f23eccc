package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updown/internal/models"
	"updown/internal/observability"
	"updown/internal/repository"
)

const (
	scoreBase          = 100.0
	accuracyBonusRate  = 0.5
	accuracyBonusCap   = 50.0
	speedBonus         = 20.0
	speedBonusWindowMs = 5000
	streakBonusRate    = 10.0
	streakBonusCap     = 100.0

	defaultRescoreGrace = time.Minute
)

type ScoreInput struct {
	IsCorrect bool
	// Accuracy is the 0-100 confidence submitted with the prediction.
	Accuracy float64
	SpeedMs  int64
	Streak   int
}

// Score returns 0 for an incorrect call, otherwise
// 100 + min(accuracy*0.5, 50) + 20 (if submitted within 5s) + min(streak*10, 100).
func Score(in ScoreInput) float64 {
	if !in.IsCorrect {
		return 0
	}
	accuracy := math.Max(0, math.Min(in.Accuracy, 100))
	total := scoreBase + math.Min(accuracy*accuracyBonusRate, accuracyBonusCap)
	if in.SpeedMs >= 0 && in.SpeedMs < speedBonusWindowMs {
		total += speedBonus
	}
	if in.Streak > 0 {
		total += math.Min(float64(in.Streak)*streakBonusRate, streakBonusCap)
	}
	return total
}

// IsCorrect reports whether direction matches the move from start to end.
// An unchanged price is a loss for both directions.
func IsCorrect(direction string, start, end decimal.Decimal) bool {
	switch direction {
	case models.DirectionUp:
		return end.GreaterThan(start)
	case models.DirectionDown:
		return end.LessThan(start)
	default:
		return false
	}
}

type ResolveSummary struct {
	GameID   uint64 `json:"game_id"`
	Resolved int    `json:"resolved"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// PredictionResolver settles PENDING predictions of a closed game and hands
// each newly settled one to the ScoreAccumulator.
type PredictionResolver struct {
	Repo     repository.Repository
	Scores   *ScoreAccumulator
	Rankings *RankingAggregator
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Clock    func() time.Time
	// RescoreGrace is how long a settled prediction may stay unscored
	// before RescoreUnscored retries it.
	RescoreGrace time.Duration
}

// Resolve settles one prediction against a COMPLETED game. The returned
// bool is false when the prediction was already settled, in which case the
// stored row is returned and nothing downstream runs.
func (s *PredictionResolver) Resolve(ctx context.Context, prediction models.Prediction, game models.Game) (*models.Prediction, bool, error) {
	if s == nil || s.Repo == nil {
		return nil, false, nil
	}
	if prediction.IsResolved() {
		return &prediction, false, nil
	}
	if game.EndPrice == nil || game.Status != models.GameStatusCompleted {
		return nil, false, fmt.Errorf("%w: game %d has no end price", ErrGameNotActive, game.ID)
	}
	if prediction.GameID != game.ID {
		return nil, false, fmt.Errorf("%w: prediction %d belongs to game %d", ErrInvalidInput, prediction.ID, prediction.GameID)
	}

	correct := IsCorrect(prediction.Direction, game.StartPrice, *game.EndPrice)
	streak := 0
	if correct && s.Rankings != nil {
		current, err := s.Rankings.CurrentStreak(ctx, prediction.UserID)
		if err != nil {
			return nil, false, err
		}
		streak = current
	}
	score := Score(ScoreInput{
		IsCorrect: correct,
		Accuracy:  prediction.Confidence,
		SpeedMs:   prediction.SubmittedAt.Sub(game.StartTime).Milliseconds(),
		Streak:    streak,
	})
	status := models.PredictionStatusLose
	if correct {
		status = models.PredictionStatusWin
	}

	applied, err := s.Repo.ResolvePrediction(ctx, prediction.ID, repository.PredictionResolution{
		Status:     status,
		IsCorrect:  correct,
		Score:      score,
		EndPrice:   *game.EndPrice,
		ResolvedAt: nowFrom(s.Clock),
	})
	if err != nil {
		return nil, false, err
	}
	stored, err := s.Repo.GetPredictionByID(ctx, prediction.ID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("%w: prediction %d", ErrNotFound, prediction.ID)
	}
	return stored, applied, nil
}

// ResolveGame settles every PENDING prediction of game. A failure on one
// prediction is logged and counted; the rest still settle.
func (s *PredictionResolver) ResolveGame(ctx context.Context, game models.Game) (ResolveSummary, error) {
	summary := ResolveSummary{GameID: game.ID}
	if s == nil || s.Repo == nil {
		return summary, nil
	}
	pending, err := s.Repo.ListPendingPredictionsByGame(ctx, game.ID)
	if err != nil {
		return summary, err
	}
	for _, p := range pending {
		resolved, applied, err := s.Resolve(ctx, p, game)
		if err != nil {
			summary.Failed++
			s.logWarn("prediction resolve failed", err, zap.Uint64("game_id", game.ID), zap.Uint64("prediction_id", p.ID), zap.String("user_id", p.UserID))
			continue
		}
		if !applied {
			summary.Skipped++
			continue
		}
		summary.Resolved++
		if resolved.IsCorrect {
			summary.Wins++
		} else {
			summary.Losses++
		}
		s.Metrics.PredictionResolved(resolved.IsCorrect, resolved.Score)
		if err := s.score(ctx, *resolved); err != nil {
			summary.Failed++
			s.logWarn("prediction scoring failed", err, zap.Uint64("game_id", game.ID), zap.Uint64("prediction_id", resolved.ID), zap.String("user_id", resolved.UserID))
		}
	}
	return summary, nil
}

// RescoreUnscored retries scoring of settled predictions whose ledger or
// ranking writes did not finish, then reconciles every ranking period.
// Only predictions settled more than RescoreGrace ago are picked up, so an
// in-flight close is left alone.
func (s *PredictionResolver) RescoreUnscored(ctx context.Context, limit int) *BatchResult {
	result := &BatchResult{}
	if s == nil || s.Repo == nil {
		return result
	}
	grace := s.RescoreGrace
	if grace <= 0 {
		grace = defaultRescoreGrace
	}
	items, err := s.Repo.ListUnscoredPredictions(ctx, nowFrom(s.Clock).Add(-grace), limit)
	if err != nil {
		s.logWarn("list unscored predictions failed", err)
		return result
	}
	rescored := 0
	for _, p := range items {
		item := BatchItem{ID: p.ID, Key: "rescore:" + p.UserID, Status: BatchStatusSucceeded}
		if err := s.score(ctx, p); err != nil {
			item.Status = BatchStatusFailed
			item.Error = err.Error()
			s.logWarn("prediction rescore failed", err, zap.Uint64("game_id", p.GameID), zap.Uint64("prediction_id", p.ID), zap.String("user_id", p.UserID))
		} else {
			rescored++
		}
		result.add(item)
	}
	if rescored == 0 {
		return result
	}
	// A partial first attempt may have moved some ranking rows already.
	if err := s.Rankings.Reconcile(ctx); err != nil {
		s.logWarn("ranking reconcile after rescore failed", err)
	}
	if s.Logger != nil {
		s.Logger.Info("predictions rescored", zap.Int("rescored", rescored), zap.Int("failed", result.Failed))
	}
	return result
}

// score hands a settled prediction to the ledger and marks it scored.
func (s *PredictionResolver) score(ctx context.Context, p models.Prediction) error {
	if s.Scores != nil {
		gameID, predictionID := p.GameID, p.ID
		ev := ScoreEvent{
			UserID:       p.UserID,
			GameID:       &gameID,
			PredictionID: &predictionID,
			IsCorrect:    p.IsCorrect,
			Score:        p.Score,
		}
		if p.ResolvedAt != nil {
			ev.At = *p.ResolvedAt
		}
		if _, err := s.Scores.Apply(ctx, ev); err != nil {
			return err
		}
	}
	return s.Repo.MarkPredictionScored(ctx, p.ID, nowFrom(s.Clock))
}

func (s *PredictionResolver) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
