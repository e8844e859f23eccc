package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"updown/internal/models"
	"updown/internal/repository"
)

type ScoreEvent struct {
	UserID       string
	GameID       *uint64
	PredictionID *uint64
	IsCorrect    bool
	Score        float64
	// At stamps the ledger row; zero means now.
	At time.Time
}

type AdjustInput struct {
	UserID     string  `json:"user_id"`
	Points     float64 `json:"points"`
	ScoreType  string  `json:"score_type"`
	Multiplier float64 `json:"multiplier"`
}

// ScoreAccumulator owns the append-only score ledger. Each scoring event is
// its own CONFIRMED row; TotalPointsAfter carries the running total.
type ScoreAccumulator struct {
	Repo     repository.Repository
	Rankings *RankingAggregator
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Apply records one settled prediction. Wins append a ledger row keyed by
// prediction id; a repeat returns the existing row and changes nothing.
// Losses append nothing but still move the outcome counters. A repeat after
// a partial failure is followed by RankingAggregator.Reconcile.
func (s *ScoreAccumulator) Apply(ctx context.Context, ev ScoreEvent) (*models.ScoreEntry, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	ev.UserID = strings.TrimSpace(ev.UserID)
	if ev.UserID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}

	var entry *models.ScoreEntry
	if ev.IsCorrect && ev.Score > 0 {
		now := nowFrom(s.Clock)
		at := ev.At.UTC()
		if ev.At.IsZero() {
			at = now
		}
		item := &models.ScoreEntry{
			UserID:       ev.UserID,
			GameID:       ev.GameID,
			PredictionID: ev.PredictionID,
			ScoreType:    models.ScoreTypePredictionWin,
			Points:       ev.Score,
			Multiplier:   1,
			Status:       models.ScoreStatusConfirmed,
			ConfirmedAt:  &now,
			CreatedAt:    at,
		}
		err := s.Repo.InsertScoreEntry(ctx, item)
		if errors.Is(err, repository.ErrDuplicateKey) && ev.PredictionID != nil {
			return s.Repo.GetScoreEntryByPredictionID(ctx, *ev.PredictionID)
		}
		if err != nil {
			return nil, err
		}
		entry = item
		if s.Rankings != nil {
			for _, period := range models.Periods {
				if err := s.Rankings.UpdateUserRanking(ctx, ev.UserID, item.FinalPoints(), period); err != nil {
					return entry, err
				}
			}
		}
	}

	if s.Rankings != nil {
		if err := s.Rankings.RecordOutcome(ctx, ev.UserID, ev.IsCorrect); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// CurrentEntry returns the user's latest ledger row: Points is the latest
// delta and TotalPointsAfter the running total.
func (s *ScoreAccumulator) CurrentEntry(ctx context.Context, userID string) (*models.ScoreEntry, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNotFound
	}
	entry, err := s.Repo.GetLatestScoreEntry(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

// Adjust appends an administrative row. Penalties are always negative.
func (s *ScoreAccumulator) Adjust(ctx context.Context, in AdjustInput) (*models.ScoreEntry, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if in.Points == 0 {
		return nil, fmt.Errorf("%w: points must be non-zero", ErrInvalidInput)
	}
	switch in.ScoreType {
	case "":
		in.ScoreType = models.ScoreTypeAdminAdjustment
	case models.ScoreTypeAdminAdjustment, models.ScoreTypeAccuracyBonus, models.ScoreTypeStreakBonus, models.ScoreTypeSpeedBonus:
	case models.ScoreTypePenalty:
		if in.Points > 0 {
			in.Points = -in.Points
		}
	default:
		return nil, fmt.Errorf("%w: score type %q", ErrInvalidInput, in.ScoreType)
	}
	if in.Multiplier <= 0 {
		in.Multiplier = 1
	}

	now := nowFrom(s.Clock)
	item := &models.ScoreEntry{
		UserID:      in.UserID,
		ScoreType:   in.ScoreType,
		Points:      in.Points,
		Multiplier:  in.Multiplier,
		Status:      models.ScoreStatusConfirmed,
		ConfirmedAt: &now,
		CreatedAt:   now,
	}
	if err := s.Repo.InsertScoreEntry(ctx, item); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("score adjusted",
			zap.String("user_id", item.UserID),
			zap.String("score_type", item.ScoreType),
			zap.Float64("points", item.FinalPoints()),
			zap.Float64("total_points_after", item.TotalPointsAfter),
		)
	}
	if s.Rankings != nil {
		for _, period := range models.Periods {
			if err := s.Rankings.UpdateUserRanking(ctx, item.UserID, item.FinalPoints(), period); err != nil {
				return item, err
			}
		}
	}
	return item, nil
}

func (s *ScoreAccumulator) History(ctx context.Context, userID string, limit, offset int) ([]models.ScoreEntry, int64, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, nil
	}
	userID = strings.TrimSpace(userID)
	params := repository.ListScoreEntriesParams{Limit: limit, Offset: offset, UserID: &userID}
	items, err := s.Repo.ListScoreEntries(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountScoreEntries(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
