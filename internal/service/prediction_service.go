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

type SubmitPredictionInput struct {
	GameID     uint64  `json:"game_id"`
	UserID     string  `json:"user_id"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

type GameStatsView struct {
	Game          models.Game `json:"game"`
	Total         int64       `json:"total"`
	UpCount       int64       `json:"up_count"`
	DownCount     int64       `json:"down_count"`
	WinCount      int64       `json:"win_count"`
	LoseCount     int64       `json:"lose_count"`
	PendingCount  int64       `json:"pending_count"`
	UpRatio       float64     `json:"up_ratio"`
	AvgConfidence float64     `json:"avg_confidence"`
	AvgScore      float64     `json:"avg_score"`
}

type GameHistoryItem struct {
	Prediction models.Prediction `json:"prediction"`
	Game       *models.Game      `json:"game,omitempty"`
}

// PredictionService accepts predictions on ACTIVE games and serves the
// per-game and per-user read views.
type PredictionService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	Clock  func() time.Time
}

// SubmitPrediction records one call per (game, user) while the game is
// ACTIVE and before its end time.
func (s *PredictionService) SubmitPrediction(ctx context.Context, in SubmitPredictionInput) (*models.Prediction, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("prediction service not configured")
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	direction := strings.ToUpper(strings.TrimSpace(in.Direction))
	if direction != models.DirectionUp && direction != models.DirectionDown {
		return nil, fmt.Errorf("%w: direction must be UP or DOWN", ErrInvalidInput)
	}
	if in.Confidence < 0 || in.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence must be within 0..100", ErrInvalidInput)
	}

	game, err := s.Repo.GetGameByID(ctx, in.GameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %d", ErrNotFound, in.GameID)
	}
	now := nowFrom(s.Clock)
	if !game.IsActive() || !now.Before(game.EndTime) {
		return nil, fmt.Errorf("%w: game %d", ErrGameNotActive, game.ID)
	}

	item := &models.Prediction{
		GameID:      game.ID,
		UserID:      in.UserID,
		Direction:   direction,
		Confidence:  in.Confidence,
		SubmittedAt: now,
		Status:      models.PredictionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.InsertPrediction(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: user %s already predicted game %d", ErrDuplicatePrediction, in.UserID, game.ID)
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Debug("prediction submitted",
			zap.Uint64("game_id", game.ID),
			zap.Uint64("prediction_id", item.ID),
			zap.String("user_id", item.UserID),
			zap.String("direction", direction),
		)
	}
	return item, nil
}

func (s *PredictionService) GetGameStats(ctx context.Context, gameID uint64) (*GameStatsView, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNotFound
	}
	game, err := s.Repo.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %d", ErrNotFound, gameID)
	}
	stats, err := s.Repo.GameStats(ctx, gameID)
	if err != nil {
		return nil, err
	}
	view := &GameStatsView{
		Game:          *game,
		Total:         stats.Total,
		UpCount:       stats.UpCount,
		DownCount:     stats.DownCount,
		WinCount:      stats.WinCount,
		LoseCount:     stats.LoseCount,
		PendingCount:  stats.PendingCount,
		AvgConfidence: stats.AvgConfidence,
		AvgScore:      stats.AvgScore,
	}
	if stats.Total > 0 {
		view.UpRatio = float64(stats.UpCount) / float64(stats.Total)
	}
	return view, nil
}

// GetUserGameHistory pages the user's predictions newest first, each with
// its game. page is 1-based.
func (s *PredictionService) GetUserGameHistory(ctx context.Context, userID string, page, limit int) ([]GameHistoryItem, int64, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	params := repository.ListPredictionsParams{
		Limit:   limit,
		Offset:  (page - 1) * limit,
		UserID:  &userID,
		OrderBy: "submitted_at",
		Asc:     boolPtr(false),
	}
	predictions, err := s.Repo.ListPredictions(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountPredictions(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	games := make(map[uint64]*models.Game, len(predictions))
	out := make([]GameHistoryItem, 0, len(predictions))
	for _, p := range predictions {
		game, ok := games[p.GameID]
		if !ok {
			game, err = s.Repo.GetGameByID(ctx, p.GameID)
			if err != nil {
				return nil, 0, err
			}
			games[p.GameID] = game
		}
		out = append(out, GameHistoryItem{Prediction: p, Game: game})
	}
	return out, total, nil
}
