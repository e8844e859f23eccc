package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertPrediction(ctx context.Context, item *models.Prediction) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetPredictionByID(ctx context.Context, id uint64) (*models.Prediction, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Prediction
	err := s.db.WithContext(ctx).Model(&models.Prediction{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPredictionByGameAndUser(ctx context.Context, gameID uint64, userID string) (*models.Prediction, error) {
	if s == nil || s.db == nil || gameID == 0 {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var item models.Prediction
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("game_id = ?", gameID).
		Where("user_id = ?", userID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPendingPredictionsByGame(ctx context.Context, gameID uint64) ([]models.Prediction, error) {
	if s == nil || s.db == nil || gameID == 0 {
		return nil, nil
	}
	var items []models.Prediction
	if err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("game_id = ?", gameID).
		Where("status = ?", models.PredictionStatusPending).
		Order("submitted_at asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) predictionsQuery(ctx context.Context, params repository.ListPredictionsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Prediction{})
	if params.GameID != nil && *params.GameID > 0 {
		query = query.Where("game_id = ?", *params.GameID)
	}
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	return query
}

func (s *Store) ListPredictions(ctx context.Context, params repository.ListPredictionsParams) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(s.predictionsQuery(ctx, params), params.OrderBy, params.Asc, "submitted_at")
	var items []models.Prediction
	if err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPredictions(ctx context.Context, params repository.ListPredictionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.predictionsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ResolvePrediction(ctx context.Context, id uint64, update repository.PredictionResolution) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	resolvedAt := update.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ?", id).
		Where("status = ?", models.PredictionStatusPending).
		Updates(map[string]any{
			"status":      update.Status,
			"is_correct":  update.IsCorrect,
			"score":       update.Score,
			"end_price":   update.EndPrice,
			"resolved_at": resolvedAt,
			"updated_at":  time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) GameStats(ctx context.Context, gameID uint64) (repository.GameStats, error) {
	var out repository.GameStats
	if s == nil || s.db == nil || gameID == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Select(`
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE direction = 'UP') AS up_count,
			COUNT(*) FILTER (WHERE direction = 'DOWN') AS down_count,
			COUNT(*) FILTER (WHERE status = 'WIN') AS win_count,
			COUNT(*) FILTER (WHERE status = 'LOSE') AS lose_count,
			COUNT(*) FILTER (WHERE status = 'PENDING') AS pending_count,
			COALESCE(AVG(confidence), 0) AS avg_confidence,
			COALESCE(AVG(score) FILTER (WHERE status <> 'PENDING'), 0) AS avg_score
		`).
		Where("game_id = ?", gameID).
		Scan(&out).Error
	return out, err
}

func (s *Store) MarkPredictionScored(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("id = ?", id).
		Where("scored_at IS NULL").
		Updates(map[string]any{
			"scored_at":  at,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (s *Store) ListUnscoredPredictions(ctx context.Context, resolvedBefore time.Time, limit int) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Prediction
	if err := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Where("status <> ?", models.PredictionStatusPending).
		Where("scored_at IS NULL").
		Where("resolved_at < ?", resolvedBefore).
		Order("resolved_at asc, id asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListResolvedPredictions(ctx context.Context, since *time.Time) ([]models.Prediction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Prediction{}).
		Select("id, game_id, user_id, status, is_correct, score, resolved_at").
		Where("status <> ?", models.PredictionStatusPending).
		Where("resolved_at IS NOT NULL")
	if since != nil {
		query = query.Where("resolved_at >= ?", *since)
	}
	var items []models.Prediction
	if err := query.Order("user_id asc, resolved_at asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
