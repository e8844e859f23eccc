package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertGame(ctx context.Context, item *models.Game) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetGameByID(ctx context.Context, id uint64) (*models.Game, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.Game
	err := s.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) gamesQuery(ctx context.Context, params repository.ListGamesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Game{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	return query
}

func (s *Store) ListGames(ctx context.Context, params repository.ListGamesParams) ([]models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(s.gamesQuery(ctx, params), params.OrderBy, params.Asc, "created_at")
	var items []models.Game
	if err := query.Limit(normalizeLimit(params.Limit, 50)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountGames(ctx context.Context, params repository.ListGamesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.gamesQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListActiveGames(ctx context.Context) ([]models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Game
	if err := s.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("status = ?", models.GameStatusActive).
		Order("end_time asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListDueActiveGames(ctx context.Context, now time.Time, limit int) ([]models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var items []models.Game
	if err := s.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("status = ?", models.GameStatusActive).
		Where("end_time <= ?", now).
		Order("end_time asc, id asc").
		Limit(normalizeLimit(limit, 200)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListCompletedGamesWithPending(ctx context.Context, limit int) ([]models.Game, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Game
	if err := s.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("status = ?", models.GameStatusCompleted).
		Where("EXISTS (SELECT 1 FROM predictions p WHERE p.game_id = games.id AND p.status = ?)", models.PredictionStatusPending).
		Order("end_time asc").
		Limit(normalizeLimit(limit, 50)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CompleteGame(ctx context.Context, id uint64, endPrice decimal.Decimal, endTime time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", id).
		Where("status = ?", models.GameStatusActive).
		Updates(map[string]any{
			"status":     models.GameStatusCompleted,
			"end_price":  endPrice,
			"end_time":   endTime,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) CancelGame(ctx context.Context, id uint64, at time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", id).
		Where("status = ?", models.GameStatusActive).
		Updates(map[string]any{
			"status":     models.GameStatusCancelled,
			"end_time":   at,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}
