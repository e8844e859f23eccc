package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertAirdropRecord(ctx context.Context, item *models.AirdropRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetAirdropRecordByID(ctx context.Context, id uint64) (*models.AirdropRecord, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.AirdropRecord
	err := s.db.WithContext(ctx).Model(&models.AirdropRecord{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetAirdropRecord(ctx context.Context, period, periodKey, userID string) (*models.AirdropRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.AirdropRecord
	err := s.db.WithContext(ctx).
		Model(&models.AirdropRecord{}).
		Where("period = ?", period).
		Where("period_key = ?", periodKey).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ClaimAirdropRecord(ctx context.Context, id uint64, staleBefore time.Time) (bool, error) {
	if s == nil || s.db == nil || id == 0 {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.AirdropRecord{}).
		Where("id = ?", id).
		Where("status IN ? OR (status = ? AND updated_at < ?)",
			[]string{models.AirdropStatusPending, models.AirdropStatusFailed},
			models.AirdropStatusProcessing, staleBefore).
		Updates(map[string]any{
			"status":     models.AirdropStatusProcessing,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (s *Store) CompleteAirdropRecord(ctx context.Context, id uint64, txHash string, at time.Time) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.AirdropRecord{}).
		Where("id = ?", id).
		Where("status = ?", models.AirdropStatusProcessing).
		Updates(map[string]any{
			"status":       models.AirdropStatusCompleted,
			"tx_hash":      txHash,
			"completed_at": at,
			"last_error":   "",
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (s *Store) FailAirdropRecord(ctx context.Context, id uint64, reason string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.AirdropRecord{}).
		Where("id = ?", id).
		Where("status = ?", models.AirdropStatusProcessing).
		Updates(map[string]any{
			"status":      models.AirdropStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  reason,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (s *Store) airdropQuery(ctx context.Context, params repository.ListAirdropParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.AirdropRecord{})
	if params.Period != nil && strings.TrimSpace(*params.Period) != "" {
		query = query.Where("period = ?", strings.TrimSpace(*params.Period))
	}
	if params.PeriodKey != nil && strings.TrimSpace(*params.PeriodKey) != "" {
		query = query.Where("period_key = ?", strings.TrimSpace(*params.PeriodKey))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	return query
}

func (s *Store) ListAirdropRecords(ctx context.Context, params repository.ListAirdropParams) ([]models.AirdropRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.AirdropRecord
	if err := s.airdropQuery(ctx, params).
		Order("created_at desc, id desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAirdropRecords(ctx context.Context, params repository.ListAirdropParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.airdropQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
