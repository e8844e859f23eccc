package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"updown/internal/models"
	"updown/internal/repository"
)

const finalPointsExpr = "CASE WHEN multiplier IN (0, 1) THEN points ELSE ROUND(points * multiplier) END"

func (s *Store) InsertScoreEntry(ctx context.Context, item *models.ScoreEntry) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.UserID = strings.TrimSpace(item.UserID)
	if item.UserID == "" {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes ledger appends per user so TotalPointsAfter never forks.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", item.UserID).Error; err != nil {
			return err
		}
		var latest models.ScoreEntry
		err := tx.Model(&models.ScoreEntry{}).
			Where("user_id = ?", item.UserID).
			Order("id desc").
			Limit(1).
			First(&latest).Error
		prev := 0.0
		switch {
		case err == gorm.ErrRecordNotFound:
		case err != nil:
			return err
		default:
			prev = latest.TotalPointsAfter
		}
		item.TotalPointsAfter = prev + item.FinalPoints()
		return tx.Create(item).Error
	})
	return translate(err)
}

func (s *Store) GetLatestScoreEntry(ctx context.Context, userID string) (*models.ScoreEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var item models.ScoreEntry
	err := s.db.WithContext(ctx).
		Model(&models.ScoreEntry{}).
		Where("user_id = ?", userID).
		Order("id desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetScoreEntryByPredictionID(ctx context.Context, predictionID uint64) (*models.ScoreEntry, error) {
	if s == nil || s.db == nil || predictionID == 0 {
		return nil, nil
	}
	var item models.ScoreEntry
	err := s.db.WithContext(ctx).Model(&models.ScoreEntry{}).Where("prediction_id = ?", predictionID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) scoreEntriesQuery(ctx context.Context, params repository.ListScoreEntriesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ScoreEntry{})
	if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" {
		query = query.Where("user_id = ?", strings.TrimSpace(*params.UserID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}
	return query
}

func (s *Store) ListScoreEntries(ctx context.Context, params repository.ListScoreEntriesParams) ([]models.ScoreEntry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ScoreEntry
	if err := s.scoreEntriesQuery(ctx, params).
		Order("id desc").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountScoreEntries(ctx context.Context, params repository.ListScoreEntriesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.scoreEntriesQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) SumPointsByUser(ctx context.Context, since *time.Time) ([]repository.UserPointsSum, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.ScoreEntry{}).
		Select("user_id, COALESCE(SUM(" + finalPointsExpr + "), 0) AS points").
		Where("status = ?", models.ScoreStatusConfirmed)
	if since != nil && !since.IsZero() {
		query = query.Where("created_at >= ?", since.UTC())
	}
	var out []repository.UserPointsSum
	if err := query.Group("user_id").Order("user_id asc").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
