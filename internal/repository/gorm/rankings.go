package gormrepository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"updown/internal/models"
	"updown/internal/repository"
)

const rankBatchSize = 500

func (s *Store) InsertRankingRecord(ctx context.Context, item *models.RankingRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetRankingRecord(ctx context.Context, userID string, period string) (*models.RankingRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var item models.RankingRecord
	err := s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("user_id = ?", userID).
		Where("period = ?", period).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRankingRecordsByPeriod(ctx context.Context, period string) ([]models.RankingRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RankingRecord
	if err := s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("period = ?", period).
		Order("total_score desc, created_at asc, user_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListRankingRecordsByUser(ctx context.Context, userID string) ([]models.RankingRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.RankingRecord
	if err := s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) rankingsQuery(ctx context.Context, params repository.ListRankingsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.RankingRecord{})
	if strings.TrimSpace(params.Period) != "" {
		query = query.Where("period = ?", strings.TrimSpace(params.Period))
	}
	return query
}

func (s *Store) ListRankings(ctx context.Context, params repository.ListRankingsParams) ([]models.RankingRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.rankingsQuery(ctx, params)
	if strings.TrimSpace(params.OrderBy) == "" {
		// Unranked rows (rank 0) sort last.
		query = query.Order("rank = 0 asc, rank asc, total_score desc")
	} else {
		query = applyOrder(query, params.OrderBy, params.Asc, "rank")
	}
	var items []models.RankingRecord
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRankings(ctx context.Context, params repository.ListRankingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.rankingsQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) IncrementRankingScore(ctx context.Context, userID string, period string, delta float64) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("period = ?", period).
		Updates(map[string]any{
			"total_score": gorm.Expr("total_score + ?", delta),
			"updated_at":  time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) RecordRankingOutcome(ctx context.Context, userID string, period string, win bool) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if win {
		updates["win_count"] = gorm.Expr("win_count + 1")
		updates["current_streak"] = gorm.Expr("current_streak + 1")
		updates["best_streak"] = gorm.Expr("GREATEST(best_streak, current_streak + 1)")
	} else {
		updates["lose_count"] = gorm.Expr("lose_count + 1")
		updates["current_streak"] = 0
	}
	res := s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("period = ?", period).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) UpdateRanks(ctx context.Context, period string, ranks map[uint64]int) error {
	if s == nil || s.db == nil || len(ranks) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(ranks))
	for id := range ranks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(ids); start += rankBatchSize {
			end := start + rankBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			chunk := ids[start:end]
			values := make([]string, 0, len(chunk))
			args := make([]any, 0, len(chunk)*2+2)
			args = append(args, now)
			for _, id := range chunk {
				values = append(values, "(?::bigint, ?::int)")
				args = append(args, id, ranks[id])
			}
			args = append(args, period)
			sql := fmt.Sprintf(
				"UPDATE ranking_records AS r SET rank = v.rank, updated_at = ? FROM (VALUES %s) AS v(id, rank) WHERE r.id = v.id AND r.period = ?",
				strings.Join(values, ","),
			)
			if err := tx.Exec(sql, args...).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UpdateRankingAirdrop(ctx context.Context, userID string, period string, update repository.RankingAirdropUpdate) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("period = ?", period).
		Updates(map[string]any{
			"airdrop_status":      update.Status,
			"airdrop_amount":      update.Amount,
			"airdrop_retry_count": update.RetryCount,
			"updated_at":          time.Now().UTC(),
		}).Error
}

func (s *Store) SetRankingOutcomes(ctx context.Context, userID string, period string, outcomes repository.RankingOutcomes) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.RankingRecord{}).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Where("period = ?", period).
		Updates(map[string]any{
			"win_count":      outcomes.WinCount,
			"lose_count":     outcomes.LoseCount,
			"current_streak": outcomes.CurrentStreak,
			"best_streak":    outcomes.BestStreak,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}
