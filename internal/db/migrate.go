package db

import (
	"updown/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	if err := db.Gorm.AutoMigrate(
		&models.Game{},
		&models.Prediction{},
		&models.ScoreEntry{},
		&models.RankingRecord{},
		&models.AirdropRecord{},
		&models.SystemSetting{},
	); err != nil {
		return err
	}
	// Scheduler hot paths: due ACTIVE games, PENDING predictions per game,
	// unscored settled predictions and per-user settled history.
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_games_active_end ON games (end_time) WHERE status = 'ACTIVE'`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_pending_game ON predictions (game_id) WHERE status = 'PENDING'`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_unscored ON predictions (resolved_at) WHERE status <> 'PENDING' AND scored_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_resolved_user ON predictions (user_id, resolved_at) WHERE status <> 'PENDING'`,
	}
	for _, stmt := range stmts {
		if err := db.Gorm.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
