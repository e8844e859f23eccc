package models

import (
	"math"
	"time"
)

const (
	ScoreTypePredictionWin   = "prediction-win"
	ScoreTypeAccuracyBonus   = "accuracy-bonus"
	ScoreTypeStreakBonus     = "streak-bonus"
	ScoreTypeSpeedBonus      = "speed-bonus"
	ScoreTypePenalty         = "penalty"
	ScoreTypeAdminAdjustment = "admin-adjustment"

	ScoreStatusPending   = "PENDING"
	ScoreStatusConfirmed = "CONFIRMED"
	ScoreStatusCancelled = "CANCELLED"
	ScoreStatusDisputed  = "DISPUTED"
)

// ScoreEntry is an append-only ledger row. TotalPointsAfter is the user's
// running total including this row.
type ScoreEntry struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string  `gorm:"type:varchar(100);not null;index" json:"user_id"`
	GameID       *uint64 `gorm:"index" json:"game_id,omitempty"`
	PredictionID *uint64 `gorm:"uniqueIndex" json:"prediction_id,omitempty"`

	ScoreType        string  `gorm:"type:varchar(30);not null;index" json:"score_type"`
	Points           float64 `gorm:"type:numeric(20,4);not null" json:"points"`
	TotalPointsAfter float64 `gorm:"type:numeric(20,4);not null" json:"total_points_after"`
	Multiplier       float64 `gorm:"type:numeric(10,4);not null;default:1" json:"multiplier"`

	Status      string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ConfirmedAt *time.Time `gorm:"type:timestamptz" json:"confirmed_at,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (ScoreEntry) TableName() string {
	return "score_entries"
}

func (e ScoreEntry) FinalPoints() float64 {
	if e.Multiplier == 0 || e.Multiplier == 1 {
		return e.Points
	}
	return math.Round(e.Points * e.Multiplier)
}
