package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"

	PredictionStatusPending = "PENDING"
	PredictionStatusWin     = "WIN"
	PredictionStatusLose    = "LOSE"
)

type Prediction struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID uint64 `gorm:"not null;uniqueIndex:idx_prediction_game_user;index" json:"game_id"`
	UserID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_prediction_game_user;index" json:"user_id"`

	Direction string `gorm:"type:varchar(10);not null" json:"direction"`
	// Confidence is the 0-100 accuracy figure the user submits with the call.
	Confidence  float64   `gorm:"not null;default:0" json:"confidence"`
	SubmittedAt time.Time `gorm:"type:timestamptz;not null" json:"submitted_at"`

	Status    string           `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`
	IsCorrect bool             `gorm:"not null;default:false" json:"is_correct"`
	Score     float64          `gorm:"type:numeric(20,4);not null;default:0" json:"score"`
	EndPrice  *decimal.Decimal `gorm:"type:numeric(30,10)" json:"end_price,omitempty"`

	ResolvedAt *time.Time `gorm:"type:timestamptz" json:"resolved_at,omitempty"`
	// ScoredAt is set once the ledger and ranking writes for the settled
	// prediction went through. Settled rows without it are rescored.
	ScoredAt   *time.Time `gorm:"type:timestamptz" json:"scored_at,omitempty"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Prediction) TableName() string {
	return "predictions"
}

func (p Prediction) IsResolved() bool {
	return p.Status == PredictionStatusWin || p.Status == PredictionStatusLose
}
