package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	GameStatusActive    = "ACTIVE"
	GameStatusCompleted = "COMPLETED"
	GameStatusCancelled = "CANCELLED"
)

// Game is one timed prediction round. EndPrice stays nil until the
// ACTIVE -> COMPLETED transition.
type Game struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol string `gorm:"type:varchar(30);not null;index" json:"symbol"`

	StartTime time.Time     `gorm:"type:timestamptz;not null" json:"start_time"`
	EndTime   time.Time     `gorm:"type:timestamptz;not null;index" json:"end_time"`
	Duration  time.Duration `gorm:"not null" json:"duration"`

	StartPrice decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"start_price"`
	EndPrice   *decimal.Decimal `gorm:"type:numeric(30,10)" json:"end_price,omitempty"`

	Status    string `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedBy string `gorm:"type:varchar(100)" json:"created_by"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Game) TableName() string {
	return "games"
}

func (g Game) IsActive() bool {
	return g.Status == GameStatusActive
}
