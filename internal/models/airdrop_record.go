package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AirdropRecord is one payout per (period, period key, user). The
// idempotency key is stable across retries so the payout gateway can
// dedupe a transfer that was sent but never acknowledged.
type AirdropRecord struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Period    string `gorm:"type:varchar(10);not null;uniqueIndex:idx_airdrop_period_user;index" json:"period"`
	PeriodKey string `gorm:"type:varchar(30);not null;uniqueIndex:idx_airdrop_period_user" json:"period_key"`
	UserID    string `gorm:"type:varchar(100);not null;uniqueIndex:idx_airdrop_period_user;index" json:"user_id"`

	Rank   int             `gorm:"not null" json:"rank"`
	Tier   int             `gorm:"not null;index" json:"tier"`
	Amount decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`

	Status         string  `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	IdempotencyKey string  `gorm:"type:varchar(64);not null;uniqueIndex" json:"idempotency_key"`
	TxHash         *string `gorm:"type:varchar(130)" json:"tx_hash,omitempty"`
	RetryCount     int     `gorm:"not null;default:0" json:"retry_count"`
	LastError      string  `gorm:"type:text" json:"last_error,omitempty"`

	Details datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`

	CompletedAt *time.Time `gorm:"type:timestamptz" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (AirdropRecord) TableName() string {
	return "airdrop_records"
}
