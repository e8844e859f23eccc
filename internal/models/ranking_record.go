package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAll     = "all"

	AirdropStatusPending    = "PENDING"
	AirdropStatusProcessing = "PROCESSING"
	AirdropStatusCompleted  = "COMPLETED"
	AirdropStatusFailed     = "FAILED"
)

// Periods lists every ranking period in a stable order.
var Periods = []string{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAll}

func ValidPeriod(period string) bool {
	for _, p := range Periods {
		if p == period {
			return true
		}
	}
	return false
}

type RankingRecord struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID string `gorm:"type:varchar(100);not null;uniqueIndex:idx_ranking_user_period" json:"user_id"`
	Period string `gorm:"type:varchar(10);not null;uniqueIndex:idx_ranking_user_period;index" json:"period"`

	TotalScore    float64 `gorm:"type:numeric(20,4);not null;default:0;index" json:"total_score"`
	Rank          int     `gorm:"not null;default:0;index" json:"rank"`
	WinCount      int     `gorm:"not null;default:0" json:"win_count"`
	LoseCount     int     `gorm:"not null;default:0" json:"lose_count"`
	CurrentStreak int     `gorm:"not null;default:0" json:"current_streak"`
	BestStreak    int     `gorm:"not null;default:0" json:"best_streak"`

	AirdropStatus     string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"airdrop_status"`
	AirdropAmount     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"airdrop_amount"`
	AirdropRetryCount int             `gorm:"not null;default:0" json:"airdrop_retry_count"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (RankingRecord) TableName() string {
	return "ranking_records"
}

func (r RankingRecord) WinRate() float64 {
	total := r.WinCount + r.LoseCount
	if total == 0 {
		return 0
	}
	return float64(r.WinCount) / float64(total)
}
