package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
)

var (
	// ErrDuplicateKey is returned when a unique key (game+user prediction,
	// ledger prediction id, airdrop period+user, ranking user+period) exists.
	ErrDuplicateKey = errors.New("duplicate key")
)

// GameRepository owns persistence of games. CompleteGame and CancelGame are
// conditional on status = ACTIVE and report whether this call made the
// transition.
type GameRepository interface {
	InsertGame(ctx context.Context, item *models.Game) error
	GetGameByID(ctx context.Context, id uint64) (*models.Game, error)
	ListGames(ctx context.Context, params ListGamesParams) ([]models.Game, error)
	CountGames(ctx context.Context, params ListGamesParams) (int64, error)
	ListActiveGames(ctx context.Context) ([]models.Game, error)
	ListDueActiveGames(ctx context.Context, now time.Time, limit int) ([]models.Game, error)
	ListCompletedGamesWithPending(ctx context.Context, limit int) ([]models.Game, error)
	CompleteGame(ctx context.Context, id uint64, endPrice decimal.Decimal, endTime time.Time) (bool, error)
	CancelGame(ctx context.Context, id uint64, at time.Time) (bool, error)
}

type PredictionRepository interface {
	InsertPrediction(ctx context.Context, item *models.Prediction) error
	GetPredictionByID(ctx context.Context, id uint64) (*models.Prediction, error)
	GetPredictionByGameAndUser(ctx context.Context, gameID uint64, userID string) (*models.Prediction, error)
	ListPendingPredictionsByGame(ctx context.Context, gameID uint64) ([]models.Prediction, error)
	ListPredictions(ctx context.Context, params ListPredictionsParams) ([]models.Prediction, error)
	CountPredictions(ctx context.Context, params ListPredictionsParams) (int64, error)
	// ResolvePrediction applies the update only while status = PENDING.
	ResolvePrediction(ctx context.Context, id uint64, update PredictionResolution) (bool, error)
	MarkPredictionScored(ctx context.Context, id uint64, at time.Time) error
	// ListUnscoredPredictions returns settled predictions without ScoredAt
	// that were resolved before resolvedBefore, oldest first.
	ListUnscoredPredictions(ctx context.Context, resolvedBefore time.Time, limit int) ([]models.Prediction, error)
	// ListResolvedPredictions returns settled predictions resolved at or
	// after since (all when nil), ordered by user, resolved_at, id.
	ListResolvedPredictions(ctx context.Context, since *time.Time) ([]models.Prediction, error)
	GameStats(ctx context.Context, gameID uint64) (GameStats, error)
}

type ScoreRepository interface {
	// InsertScoreEntry computes TotalPointsAfter from the user's latest row
	// inside the same write.
	InsertScoreEntry(ctx context.Context, item *models.ScoreEntry) error
	GetLatestScoreEntry(ctx context.Context, userID string) (*models.ScoreEntry, error)
	GetScoreEntryByPredictionID(ctx context.Context, predictionID uint64) (*models.ScoreEntry, error)
	ListScoreEntries(ctx context.Context, params ListScoreEntriesParams) ([]models.ScoreEntry, error)
	CountScoreEntries(ctx context.Context, params ListScoreEntriesParams) (int64, error)
	SumPointsByUser(ctx context.Context, since *time.Time) ([]UserPointsSum, error)
}

type RankingRepository interface {
	InsertRankingRecord(ctx context.Context, item *models.RankingRecord) error
	GetRankingRecord(ctx context.Context, userID string, period string) (*models.RankingRecord, error)
	ListRankingRecordsByPeriod(ctx context.Context, period string) ([]models.RankingRecord, error)
	ListRankingRecordsByUser(ctx context.Context, userID string) ([]models.RankingRecord, error)
	ListRankings(ctx context.Context, params ListRankingsParams) ([]models.RankingRecord, error)
	CountRankings(ctx context.Context, params ListRankingsParams) (int64, error)
	IncrementRankingScore(ctx context.Context, userID string, period string, delta float64) (bool, error)
	RecordRankingOutcome(ctx context.Context, userID string, period string, win bool) (bool, error)
	SetRankingOutcomes(ctx context.Context, userID string, period string, outcomes RankingOutcomes) (bool, error)
	UpdateRanks(ctx context.Context, period string, ranks map[uint64]int) error
	UpdateRankingAirdrop(ctx context.Context, userID string, period string, update RankingAirdropUpdate) error
}

type AirdropRepository interface {
	InsertAirdropRecord(ctx context.Context, item *models.AirdropRecord) error
	GetAirdropRecordByID(ctx context.Context, id uint64) (*models.AirdropRecord, error)
	GetAirdropRecord(ctx context.Context, period, periodKey, userID string) (*models.AirdropRecord, error)
	// ClaimAirdropRecord moves PENDING/FAILED (or PROCESSING last touched
	// before staleBefore) to PROCESSING.
	ClaimAirdropRecord(ctx context.Context, id uint64, staleBefore time.Time) (bool, error)
	CompleteAirdropRecord(ctx context.Context, id uint64, txHash string, at time.Time) error
	FailAirdropRecord(ctx context.Context, id uint64, reason string) error
	ListAirdropRecords(ctx context.Context, params ListAirdropParams) ([]models.AirdropRecord, error)
	CountAirdropRecords(ctx context.Context, params ListAirdropParams) (int64, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// Repository is the unified store the engine is wired against.
type Repository interface {
	GameRepository
	PredictionRepository
	ScoreRepository
	RankingRepository
	AirdropRepository
	SettingsRepository
}

type ListGamesParams struct {
	Limit   int
	Offset  int
	Status  *string
	Symbol  *string
	OrderBy string
	Asc     *bool
}

type ListPredictionsParams struct {
	Limit   int
	Offset  int
	GameID  *uint64
	UserID  *string
	Status  *string
	OrderBy string
	Asc     *bool
}

type ListScoreEntriesParams struct {
	Limit  int
	Offset int
	UserID *string
	Since  *time.Time
}

type ListRankingsParams struct {
	Limit   int
	Offset  int
	Period  string
	OrderBy string
	Asc     *bool
}

type ListAirdropParams struct {
	Limit     int
	Offset    int
	Period    *string
	PeriodKey *string
	Status    *string
	UserID    *string
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

type PredictionResolution struct {
	Status     string
	IsCorrect  bool
	Score      float64
	EndPrice   decimal.Decimal
	ResolvedAt time.Time
}

type RankingOutcomes struct {
	WinCount      int
	LoseCount     int
	CurrentStreak int
	BestStreak    int
}

type RankingAirdropUpdate struct {
	Status     string
	Amount     decimal.Decimal
	RetryCount int
}

type UserPointsSum struct {
	UserID string
	Points float64
}

type GameStats struct {
	Total         int64
	UpCount       int64
	DownCount     int64
	WinCount      int64
	LoseCount     int64
	PendingCount  int64
	AvgConfidence float64
	AvgScore      float64
}
