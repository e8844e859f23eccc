package memory

import (
	"sort"
	"sync"
	"time"

	"updown/internal/models"
	"updown/internal/repository"
)

// Store is an in-memory implementation of repository.Repository. A single
// lock guards every table so conditional transitions are atomic the same
// way the SQL WHERE status = ? guards are.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	games       map[uint64]*models.Game
	predictions map[uint64]*models.Prediction
	scores      []*models.ScoreEntry
	rankings    map[uint64]*models.RankingRecord
	airdrops    map[uint64]*models.AirdropRecord
	settings    map[string]*models.SystemSetting

	nextGameID       uint64
	nextPredictionID uint64
	nextScoreID      uint64
	nextRankingID    uint64
	nextAirdropID    uint64
	nextSettingID    uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:         func() time.Time { return time.Now().UTC() },
		games:       make(map[uint64]*models.Game),
		predictions: make(map[uint64]*models.Prediction),
		rankings:    make(map[uint64]*models.RankingRecord),
		airdrops:    make(map[uint64]*models.AirdropRecord),
		settings:    make(map[string]*models.SystemSetting),
	}
}

// WithClock replaces the clock used for CreatedAt/UpdatedAt defaults.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func page[T any](items []T, limit, offset, fallback int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + normalizeLimit(limit, fallback)
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func isAsc(asc *bool) bool {
	return asc != nil && *asc
}

func sortByID[T any](items []T, id func(T) uint64, asc bool) {
	sort.Slice(items, func(i, j int) bool {
		if asc {
			return id(items[i]) < id(items[j])
		}
		return id(items[i]) > id(items[j])
	})
}

var _ repository.Repository = (*Store)(nil)
