package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertGame(_ context.Context, item *models.Game) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGameID++
	item.ID = s.nextGameID
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	cp := *item
	s.games[item.ID] = &cp
	return nil
}

func (s *Store) GetGameByID(_ context.Context, id uint64) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *Store) filterGames(params repository.ListGamesParams) []models.Game {
	var out []models.Game
	for _, g := range s.games {
		if params.Status != nil && strings.TrimSpace(*params.Status) != "" && g.Status != strings.TrimSpace(*params.Status) {
			continue
		}
		if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" && g.Symbol != strings.ToUpper(strings.TrimSpace(*params.Symbol)) {
			continue
		}
		out = append(out, *g)
	}
	return out
}

func (s *Store) ListGames(_ context.Context, params repository.ListGamesParams) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.filterGames(params)
	sortByID(items, func(g models.Game) uint64 { return g.ID }, isAsc(params.Asc))
	return page(items, params.Limit, params.Offset, 50), nil
}

func (s *Store) CountGames(_ context.Context, params repository.ListGamesParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterGames(params))), nil
}

func (s *Store) activeGames(due func(models.Game) bool) []models.Game {
	var out []models.Game
	for _, g := range s.games {
		if g.Status == models.GameStatusActive && due(*g) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].EndTime.Before(out[j].EndTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListActiveGames(_ context.Context) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeGames(func(models.Game) bool { return true }), nil
}

func (s *Store) ListDueActiveGames(_ context.Context, now time.Time, limit int) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.activeGames(func(g models.Game) bool { return !g.EndTime.After(now) })
	return page(items, limit, 0, 200), nil
}

func (s *Store) ListCompletedGamesWithPending(_ context.Context, limit int) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make(map[uint64]bool)
	for _, p := range s.predictions {
		if p.Status == models.PredictionStatusPending {
			pending[p.GameID] = true
		}
	}
	var out []models.Game
	for _, g := range s.games {
		if g.Status == models.GameStatusCompleted && pending[g.ID] {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return page(out, limit, 0, 50), nil
}

func (s *Store) CompleteGame(_ context.Context, id uint64, endPrice decimal.Decimal, endTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok || g.Status != models.GameStatusActive {
		return false, nil
	}
	price := endPrice
	g.Status = models.GameStatusCompleted
	g.EndPrice = &price
	g.EndTime = endTime
	g.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) CancelGame(_ context.Context, id uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[id]
	if !ok || g.Status != models.GameStatusActive {
		return false, nil
	}
	g.Status = models.GameStatusCancelled
	g.EndTime = at
	g.UpdatedAt = s.now()
	return true, nil
}
