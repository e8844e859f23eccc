package memory

import (
	"context"
	"sort"
	"strings"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) findRanking(userID, period string) *models.RankingRecord {
	for _, r := range s.rankings {
		if r.UserID == userID && r.Period == period {
			return r
		}
	}
	return nil
}

func (s *Store) InsertRankingRecord(_ context.Context, item *models.RankingRecord) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findRanking(item.UserID, item.Period) != nil {
		return repository.ErrDuplicateKey
	}
	s.nextRankingID++
	item.ID = s.nextRankingID
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.AirdropStatus == "" {
		item.AirdropStatus = models.AirdropStatusPending
	}
	cp := *item
	s.rankings[item.ID] = &cp
	return nil
}

func (s *Store) GetRankingRecord(_ context.Context, userID string, period string) (*models.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.findRanking(strings.TrimSpace(userID), period)
	if r == nil {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// sortByScore orders by total score desc, then created_at asc, then user id.
func sortByScore(items []models.RankingRecord) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})
}

func (s *Store) ListRankingRecordsByPeriod(_ context.Context, period string) ([]models.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RankingRecord
	for _, r := range s.rankings {
		if r.Period == period {
			out = append(out, *r)
		}
	}
	sortByScore(out)
	return out, nil
}

func (s *Store) ListRankingRecordsByUser(_ context.Context, userID string) ([]models.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = strings.TrimSpace(userID)
	var out []models.RankingRecord
	for _, r := range s.rankings {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) filterRankings(params repository.ListRankingsParams) []models.RankingRecord {
	period := strings.TrimSpace(params.Period)
	var out []models.RankingRecord
	for _, r := range s.rankings {
		if period != "" && r.Period != period {
			continue
		}
		out = append(out, *r)
	}
	return out
}

func (s *Store) ListRankings(_ context.Context, params repository.ListRankingsParams) ([]models.RankingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.filterRankings(params)
	sortByScore(items)
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Rank, items[j].Rank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	return page(items, params.Limit, params.Offset, 100), nil
}

func (s *Store) CountRankings(_ context.Context, params repository.ListRankingsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterRankings(params))), nil
}

func (s *Store) IncrementRankingScore(_ context.Context, userID string, period string, delta float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.findRanking(strings.TrimSpace(userID), period)
	if r == nil {
		return false, nil
	}
	r.TotalScore += delta
	r.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) RecordRankingOutcome(_ context.Context, userID string, period string, win bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.findRanking(strings.TrimSpace(userID), period)
	if r == nil {
		return false, nil
	}
	if win {
		r.WinCount++
		r.CurrentStreak++
		if r.CurrentStreak > r.BestStreak {
			r.BestStreak = r.CurrentStreak
		}
	} else {
		r.LoseCount++
		r.CurrentStreak = 0
	}
	r.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) UpdateRanks(_ context.Context, period string, ranks map[uint64]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, rank := range ranks {
		r, ok := s.rankings[id]
		if !ok || r.Period != period {
			continue
		}
		r.Rank = rank
		r.UpdatedAt = now
	}
	return nil
}

func (s *Store) UpdateRankingAirdrop(_ context.Context, userID string, period string, update repository.RankingAirdropUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.findRanking(strings.TrimSpace(userID), period)
	if r == nil {
		return nil
	}
	r.AirdropStatus = update.Status
	r.AirdropAmount = update.Amount
	r.AirdropRetryCount = update.RetryCount
	r.UpdatedAt = s.now()
	return nil
}

func (s *Store) SetRankingOutcomes(_ context.Context, userID string, period string, outcomes repository.RankingOutcomes) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.findRanking(strings.TrimSpace(userID), period)
	if r == nil {
		return false, nil
	}
	r.WinCount = outcomes.WinCount
	r.LoseCount = outcomes.LoseCount
	r.CurrentStreak = outcomes.CurrentStreak
	r.BestStreak = outcomes.BestStreak
	r.UpdatedAt = s.now()
	return true, nil
}
