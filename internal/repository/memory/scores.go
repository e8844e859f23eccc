package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertScoreEntry(_ context.Context, item *models.ScoreEntry) error {
	if item == nil || strings.TrimSpace(item.UserID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item.UserID = strings.TrimSpace(item.UserID)
	prev := 0.0
	for i := len(s.scores) - 1; i >= 0; i-- {
		e := s.scores[i]
		if item.PredictionID != nil && e.PredictionID != nil && *e.PredictionID == *item.PredictionID {
			return repository.ErrDuplicateKey
		}
	}
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].UserID == item.UserID {
			prev = s.scores[i].TotalPointsAfter
			break
		}
	}
	s.nextScoreID++
	item.ID = s.nextScoreID
	item.TotalPointsAfter = prev + item.FinalPoints()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	cp := *item
	s.scores = append(s.scores, &cp)
	return nil
}

func (s *Store) GetLatestScoreEntry(_ context.Context, userID string) (*models.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = strings.TrimSpace(userID)
	for i := len(s.scores) - 1; i >= 0; i-- {
		if s.scores[i].UserID == userID {
			cp := *s.scores[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetScoreEntryByPredictionID(_ context.Context, predictionID uint64) (*models.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.scores {
		if e.PredictionID != nil && *e.PredictionID == predictionID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) filterScores(params repository.ListScoreEntriesParams) []models.ScoreEntry {
	var out []models.ScoreEntry
	for i := len(s.scores) - 1; i >= 0; i-- {
		e := s.scores[i]
		if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" && e.UserID != strings.TrimSpace(*params.UserID) {
			continue
		}
		if params.Since != nil && !params.Since.IsZero() && e.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func (s *Store) ListScoreEntries(_ context.Context, params repository.ListScoreEntriesParams) ([]models.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.filterScores(params), params.Limit, params.Offset, 50), nil
}

func (s *Store) CountScoreEntries(_ context.Context, params repository.ListScoreEntriesParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterScores(params))), nil
}

func (s *Store) SumPointsByUser(_ context.Context, since *time.Time) ([]repository.UserPointsSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]float64)
	for _, e := range s.scores {
		if e.Status != models.ScoreStatusConfirmed {
			continue
		}
		if since != nil && !since.IsZero() && e.CreatedAt.Before(*since) {
			continue
		}
		sums[e.UserID] += e.FinalPoints()
	}
	out := make([]repository.UserPointsSum, 0, len(sums))
	for userID, points := range sums {
		out = append(out, repository.UserPointsSum{UserID: userID, Points: points})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
