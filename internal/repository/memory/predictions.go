package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertPrediction(_ context.Context, item *models.Prediction) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.predictions {
		if p.GameID == item.GameID && p.UserID == item.UserID {
			return repository.ErrDuplicateKey
		}
	}
	s.nextPredictionID++
	item.ID = s.nextPredictionID
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	cp := *item
	s.predictions[item.ID] = &cp
	return nil
}

func (s *Store) GetPredictionByID(_ context.Context, id uint64) (*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetPredictionByGameAndUser(_ context.Context, gameID uint64, userID string) (*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = strings.TrimSpace(userID)
	for _, p := range s.predictions {
		if p.GameID == gameID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListPendingPredictionsByGame(_ context.Context, gameID uint64) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Prediction
	for _, p := range s.predictions {
		if p.GameID == gameID && p.Status == models.PredictionStatusPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) filterPredictions(params repository.ListPredictionsParams) []models.Prediction {
	var out []models.Prediction
	for _, p := range s.predictions {
		if params.GameID != nil && *params.GameID > 0 && p.GameID != *params.GameID {
			continue
		}
		if params.UserID != nil && strings.TrimSpace(*params.UserID) != "" && p.UserID != strings.TrimSpace(*params.UserID) {
			continue
		}
		if params.Status != nil && strings.TrimSpace(*params.Status) != "" && p.Status != strings.TrimSpace(*params.Status) {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func (s *Store) ListPredictions(_ context.Context, params repository.ListPredictionsParams) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.filterPredictions(params)
	sortByID(items, func(p models.Prediction) uint64 { return p.ID }, isAsc(params.Asc))
	return page(items, params.Limit, params.Offset, 50), nil
}

func (s *Store) CountPredictions(_ context.Context, params repository.ListPredictionsParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterPredictions(params))), nil
}

func (s *Store) ResolvePrediction(_ context.Context, id uint64, update repository.PredictionResolution) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[id]
	if !ok || p.Status != models.PredictionStatusPending {
		return false, nil
	}
	resolvedAt := update.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = s.now()
	}
	endPrice := update.EndPrice
	p.Status = update.Status
	p.IsCorrect = update.IsCorrect
	p.Score = update.Score
	p.EndPrice = &endPrice
	p.ResolvedAt = &resolvedAt
	p.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) GameStats(_ context.Context, gameID uint64) (repository.GameStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out repository.GameStats
	var confidence, score float64
	var resolved int64
	for _, p := range s.predictions {
		if p.GameID != gameID {
			continue
		}
		out.Total++
		confidence += p.Confidence
		switch p.Direction {
		case models.DirectionUp:
			out.UpCount++
		case models.DirectionDown:
			out.DownCount++
		}
		switch p.Status {
		case models.PredictionStatusWin:
			out.WinCount++
		case models.PredictionStatusLose:
			out.LoseCount++
		default:
			out.PendingCount++
		}
		if p.Status != models.PredictionStatusPending {
			resolved++
			score += p.Score
		}
	}
	if out.Total > 0 {
		out.AvgConfidence = confidence / float64(out.Total)
	}
	if resolved > 0 {
		out.AvgScore = score / float64(resolved)
	}
	return out, nil
}

func (s *Store) MarkPredictionScored(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[id]
	if !ok || p.ScoredAt != nil {
		return nil
	}
	if at.IsZero() {
		at = s.now()
	}
	p.ScoredAt = &at
	p.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListUnscoredPredictions(_ context.Context, resolvedBefore time.Time, limit int) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Prediction
	for _, p := range s.predictions {
		if !p.IsResolved() || p.ScoredAt != nil || p.ResolvedAt == nil || !p.ResolvedAt.Before(resolvedBefore) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ResolvedAt.Equal(*out[j].ResolvedAt) {
			return out[i].ResolvedAt.Before(*out[j].ResolvedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0, 200), nil
}

func (s *Store) ListResolvedPredictions(_ context.Context, since *time.Time) ([]models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Prediction
	for _, p := range s.predictions {
		if !p.IsResolved() || p.ResolvedAt == nil {
			continue
		}
		if since != nil && p.ResolvedAt.Before(*since) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.ResolvedAt.Equal(*b.ResolvedAt) {
			return a.ResolvedAt.Before(*b.ResolvedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}
