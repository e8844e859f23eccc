package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"updown/internal/models"
	"updown/internal/repository"
)

func (s *Store) InsertAirdropRecord(_ context.Context, item *models.AirdropRecord) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.airdrops {
		if a.Period == item.Period && a.PeriodKey == item.PeriodKey && a.UserID == item.UserID {
			return repository.ErrDuplicateKey
		}
		if item.IdempotencyKey != "" && a.IdempotencyKey == item.IdempotencyKey {
			return repository.ErrDuplicateKey
		}
	}
	s.nextAirdropID++
	item.ID = s.nextAirdropID
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = models.AirdropStatusPending
	}
	cp := *item
	s.airdrops[item.ID] = &cp
	return nil
}

func (s *Store) GetAirdropRecordByID(_ context.Context, id uint64) (*models.AirdropRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.airdrops[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAirdropRecord(_ context.Context, period, periodKey, userID string) (*models.AirdropRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = strings.TrimSpace(userID)
	for _, a := range s.airdrops {
		if a.Period == period && a.PeriodKey == periodKey && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ClaimAirdropRecord(_ context.Context, id uint64, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.airdrops[id]
	if !ok {
		return false, nil
	}
	switch a.Status {
	case models.AirdropStatusPending, models.AirdropStatusFailed:
	case models.AirdropStatusProcessing:
		if !a.UpdatedAt.Before(staleBefore) {
			return false, nil
		}
	default:
		return false, nil
	}
	a.Status = models.AirdropStatusProcessing
	a.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) CompleteAirdropRecord(_ context.Context, id uint64, txHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.airdrops[id]
	if !ok || a.Status != models.AirdropStatusProcessing {
		return nil
	}
	hash := txHash
	completedAt := at
	a.Status = models.AirdropStatusCompleted
	a.TxHash = &hash
	a.CompletedAt = &completedAt
	a.LastError = ""
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) FailAirdropRecord(_ context.Context, id uint64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.airdrops[id]
	if !ok || a.Status != models.AirdropStatusProcessing {
		return nil
	}
	a.Status = models.AirdropStatusFailed
	a.RetryCount++
	a.LastError = reason
	a.UpdatedAt = s.now()
	return nil
}

func (s *Store) filterAirdrops(params repository.ListAirdropParams) []models.AirdropRecord {
	match := func(filter *string, value string) bool {
		return filter == nil || strings.TrimSpace(*filter) == "" || strings.TrimSpace(*filter) == value
	}
	var out []models.AirdropRecord
	for _, a := range s.airdrops {
		if !match(params.Period, a.Period) || !match(params.PeriodKey, a.PeriodKey) ||
			!match(params.Status, a.Status) || !match(params.UserID, a.UserID) {
			continue
		}
		out = append(out, *a)
	}
	return out
}

func (s *Store) ListAirdropRecords(_ context.Context, params repository.ListAirdropParams) ([]models.AirdropRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.filterAirdrops(params)
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return page(items, params.Limit, params.Offset, 100), nil
}

func (s *Store) CountAirdropRecords(_ context.Context, params repository.ListAirdropParams) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterAirdrops(params))), nil
}
