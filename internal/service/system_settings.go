package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"updown/internal/models"
	"updown/internal/repository"
)

const (
	FeatureEndGames       = "feature.end_games"
	FeatureAggregate      = "feature.aggregate"
	FeatureRecomputeRanks = "feature.recompute_ranks"
	FeatureAirdrop        = "feature.airdrop"
	FeatureCacheSweep     = "feature.cache_sweep"
	FeaturePriceStream    = "feature.price_stream"

	featurePrefix = "feature."
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureEndGames:       true,
		FeatureAggregate:      true,
		FeatureRecomputeRanks: true,
		FeatureAirdrop:        false, // moves funds, opt-in
		FeatureCacheSweep:     true,
		FeaturePriceStream:    true,
	}
}

type SystemSettingsService struct {
	Repo  repository.Repository
	Clock func() time.Time
}

// EnsureDefaultSwitches writes missing switches with their default. Stored
// values are never changed.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := nowFrom(s.Clock)
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, featurePrefix) {
		return fmt.Errorf("%w: %q is not a feature switch", ErrInvalidInput, key)
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   nowFrom(s.Clock),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

func (s *SystemSettingsService) List(ctx context.Context) ([]models.SystemSetting, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	prefix := featurePrefix
	return s.Repo.ListSystemSettings(ctx, repository.ListSystemSettingsParams{Limit: 500, Prefix: &prefix})
}
