package service

import (
	"context"
	"errors"
	"testing"

	"updown/internal/repository/memory"
)

func TestSystemSettingsSwitches(t *testing.T) {
	ctx := context.Background()
	svc := &SystemSettingsService{Repo: memory.New()}

	if svc.IsEnabled(ctx, FeatureAirdrop, true) != true {
		t.Fatalf("missing switch should use fallback")
	}
	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if svc.IsEnabled(ctx, FeatureAirdrop, true) {
		t.Fatalf("airdrop should default off")
	}
	if !svc.IsEnabled(ctx, FeatureEndGames, false) {
		t.Fatalf("end games should default on")
	}

	if err := svc.SetEnabled(ctx, FeatureAirdrop, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if !svc.IsEnabled(ctx, FeatureAirdrop, false) {
		t.Fatalf("ensure must not reset a stored switch")
	}

	if err := svc.SetEnabled(ctx, "db.password", true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("non-feature key err=%v want ErrInvalidInput", err)
	}
	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != len(DefaultFeatureSwitches()) {
		t.Fatalf("list len=%d want %d", len(items), len(DefaultFeatureSwitches()))
	}
}

func TestNilSystemSettingsFallsBack(t *testing.T) {
	var svc *SystemSettingsService
	if !svc.IsEnabled(context.Background(), FeatureEndGames, true) {
		t.Fatalf("nil service should return fallback")
	}
}
