package service

import (
	"strings"

	"updown/internal/models"
)

// ActiveGamePolicy picks which ACTIVE games must be force-closed before a
// new game for symbol opens.
type ActiveGamePolicy interface {
	Name() string
	Conflicting(active []models.Game, symbol string) []models.Game
}

// GlobalSingleActiveGame allows one ACTIVE game system-wide regardless of
// symbol.
type GlobalSingleActiveGame struct{}

func (GlobalSingleActiveGame) Name() string { return "global" }

func (GlobalSingleActiveGame) Conflicting(active []models.Game, _ string) []models.Game {
	return active
}

// PerSymbolSingleActiveGame allows one ACTIVE game per symbol.
type PerSymbolSingleActiveGame struct{}

func (PerSymbolSingleActiveGame) Name() string { return "symbol" }

func (PerSymbolSingleActiveGame) Conflicting(active []models.Game, symbol string) []models.Game {
	out := make([]models.Game, 0, len(active))
	for _, g := range active {
		if strings.EqualFold(g.Symbol, symbol) {
			out = append(out, g)
		}
	}
	return out
}

func PolicyFromScope(scope string) ActiveGamePolicy {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "symbol", "per_symbol":
		return PerSymbolSingleActiveGame{}
	default:
		return GlobalSingleActiveGame{}
	}
}
