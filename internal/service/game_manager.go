package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"updown/internal/config"
	"updown/internal/models"
	"updown/internal/observability"
	"updown/internal/paas"
	"updown/internal/pricefeed"
	"updown/internal/repository"
)

type CreateGameInput struct {
	Symbol   string        `json:"symbol"`
	Duration time.Duration `json:"duration"`
	UserID   string        `json:"user_id"`
}

// GameManager owns the game lifecycle ACTIVE -> COMPLETED | CANCELLED.
// Closing is guarded by a storage compare-and-set on status, so concurrent
// closers of one game resolve its predictions once.
type GameManager struct {
	Repo     repository.Repository
	Feed     pricefeed.Feed
	Resolver *PredictionResolver
	Policy   ActiveGamePolicy
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Audit    *paas.Client
	Config   config.GameConfig
	// PriceTimeout bounds one price lookup.
	PriceTimeout time.Duration
	Clock        func() time.Time

	group    singleflight.Group
	createMu sync.Mutex
}

// CreateGame force-closes the games the active policy conflicts with, then
// opens a new ACTIVE game at the current price. A conflicting game whose
// end price cannot be fetched is CANCELLED instead.
func (s *GameManager) CreateGame(ctx context.Context, in CreateGameInput) (*models.Game, error) {
	if s == nil || s.Repo == nil || s.Feed == nil {
		return nil, errors.New("game manager not configured")
	}
	symbol := pricefeed.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidInput)
	}
	if !s.symbolAllowed(symbol) {
		return nil, fmt.Errorf("%w: symbol %s not offered", ErrInvalidInput, symbol)
	}
	duration, err := s.duration(in.Duration)
	if err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	active, err := s.Repo.ListActiveGames(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range s.policy().Conflicting(active, symbol) {
		if _, err := s.CloseGame(ctx, g.ID); err != nil {
			if !errors.Is(err, ErrPriceUnavailable) {
				return nil, err
			}
			if err := s.cancel(ctx, g, "price unavailable on force close"); err != nil {
				return nil, err
			}
		}
	}

	sample, err := s.fetchPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	now := nowFrom(s.Clock)
	game := &models.Game{
		Symbol:     symbol,
		StartTime:  now,
		EndTime:    now.Add(duration),
		Duration:   duration,
		StartPrice: sample.Price,
		Status:     models.GameStatusActive,
		CreatedBy:  strings.TrimSpace(in.UserID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.InsertGame(ctx, game); err != nil {
		return nil, err
	}
	s.Metrics.GameCreated(symbol)
	if s.Logger != nil {
		s.Logger.Info("game created",
			zap.Uint64("game_id", game.ID),
			zap.String("symbol", symbol),
			zap.String("start_price", game.StartPrice.String()),
			zap.Time("end_time", game.EndTime),
			zap.String("policy", s.policy().Name()),
		)
	}
	s.Audit.Record("game_create", "info", map[string]any{
		"game_id":     game.ID,
		"symbol":      symbol,
		"start_price": game.StartPrice.String(),
		"duration":    duration.String(),
		"created_by":  game.CreatedBy,
	})
	return game, nil
}

// CloseGame completes an ACTIVE game at the current price and resolves its
// predictions. Calling it on a game that is no longer ACTIVE returns the
// stored game unchanged.
func (s *GameManager) CloseGame(ctx context.Context, id uint64) (*models.Game, error) {
	closed, err := s.closeShared(ctx, id)
	if err != nil {
		return nil, err
	}
	return closed.game, nil
}

// closeOutcome is what one close flight hands to every caller sharing it.
type closeOutcome struct {
	game *models.Game
	// failed counts predictions whose settling or scoring did not finish.
	failed int
}

func (s *GameManager) closeShared(ctx context.Context, id uint64) (closeOutcome, error) {
	if s == nil || s.Repo == nil {
		return closeOutcome{}, ErrNotFound
	}
	// Callers join one flight, so no caller's cancellation may abort it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(strconv.FormatUint(id, 10), func() (any, error) {
		return s.closeGame(flightCtx, id)
	})
	if err != nil {
		return closeOutcome{}, err
	}
	out := v.(closeOutcome)
	cp := *out.game
	out.game = &cp
	return out, nil
}

func (s *GameManager) closeGame(ctx context.Context, id uint64) (closeOutcome, error) {
	game, err := s.Repo.GetGameByID(ctx, id)
	if err != nil {
		return closeOutcome{}, err
	}
	if game == nil {
		return closeOutcome{}, fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if !game.IsActive() {
		return closeOutcome{game: game}, nil
	}
	if s.Feed == nil {
		return closeOutcome{}, fmt.Errorf("%w: no price feed", ErrPriceUnavailable)
	}

	sample, err := s.fetchPrice(ctx, game.Symbol)
	if err != nil {
		return closeOutcome{}, err
	}
	now := nowFrom(s.Clock)
	won, err := s.Repo.CompleteGame(ctx, game.ID, sample.Price, now)
	if err != nil {
		return closeOutcome{}, err
	}
	stored, err := s.Repo.GetGameByID(ctx, game.ID)
	if err != nil {
		return closeOutcome{}, err
	}
	if stored == nil {
		return closeOutcome{}, fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if !won {
		return closeOutcome{game: stored}, nil
	}

	s.Metrics.GameClosed(models.GameStatusCompleted)
	summary, err := s.Resolver.ResolveGame(ctx, *stored)
	if err != nil {
		// The game stays COMPLETED; recovery picks up its PENDING rows.
		summary.Failed++
		s.logWarn("game resolve failed", err, zap.Uint64("game_id", stored.ID))
	}
	if s.Logger != nil {
		s.Logger.Info("game closed",
			zap.Uint64("game_id", stored.ID),
			zap.String("symbol", stored.Symbol),
			zap.String("start_price", stored.StartPrice.String()),
			zap.String("end_price", sample.Price.String()),
			zap.Int("resolved", summary.Resolved),
			zap.Int("wins", summary.Wins),
			zap.Int("losses", summary.Losses),
			zap.Int("failed", summary.Failed),
		)
	}
	s.Audit.Record("game_close", levelForFailures(summary.Failed), map[string]any{
		"game_id":   stored.ID,
		"symbol":    stored.Symbol,
		"end_price": sample.Price.String(),
		"resolved":  summary.Resolved,
		"wins":      summary.Wins,
		"losses":    summary.Losses,
		"failed":    summary.Failed,
	})
	return closeOutcome{game: stored, failed: summary.Failed}, nil
}

// CancelGame moves an ACTIVE game to CANCELLED without a price. Its
// predictions stay PENDING and never score.
func (s *GameManager) CancelGame(ctx context.Context, id uint64) (*models.Game, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNotFound
	}
	game, err := s.Repo.GetGameByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	if !game.IsActive() {
		return nil, fmt.Errorf("%w: game %d is %s", ErrGameNotActive, id, game.Status)
	}
	if err := s.cancel(ctx, *game, "cancelled by operator"); err != nil {
		return nil, err
	}
	return s.Repo.GetGameByID(ctx, id)
}

func (s *GameManager) cancel(ctx context.Context, game models.Game, reason string) error {
	ok, err := s.Repo.CancelGame(ctx, game.ID, nowFrom(s.Clock))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.Metrics.GameClosed(models.GameStatusCancelled)
	if s.Logger != nil {
		s.Logger.Warn("game cancelled", zap.Uint64("game_id", game.ID), zap.String("symbol", game.Symbol), zap.String("reason", reason))
	}
	s.Audit.Record("game_cancel", "warn", map[string]any{
		"game_id": game.ID,
		"symbol":  game.Symbol,
		"reason":  reason,
	})
	return nil
}

// EndActiveGames closes every ACTIVE game regardless of its end time.
// A game whose price cannot be fetched stays ACTIVE and is reported as
// failed; the others still close.
func (s *GameManager) EndActiveGames(ctx context.Context) (*BatchResult, error) {
	if s == nil || s.Repo == nil {
		return &BatchResult{}, nil
	}
	games, err := s.Repo.ListActiveGames(ctx)
	if err != nil {
		return nil, err
	}
	return s.endGames(ctx, games), nil
}

// EndDueGames closes ACTIVE games whose end time has passed.
func (s *GameManager) EndDueGames(ctx context.Context) (*BatchResult, error) {
	if s == nil || s.Repo == nil {
		return &BatchResult{}, nil
	}
	games, err := s.Repo.ListDueActiveGames(ctx, nowFrom(s.Clock), s.batchLimit())
	if err != nil {
		return nil, err
	}
	return s.endGames(ctx, games), nil
}

func (s *GameManager) endGames(ctx context.Context, games []models.Game) *BatchResult {
	result := &BatchResult{Items: make([]BatchItem, 0, len(games))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.closeConcurrency())
	for _, game := range games {
		game := game
		g.Go(func() error {
			item := BatchItem{ID: game.ID, Key: game.Symbol, Status: BatchStatusSucceeded}
			closed, err := s.closeShared(gctx, game.ID)
			switch {
			case err != nil:
				item.Status = BatchStatusFailed
				item.Error = err.Error()
				s.logWarn("game close failed", err, zap.Uint64("game_id", game.ID), zap.String("symbol", game.Symbol))
			case closed.failed > 0:
				// COMPLETED, but some predictions wait for RecoverStranded.
				item.Status = BatchStatusFailed
				item.Error = fmt.Sprintf("%d predictions not settled or scored", closed.failed)
			case closed.game.Status != models.GameStatusCompleted:
				item.Status = BatchStatusSkipped
			}
			result.add(item)
			return nil
		})
	}
	_ = g.Wait()

	result.merge(s.RecoverStranded(ctx))
	s.refreshActiveGauge(ctx)
	return result
}

// RecoverStranded resolves PENDING predictions left on COMPLETED games by
// a crash between the close and the resolution, then retries scoring of
// settled predictions whose ledger or ranking writes failed.
func (s *GameManager) RecoverStranded(ctx context.Context) *BatchResult {
	result := &BatchResult{}
	if s == nil || s.Repo == nil || s.Resolver == nil {
		return result
	}
	games, err := s.Repo.ListCompletedGamesWithPending(ctx, s.batchLimit())
	if err != nil {
		s.logWarn("list stranded games failed", err)
		games = nil
	}
	for _, game := range games {
		summary, err := s.Resolver.ResolveGame(ctx, game)
		item := BatchItem{ID: game.ID, Key: "recover:" + game.Symbol, Status: BatchStatusSucceeded}
		if err != nil {
			item.Status = BatchStatusFailed
			item.Error = err.Error()
		} else if summary.Failed > 0 {
			item.Status = BatchStatusFailed
			item.Error = fmt.Sprintf("%d predictions failed", summary.Failed)
		}
		result.add(item)
		if s.Logger != nil {
			s.Logger.Info("stranded game recovered", zap.Uint64("game_id", game.ID), zap.Int("resolved", summary.Resolved), zap.Int("failed", summary.Failed))
		}
	}
	result.merge(s.Resolver.RescoreUnscored(ctx, s.batchLimit()))
	return result
}

func (s *GameManager) GetGame(ctx context.Context, id uint64) (*models.Game, error) {
	if s == nil || s.Repo == nil {
		return nil, ErrNotFound
	}
	game, err := s.Repo.GetGameByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: game %d", ErrNotFound, id)
	}
	return game, nil
}

func (s *GameManager) ListGames(ctx context.Context, params repository.ListGamesParams) ([]models.Game, int64, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, nil
	}
	items, err := s.Repo.ListGames(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountGames(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *GameManager) ActiveGames(ctx context.Context) ([]models.Game, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	return s.Repo.ListActiveGames(ctx)
}

func (s *GameManager) fetchPrice(ctx context.Context, symbol string) (pricefeed.Sample, error) {
	timeout := s.PriceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sample, err := s.Feed.CurrentPrice(cctx, symbol)
	if err == nil && !sample.Price.IsPositive() {
		err = fmt.Errorf("non-positive price %s", sample.Price.String())
	}
	if err != nil {
		s.Metrics.PriceFeedError(symbol)
		return pricefeed.Sample{}, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, symbol, err)
	}
	return sample, nil
}

func (s *GameManager) refreshActiveGauge(ctx context.Context) {
	if s.Metrics == nil {
		return
	}
	active, err := s.Repo.ListActiveGames(ctx)
	if err != nil {
		return
	}
	s.Metrics.SetActiveGames(len(active))
}

func (s *GameManager) duration(d time.Duration) (time.Duration, error) {
	if d == 0 {
		d = s.Config.DefaultDuration
		if d <= 0 {
			d = 5 * time.Minute
		}
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if s.Config.MinDuration > 0 && d < s.Config.MinDuration {
		return 0, fmt.Errorf("%w: duration %s below %s", ErrInvalidInput, d, s.Config.MinDuration)
	}
	if s.Config.MaxDuration > 0 && d > s.Config.MaxDuration {
		return 0, fmt.Errorf("%w: duration %s above %s", ErrInvalidInput, d, s.Config.MaxDuration)
	}
	return d, nil
}

func (s *GameManager) symbolAllowed(symbol string) bool {
	if len(s.Config.Symbols) == 0 {
		return true
	}
	for _, allowed := range s.Config.Symbols {
		if pricefeed.NormalizeSymbol(allowed) == symbol {
			return true
		}
	}
	return false
}

func (s *GameManager) policy() ActiveGamePolicy {
	if s.Policy != nil {
		return s.Policy
	}
	return GlobalSingleActiveGame{}
}

func (s *GameManager) closeConcurrency() int {
	if s.Config.CloseConcurrency <= 0 {
		return 4
	}
	return s.Config.CloseConcurrency
}

func (s *GameManager) batchLimit() int {
	if s.Config.BatchLimit <= 0 {
		return 200
	}
	return s.Config.BatchLimit
}

func (s *GameManager) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
