package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"updown/internal/auth"
	"updown/internal/cache"
	"updown/internal/config"
	cronrunner "updown/internal/cron"
	"updown/internal/db"
	"updown/internal/handler"
	"updown/internal/logger"
	"updown/internal/observability"
	"updown/internal/paas"
	"updown/internal/payout"
	"updown/internal/pricefeed"
	"updown/internal/repository"
	gormrepository "updown/internal/repository/gorm"
	"updown/internal/repository/memory"
	"updown/internal/scheduler"
	"updown/internal/service"

	_ "updown/docs"
)

func main() {
	cfgPath := os.Getenv("UPDOWN_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("UPDOWN_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	checks := map[string]func(context.Context) error{}

	var store repository.Repository
	if strings.EqualFold(cfg.DB.Driver, "memory") {
		logger.Warn("using in-memory store; state is lost on restart")
		store = memory.New()
	} else {
		dbConn, err := db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if cfg.DB.AutoMigrate {
			if err := db.AutoMigrate(dbConn); err != nil {
				logger.Fatal("auto-migrate failed", zap.Error(err))
			}
		}
		store = gormrepository.New(dbConn.Gorm)
		checks["db"] = func(ctx context.Context) error { return dbConn.SQL.PingContext(ctx) }
	}

	var kv cache.Store
	var sweeper scheduler.Sweeper
	if strings.EqualFold(cfg.Cache.Driver, "redis") {
		rs := cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, cfg.Cache.KeyPrefix)
		defer rs.Close()
		kv = rs
		checks["redis"] = rs.Ping
	} else {
		ms := cache.NewMemoryStore()
		kv = ms
		sweeper = ms
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	paasClient := initPaaSClient(cfg.PaaS, logger)

	feed, stream, err := buildFeed(cfg.PriceFeed, kv, logger)
	if err != nil {
		logger.Fatal("price feed init failed", zap.Error(err))
	}

	var sender payout.Sender = payout.Noop{}
	if strings.EqualFold(cfg.Payout.Mode, "http") {
		sender = &payout.HTTPSender{
			BaseURL: cfg.Payout.BaseURL,
			APIKey:  cfg.Payout.APIKey,
			HTTP:    &http.Client{Timeout: cfg.Payout.Timeout},
		}
	} else {
		logger.Warn("payout mode noop; airdrops are recorded but not transferred")
	}

	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}
	rankings := &service.RankingAggregator{Repo: store, Logger: logger}
	scores := &service.ScoreAccumulator{Repo: store, Rankings: rankings, Logger: logger}
	resolver := &service.PredictionResolver{
		Repo:     store,
		Scores:   scores,
		Rankings: rankings,
		Logger:   logger,
		Metrics:  metrics,
	}
	games := &service.GameManager{
		Repo:         store,
		Feed:         feed,
		Resolver:     resolver,
		Policy:       service.PolicyFromScope(cfg.Game.SingleActiveScope),
		Logger:       logger,
		Metrics:      metrics,
		Audit:        paasClient,
		Config:       cfg.Game,
		PriceTimeout: cfg.PriceFeed.Timeout,
	}
	predictions := &service.PredictionService{Repo: store, Logger: logger}
	airdrops := &service.AirdropDistributor{
		Repo:     store,
		Rankings: rankings,
		Sender:   sender,
		Locks:    kv,
		Logger:   logger,
		Metrics:  metrics,
		Audit:    paasClient,
		Config:   cfg.Airdrop,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(paas.AuditWriteMiddleware(paasClient))

	router := &handler.Router{
		Games:    &handler.GameHandler{Games: games, Predictions: predictions},
		Players:  &handler.PlayerHandler{Predictions: predictions, Scores: scores, Rankings: rankings},
		Rankings: &handler.RankingHandler{Rankings: rankings},
		Airdrops: &handler.AirdropHandler{Airdrops: airdrops},
		Admin:    &handler.AdminHandler{Scores: scores, Settings: settingsSvc},
		Health:   &handler.HealthHandler{Checks: checks},
		JWT: auth.JWT{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			TokenTTL: cfg.Auth.TokenTTL,
		},
	}
	if !router.JWT.Enabled() {
		logger.Warn("auth.jwt_secret empty; api routes are unauthenticated")
	}
	router.Mount(engine)
	paas.RegisterDocs(engine)
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if stream != nil && settingsSvc.IsEnabled(ctx, service.FeaturePriceStream, true) {
		go func() {
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("price stream stopped", zap.Error(err))
			}
		}()
	}

	var observer cronrunner.Observer
	if metrics != nil {
		observer = metrics.ObserveJob
	}
	cronRunner := cronrunner.New(logger, ctx, observer)
	if cfg.Cron.Enabled {
		jobs := &scheduler.Jobs{
			Games:    games,
			Rankings: rankings,
			Airdrops: airdrops,
			Flags:    settingsSvc,
			Sweeper:  sweeper,
			Audit:    paasClient,
			Logger:   logger,
		}
		if err := jobs.Register(cronRunner, cfg.Cron); err != nil {
			logger.Warn("cron register failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildFeed assembles the price feed for source. The returned stream is
// non-nil when a websocket stream must be run.
func buildFeed(cfg config.PriceFeedConfig, kv cache.Store, logger *zap.Logger) (pricefeed.Feed, *pricefeed.Stream, error) {
	rest := &pricefeed.BinanceREST{
		HTTP:     &http.Client{Timeout: cfg.Timeout},
		Logger:   logger,
		Endpoint: cfg.RESTEndpoint,
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "static":
		static, err := pricefeed.NewStatic(cfg.StaticPrices)
		if err != nil {
			return nil, nil, err
		}
		return static, nil, nil
	case "rest":
		return &pricefeed.Cached{Feed: rest, Store: kv, TTL: cfg.CacheTTL, Logger: logger}, nil, nil
	default:
		stream := pricefeed.NewStream(pricefeed.StreamOptions{
			URL:     cfg.StreamURL,
			Symbols: cfg.StreamSymbols,
			MaxAge:  cfg.StreamMaxAge,
			Logger:  logger,
		})
		cached := &pricefeed.Cached{Feed: rest, Store: kv, TTL: cfg.CacheTTL, Logger: logger}
		return &pricefeed.Fallback{Feeds: []pricefeed.Feed{stream, cached}, Logger: logger}, stream, nil
	}
}

func initPaaSClient(cfg config.PaaSConfig, logger *zap.Logger) *paas.Client {
	base := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if base == "" || apiKey == "" {
		return nil
	}

	p := &paas.Client{BaseURL: base, APIKey: apiKey, Agent: cfg.Agent, Logger: logger}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		logger.Warn("paas login failed (audit log disabled)", zap.Error(err))
		return nil
	}
	logger.Info("paas login ok")
	return p
}
