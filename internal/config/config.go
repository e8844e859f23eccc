package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Cache     CacheConfig     `mapstructure:"cache"`
	PriceFeed PriceFeedConfig `mapstructure:"price_feed"`
	Payout    PayoutConfig    `mapstructure:"payout"`
	Game      GameConfig      `mapstructure:"game"`
	Airdrop   AirdropConfig   `mapstructure:"airdrop"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	PaaS      PaaSConfig      `mapstructure:"paas"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// CronConfig holds robfig/cron specs (seconds field enabled).
type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	EndGames       string `mapstructure:"end_games"`
	AggregateDaily string `mapstructure:"aggregate_daily"`
	AggregateAll   string `mapstructure:"aggregate_all"`
	RecomputeRanks string `mapstructure:"recompute_ranks"`
	AirdropDaily   string `mapstructure:"airdrop_daily"`
	AirdropWeekly  string `mapstructure:"airdrop_weekly"`
	AirdropMonthly string `mapstructure:"airdrop_monthly"`
	CacheSweep     string `mapstructure:"cache_sweep"`
}

type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

type PriceFeedConfig struct {
	// Source is "binance" (stream with REST fallback), "rest" or "static".
	Source        string            `mapstructure:"source"`
	RESTEndpoint  string            `mapstructure:"rest_endpoint"`
	StreamURL     string            `mapstructure:"stream_url"`
	StreamSymbols []string          `mapstructure:"stream_symbols"`
	StreamMaxAge  time.Duration     `mapstructure:"stream_max_age"`
	CacheTTL      time.Duration     `mapstructure:"cache_ttl"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	StaticPrices  map[string]string `mapstructure:"static_prices"`
}

type PayoutConfig struct {
	// Mode is "http" or "noop".
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GameConfig struct {
	// SingleActiveScope is "global" or "symbol".
	SingleActiveScope string        `mapstructure:"single_active_scope"`
	DefaultDuration   time.Duration `mapstructure:"default_duration"`
	MinDuration       time.Duration `mapstructure:"min_duration"`
	MaxDuration       time.Duration `mapstructure:"max_duration"`
	CloseConcurrency  int           `mapstructure:"close_concurrency"`
	BatchLimit        int           `mapstructure:"batch_limit"`
	Symbols           []string      `mapstructure:"symbols"`
}

type AirdropConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type PaaSConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Agent   string `mapstructure:"agent"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UPDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.end_games", "*/5 * * * * *")
	v.SetDefault("cron.aggregate_daily", "0 */5 * * * *")
	v.SetDefault("cron.aggregate_all", "0 */15 * * * *")
	v.SetDefault("cron.recompute_ranks", "30 */5 * * * *")
	v.SetDefault("cron.airdrop_daily", "0 55 23 * * *")
	v.SetDefault("cron.airdrop_weekly", "0 15 0 * * 1")
	v.SetDefault("cron.airdrop_monthly", "0 30 0 1 * *")
	v.SetDefault("cron.cache_sweep", "@every 1m")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "updown:")

	v.SetDefault("price_feed.source", "binance")
	v.SetDefault("price_feed.rest_endpoint", "https://api.binance.com/api/v3/ticker/price")
	v.SetDefault("price_feed.stream_url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("price_feed.stream_symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("price_feed.stream_max_age", "10s")
	v.SetDefault("price_feed.cache_ttl", "1s")
	v.SetDefault("price_feed.timeout", "5s")

	v.SetDefault("payout.mode", "noop")
	v.SetDefault("payout.timeout", "15s")

	v.SetDefault("game.single_active_scope", "global")
	v.SetDefault("game.default_duration", "5m")
	v.SetDefault("game.min_duration", "30s")
	v.SetDefault("game.max_duration", "24h")
	v.SetDefault("game.close_concurrency", 4)
	v.SetDefault("game.batch_limit", 200)
	v.SetDefault("game.symbols", []string{"BTCUSDT", "ETHUSDT"})

	v.SetDefault("airdrop.concurrency", 8)
	v.SetDefault("airdrop.send_timeout", "20s")
	v.SetDefault("airdrop.lock_ttl", "2m")
	v.SetDefault("airdrop.stale_after", "10m")

	v.SetDefault("auth.issuer", "updown")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "updown")

	v.SetDefault("paas.agent", "updown-engine")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
