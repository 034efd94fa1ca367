package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Sync         SyncConfig
	Auction      AuctionConfig
	Reconcile    ReconcileConfig
	Marketplaces MarketplacesConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	TrustedProxies    []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// WebhookSecret enables HMAC verification of inbound webhook
	// notifications when non-empty
	WebhookSecret string
}

// SyncConfig holds reconciliation engine configuration
type SyncConfig struct {
	MaxConcurrentTargets int
	AdapterTimeout       time.Duration
	EventTTL             time.Duration
}

// AuctionConfig holds auction lifecycle configuration
type AuctionConfig struct {
	Enabled         bool
	PollInterval    time.Duration
	MonitorHorizon  time.Duration
	RelistStrategy  string // auction, fixed_price, abandon
	PriceAdjustment float64
}

// ReconcileConfig holds the periodic consistency sweep configuration
type ReconcileConfig struct {
	Enabled       bool
	CheckInterval time.Duration
	MaxConcurrent int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled           bool    // export traces to an OTLP collector
	CollectorEndpoint string  // collector endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0, 1.0 samples every trace
	ServiceName       string
	Insecure          bool // non-TLS collector connection (development only)
	DBTraceEnabled    bool // trace database queries via otelgorm
	DBLogFullSQL      bool // include query variables in spans (dev only)
}

// MarketplacesConfig holds per-marketplace adapter settings
type MarketplacesConfig struct {
	Ebay         MarketplaceConfig
	YahooAuction MarketplaceConfig
	Mercari      MarketplaceConfig
}

// MarketplaceConfig holds connection settings for one marketplace API
type MarketplaceConfig struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	APISecret      string
	Timeout        time.Duration
	RatePerSecond  float64
	RateBurst      int
	MaxRespBodyLen int64
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with RESELL_ prefix (e.g., RESELL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("RESELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			WebhookSecret:     v.GetString("http.webhook_secret"),
		},
		Sync: SyncConfig{
			MaxConcurrentTargets: v.GetInt("sync.max_concurrent_targets"),
			AdapterTimeout:       v.GetDuration("sync.adapter_timeout"),
			EventTTL:             v.GetDuration("sync.event_ttl"),
		},
		Auction: AuctionConfig{
			Enabled:         v.GetBool("auction.enabled"),
			PollInterval:    v.GetDuration("auction.poll_interval"),
			MonitorHorizon:  v.GetDuration("auction.monitor_horizon"),
			RelistStrategy:  v.GetString("auction.relist_strategy"),
			PriceAdjustment: v.GetFloat64("auction.price_adjustment"),
		},
		Reconcile: ReconcileConfig{
			Enabled:       v.GetBool("reconcile.enabled"),
			CheckInterval: v.GetDuration("reconcile.check_interval"),
			MaxConcurrent: v.GetInt("reconcile.max_concurrent"),
			JobTimeout:    v.GetDuration("reconcile.job_timeout"),
			RetryAttempts: v.GetInt("reconcile.retry_attempts"),
			RetryDelay:    v.GetDuration("reconcile.retry_delay"),
		},
		Marketplaces: MarketplacesConfig{
			Ebay:         loadMarketplace(v, "marketplaces.ebay"),
			YahooAuction: loadMarketplace(v, "marketplaces.yahoo_auction"),
			Mercari:      loadMarketplace(v, "marketplaces.mercari"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadMarketplace(v *viper.Viper, key string) MarketplaceConfig {
	return MarketplaceConfig{
		Enabled:        v.GetBool(key + ".enabled"),
		BaseURL:        v.GetString(key + ".base_url"),
		APIKey:         v.GetString(key + ".api_key"),
		APISecret:      v.GetString(key + ".api_secret"),
		Timeout:        v.GetDuration(key + ".timeout"),
		RatePerSecond:  v.GetFloat64(key + ".rate_per_second"),
		RateBurst:      v.GetInt(key + ".rate_burst"),
		MaxRespBodyLen: v.GetInt64(key + ".max_resp_body_len"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "resell-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "resell"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB, webhook payloads are small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Sync.MaxConcurrentTargets == 0 {
		cfg.Sync.MaxConcurrentTargets = 4
	}
	if cfg.Sync.AdapterTimeout == 0 {
		cfg.Sync.AdapterTimeout = 15 * time.Second
	}
	if cfg.Sync.EventTTL == 0 {
		cfg.Sync.EventTTL = 24 * time.Hour
	}
	if cfg.Auction.PollInterval == 0 {
		cfg.Auction.PollInterval = 5 * time.Minute
	}
	if cfg.Auction.MonitorHorizon == 0 {
		cfg.Auction.MonitorHorizon = 24 * time.Hour
	}
	if cfg.Auction.RelistStrategy == "" {
		cfg.Auction.RelistStrategy = "auction"
	}
	if cfg.Auction.PriceAdjustment == 0 {
		cfg.Auction.PriceAdjustment = -10
	}
	if cfg.Reconcile.CheckInterval == 0 {
		cfg.Reconcile.CheckInterval = 15 * time.Minute
	}
	if cfg.Reconcile.MaxConcurrent == 0 {
		cfg.Reconcile.MaxConcurrent = 3
	}
	if cfg.Reconcile.JobTimeout == 0 {
		cfg.Reconcile.JobTimeout = 5 * time.Minute
	}
	if cfg.Reconcile.RetryAttempts == 0 {
		cfg.Reconcile.RetryAttempts = 3
	}
	if cfg.Reconcile.RetryDelay == 0 {
		cfg.Reconcile.RetryDelay = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	applyMarketplaceDefaults(&cfg.Marketplaces.Ebay, "https://api.ebay.example.com")
	applyMarketplaceDefaults(&cfg.Marketplaces.YahooAuction, "https://auctions.yahooapis.example.jp")
	applyMarketplaceDefaults(&cfg.Marketplaces.Mercari, "https://api.mercari.example.com")
}

func applyMarketplaceDefaults(mc *MarketplaceConfig, baseURL string) {
	if mc.BaseURL == "" {
		mc.BaseURL = baseURL
	}
	if mc.Timeout == 0 {
		mc.Timeout = 10 * time.Second
	}
	if mc.RatePerSecond == 0 {
		mc.RatePerSecond = 5
	}
	if mc.RateBurst == 0 {
		mc.RateBurst = 10
	}
	if mc.MaxRespBodyLen == 0 {
		mc.MaxRespBodyLen = 1 << 20 // 1MB
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Auction.RelistStrategy {
	case "auction", "fixed_price", "abandon":
	default:
		return fmt.Errorf("auction.relist_strategy must be one of auction, fixed_price, abandon, got %q", c.Auction.RelistStrategy)
	}
	if c.Auction.PriceAdjustment < -100 {
		return fmt.Errorf("auction.price_adjustment cannot be below -100, got %f", c.Auction.PriceAdjustment)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, mc := range []struct {
			name string
			cfg  MarketplaceConfig
		}{
			{"ebay", c.Marketplaces.Ebay},
			{"yahoo_auction", c.Marketplaces.YahooAuction},
			{"mercari", c.Marketplaces.Mercari},
		} {
			if mc.cfg.Enabled && mc.cfg.APIKey == "" {
				return fmt.Errorf("marketplaces.%s.api_key is required when the marketplace is enabled in production", mc.name)
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for the Redis connection
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
