package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. MISINTEL_AI_KEY.
const EnvPrefix = "MISINTEL"

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" mapstructure:"ratelimit"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	AI         AIConfig         `yaml:"ai" mapstructure:"ai"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	News       NewsConfig       `yaml:"news" mapstructure:"news"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Author     AuthorConfig     `yaml:"author" mapstructure:"author"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Evidence   EvidenceConfig   `yaml:"evidence" mapstructure:"evidence"`
	Trending   TrendingConfig   `yaml:"trending" mapstructure:"trending"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxUploadMB  int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	ShutdownSecs int      `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RateLimitConfig configures the per-client sliding window.
type RateLimitConfig struct {
	WindowSecs  int    `yaml:"window_secs" mapstructure:"window_secs"`
	MaxRequests int    `yaml:"max_requests" mapstructure:"max_requests"`
	SweepCron   string `yaml:"sweep_cron" mapstructure:"sweep_cron"`
}

// CacheConfig selects and tunes the result cache backend.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	BaseTTLHours  int    `yaml:"base_ttl_hours" mapstructure:"base_ttl_hours"`
	PurgeCron     string `yaml:"purge_cron" mapstructure:"purge_cron"`
}

// AIConfig selects the text model used for analysis.
type AIConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Attempts    int    `yaml:"attempts" mapstructure:"attempts"`
}

// GoogleConfig holds keys for the Google verification and speech APIs.
type GoogleConfig struct {
	FactCheckKey    string `yaml:"factcheck_key" mapstructure:"factcheck_key"`
	CustomSearchKey string `yaml:"customsearch_key" mapstructure:"customsearch_key"`
	CustomSearchCX  string `yaml:"customsearch_cx" mapstructure:"customsearch_cx"`
	SafeBrowsingKey string `yaml:"safebrowsing_key" mapstructure:"safebrowsing_key"`
	SpeechKey       string `yaml:"speech_key" mapstructure:"speech_key"`
	SpeechLanguage  string `yaml:"speech_language" mapstructure:"speech_language"`
}

// NewsConfig holds NewsAPI settings.
type NewsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// CrisisCountry selects the top-headlines edition scanned for crises.
	CrisisCountry string `yaml:"crisis_country" mapstructure:"crisis_country"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
}

// OCRConfig configures image text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	MistralKey    string `yaml:"mistral_key" mapstructure:"mistral_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// AuthorConfig configures author attribution.
type AuthorConfig struct {
	ReputationFile   string `yaml:"reputation_file" mapstructure:"reputation_file"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// EvidenceConfig tunes evidence gathering.
type EvidenceConfig struct {
	TimeoutSecs      int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// TrendingConfig configures the Google News RSS feed.
type TrendingConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	HL      string `yaml:"hl" mapstructure:"hl"`
	GL      string `yaml:"gl" mapstructure:"gl"`
}

// MonitoringConfig configures degradation alerts.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	DegradedRateThreshold float64 `yaml:"degraded_rate_threshold" mapstructure:"degraded_rate_threshold"`
	MinChecks             int     `yaml:"min_checks" mapstructure:"min_checks"`
}

// secrets have no default, so they are bound explicitly for env lookup.
var secrets = []string{
	"ai.key",
	"google.factcheck_key",
	"google.customsearch_key",
	"google.customsearch_cx",
	"google.safebrowsing_key",
	"google.speech_key",
	"news.key",
	"jina.key",
	"ocr.mistral_key",
	"cache.redis_password",
	"cache.database_url",
	"monitoring.webhook_url",
	"author.reputation_file",
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secrets {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.shutdown_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ratelimit.window_secs", 60)
	v.SetDefault("ratelimit.max_requests", 6)
	v.SetDefault("ratelimit.sweep_cron", "@every 5m")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.base_ttl_hours", 24)
	v.SetDefault("cache.purge_cron", "@hourly")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout_secs", 60)
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.attempts", 2)
	v.SetDefault("google.speech_language", "en-US")
	v.SetDefault("news.base_url", "https://newsapi.org/v2")
	v.SetDefault("news.crisis_country", "in")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.enabled", true)
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("author.fetch_timeout_secs", 10)
	v.SetDefault("fetch.user_agent", "MisIntel-Bot/1.0")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("evidence.timeout_secs", 10)
	v.SetDefault("evidence.breaker_threshold", 5)
	v.SetDefault("evidence.breaker_cooldown_secs", 30)
	v.SetDefault("trending.base_url", "https://news.google.com/rss")
	v.SetDefault("trending.hl", "en-IN")
	v.SetDefault("trending.gl", "IN")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.degraded_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_checks", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by a command mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateCommon()...)
	case "check":
		errs = append(errs, c.validateCommon()...)
	case "author":
	case "crisis":
		if c.News.Key == "" {
			errs = append(errs, "news.key is required")
		}
	case "cache":
		errs = append(errs, c.validateCache()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: invalid for %s: %s", mode, strings.Join(errs, "; ")))
	}
	return nil
}

func (c *Config) validateCommon() []string {
	var errs []string
	if c.RateLimit.WindowSecs <= 0 {
		errs = append(errs, "ratelimit.window_secs must be > 0")
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, "ratelimit.max_requests must be > 0")
	}
	if c.Monitoring.DegradedRateThreshold < 0 || c.Monitoring.DegradedRateThreshold > 1 {
		errs = append(errs, "monitoring.degraded_rate_threshold must be between 0 and 1")
	}
	return append(errs, c.validateCache()...)
}

func (c *Config) validateCache() []string {
	switch c.Cache.Driver {
	case "memory", "redis", "sqlite":
		return nil
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return []string{"cache.database_url is required for the postgres driver"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("cache.driver %q must be one of memory, redis, sqlite, postgres", c.Cache.Driver)}
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
