package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Fletcher15478/nba-game-predictor/internal/engine"
	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Sports   map[string]SportConfig `mapstructure:"sports"`
	Feeds    FeedsConfig            `mapstructure:"feeds"`
	Model    ModelConfig            `mapstructure:"model"`
	Storage  StorageConfig          `mapstructure:"storage"`
	Ledger   LedgerConfig           `mapstructure:"ledger"`
	Lock     LockConfig             `mapstructure:"lock"`
	Telegram TelegramConfig         `mapstructure:"telegram"`
	Metrics  MetricsConfig          `mapstructure:"metrics"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

// SportConfig holds per-league scheduling and model pinning
type SportConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Cadence      string `mapstructure:"cadence"` // daily or weekly
	ModelVersion string `mapstructure:"model_version"`
	SeasonStart  string `mapstructure:"season_start"` // first day of week 1, weekly sports only
}

// FeedsConfig holds schedule and score feed configuration
type FeedsConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	Injuries         bool          `mapstructure:"injuries"` // adjust predictions by the injury report
}

// ModelConfig holds classifier training and artifact configuration
type ModelConfig struct {
	Dir                string  `mapstructure:"dir"`
	Trees              int     `mapstructure:"trees"`
	MaxDepth           int     `mapstructure:"max_depth"`
	MinLeaf            int     `mapstructure:"min_leaf"`
	FeatureFraction    float64 `mapstructure:"feature_fraction"` // 0 = sqrt(features)
	HoldoutFraction    float64 `mapstructure:"holdout_fraction"`
	Seed               int64   `mapstructure:"seed"`
	MinHoldoutAccuracy float64 `mapstructure:"min_holdout_accuracy"`
	MissingData        string  `mapstructure:"missing_data"` // league-defaults or skip
}

// StorageConfig holds document persistence configuration
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // file or sqlite
	DataDir string `mapstructure:"data_dir"`
	DBPath  string `mapstructure:"db_path"`
}

// LedgerConfig holds reconciliation configuration
type LedgerConfig struct {
	MaxPendingPeriods int `mapstructure:"max_pending_periods"` // 0 = unlimited
}

// LockConfig holds run lock configuration
type LockConfig struct {
	Backend   string        `mapstructure:"backend"` // file or redis
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
	Dir       string        `mapstructure:"dir"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MetricsConfig holds Pushgateway configuration
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"` // empty = disabled
	Job            string `mapstructure:"job"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from a .env file, the config file and environment variables
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// GAME_ORACLE_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("GAME_ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("sports.nba.enabled", true)
	v.SetDefault("sports.nba.cadence", "daily")
	v.SetDefault("sports.nba.model_version", "v1")
	v.SetDefault("sports.nfl.enabled", true)
	v.SetDefault("sports.nfl.cadence", "weekly")
	v.SetDefault("sports.nfl.model_version", "v1")
	v.SetDefault("sports.nfl.season_start", "2025-09-04")

	v.SetDefault("feeds.base_url", "https://site.api.espn.com/apis/site/v2/sports")
	v.SetDefault("feeds.timeout", "10s")
	v.SetDefault("feeds.max_retries", 3)
	v.SetDefault("feeds.retry_delay_base", "1s")
	v.SetDefault("feeds.fetch_concurrency", 4)
	v.SetDefault("feeds.injuries", true)

	v.SetDefault("model.dir", "./models")
	v.SetDefault("model.trees", 100)
	v.SetDefault("model.max_depth", 10)
	v.SetDefault("model.min_leaf", 1)
	v.SetDefault("model.feature_fraction", 0.0)
	v.SetDefault("model.holdout_fraction", 0.2)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.min_holdout_accuracy", 0.5)
	v.SetDefault("model.missing_data", "league-defaults")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.db_path", "./data/gameoracle.db")

	v.SetDefault("ledger.max_pending_periods", 14)

	v.SetDefault("lock.backend", "file")
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.ttl", "30m")
	v.SetDefault("lock.dir", "./data/locks")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "gameoracle")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Sports) == 0 {
		return fmt.Errorf("sports must configure at least one sport")
	}
	for name, sc := range c.Sports {
		sport, err := models.ParseSport(name)
		if err != nil {
			return fmt.Errorf("sports.%s: %w", name, err)
		}
		switch sc.Cadence {
		case "daily":
			if sport.Weekly() {
				return fmt.Errorf("sports.%s.cadence must be weekly", name)
			}
		case "weekly":
			if !sport.Weekly() {
				return fmt.Errorf("sports.%s.cadence must be daily", name)
			}
			if _, err := time.Parse(models.DateLayout, sc.SeasonStart); err != nil {
				return fmt.Errorf("sports.%s.season_start must be a YYYY-MM-DD date", name)
			}
		default:
			return fmt.Errorf("sports.%s.cadence must be one of: daily, weekly", name)
		}
		if sc.ModelVersion == "" {
			return fmt.Errorf("sports.%s.model_version is required", name)
		}
	}

	if c.Feeds.BaseURL == "" {
		return fmt.Errorf("feeds.base_url is required")
	}
	if c.Feeds.Timeout < time.Second {
		return fmt.Errorf("feeds.timeout must be at least 1 second")
	}
	if c.Feeds.MaxRetries < 1 {
		return fmt.Errorf("feeds.max_retries must be at least 1")
	}
	if c.Feeds.FetchConcurrency < 1 {
		return fmt.Errorf("feeds.fetch_concurrency must be at least 1")
	}

	if c.Model.Dir == "" {
		return fmt.Errorf("model.dir is required")
	}
	if c.Model.Trees < 1 {
		return fmt.Errorf("model.trees must be at least 1")
	}
	if c.Model.MaxDepth < 1 {
		return fmt.Errorf("model.max_depth must be at least 1")
	}
	if c.Model.MinLeaf < 1 {
		return fmt.Errorf("model.min_leaf must be at least 1")
	}
	if c.Model.FeatureFraction < 0 || c.Model.FeatureFraction > 1 {
		return fmt.Errorf("model.feature_fraction must be between 0.0 and 1.0")
	}
	if c.Model.HoldoutFraction <= 0 || c.Model.HoldoutFraction >= 1 {
		return fmt.Errorf("model.holdout_fraction must be between 0.0 and 1.0 exclusive")
	}
	if c.Model.MinHoldoutAccuracy < 0 || c.Model.MinHoldoutAccuracy > 1 {
		return fmt.Errorf("model.min_holdout_accuracy must be between 0.0 and 1.0")
	}
	if _, err := engine.ParseMissingDataPolicy(c.Model.MissingData); err != nil {
		return fmt.Errorf("model.missing_data must be one of: %s, %s", engine.LeagueDefaults, engine.SkipMissing)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the file backend")
		}
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: file, sqlite")
	}

	if c.Ledger.MaxPendingPeriods < 0 {
		return fmt.Errorf("ledger.max_pending_periods must not be negative")
	}

	switch c.Lock.Backend {
	case "file":
		if c.Lock.Dir == "" {
			return fmt.Errorf("lock.dir is required for the file backend")
		}
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("lock.backend must be one of: file, redis")
	}
	if c.Lock.TTL < time.Minute {
		return fmt.Errorf("lock.ttl must be at least 1 minute")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return fmt.Errorf("metrics.job is required when metrics.pushgateway_url is set")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// EnabledSports returns the enabled sports in name order
func (c *Config) EnabledSports() []models.Sport {
	var out []models.Sport
	for name, sc := range c.Sports {
		if !sc.Enabled {
			continue
		}
		if s, err := models.ParseSport(name); err == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sport returns the configuration for a sport
func (c *Config) Sport(s models.Sport) (SportConfig, bool) {
	sc, ok := c.Sports[string(s)]
	return sc, ok
}

// SeasonStartDate returns the parsed week-1 start date, or the zero time if unset
func (sc SportConfig) SeasonStartDate() time.Time {
	t, _ := time.Parse(models.DateLayout, sc.SeasonStart)
	return t
}
