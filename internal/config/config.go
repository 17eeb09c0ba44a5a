// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   Webhook         `mapstructure:"webhook"`
	Messenger MessengerConfig `mapstructure:"messenger"`
	Media     MediaConfig     `mapstructure:"media"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Search    SearchConfig    `mapstructure:"search"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Results   ResultsConfig   `mapstructure:"results"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Webhook holds the intake verification settings.
type Webhook struct {
	VerifyToken      string `mapstructure:"verify_token"`
	AppSecret        string `mapstructure:"app_secret"`
	VerifySignatures bool   `mapstructure:"verify_signatures"`
}

// MessengerConfig configures the Graph API send-message client.
type MessengerConfig struct {
	GraphURL       string `mapstructure:"graph_url"`
	AccessToken    string `mapstructure:"access_token"`
	SelfID         string `mapstructure:"self_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// MediaConfig governs CDN media downloads and video frame derivation.
type MediaConfig struct {
	WorkDir        string `mapstructure:"work_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBytes       int64  `mapstructure:"max_bytes"`
	ExpandTimeout  int    `mapstructure:"expand_timeout_seconds"`
	ExpandMaxHops  int    `mapstructure:"expand_max_hops"`
	FFmpegPath     string `mapstructure:"ffmpeg_path"`
	FFprobePath    string `mapstructure:"ffprobe_path"`
	FrameCount     int    `mapstructure:"frame_count"`
}

// VisionConfig configures the vision-language extraction service.
type VisionConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchConfig configures the product search service.
type SearchConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	CostPerSearch  float64 `mapstructure:"cost_per_search"`
}

// RetryConfig tunes the per-stage retry policy.
type RetryConfig struct {
	MaxAttempts       int `mapstructure:"max_attempts"`
	BaseDelayMs       int `mapstructure:"base_delay_ms"`
	MaxDelayMs        int `mapstructure:"max_delay_ms"`
	RateLimitDelaySec int `mapstructure:"rate_limit_delay_seconds"`
	RateLimitAttempts int `mapstructure:"rate_limit_attempts"`
	StageTimeoutSec   int `mapstructure:"stage_timeout_seconds"`
}

// DedupConfig bounds the message-id ledger.
type DedupConfig struct {
	MaxTracked int `mapstructure:"max_tracked"`
}

// ResultsConfig shapes outbound result delivery.
type ResultsConfig struct {
	URLsPerMessage int `mapstructure:"urls_per_message"`
}

// StorageConfig picks the run-state store.
type StorageConfig struct {
	// Provider is one of: none, local, postgres, gcs.
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("webhook.verify_signatures", true)
	v.SetDefault("messenger.graph_url", "https://graph.facebook.com/v23.0")
	v.SetDefault("messenger.timeout_seconds", 15)
	v.SetDefault("media.work_dir", "/tmp/shopscout")
	v.SetDefault("media.timeout_seconds", 30)
	v.SetDefault("media.max_bytes", 50<<20)
	v.SetDefault("media.expand_timeout_seconds", 5)
	v.SetDefault("media.expand_max_hops", 5)
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.frame_count", 10)
	v.SetDefault("vision.timeout_seconds", 60)
	v.SetDefault("search.timeout_seconds", 60)
	v.SetDefault("search.cost_per_search", 0.01)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 8000)
	v.SetDefault("retry.rate_limit_delay_seconds", 60)
	v.SetDefault("retry.rate_limit_attempts", 2)
	v.SetDefault("retry.stage_timeout_seconds", 90)
	v.SetDefault("dedup.max_tracked", 1000)
	v.SetDefault("results.urls_per_message", 10)
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.local_dir", "./runs")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Webhook.VerifySignatures && c.Webhook.AppSecret == "" {
		return fmt.Errorf("webhook.app_secret must be set when signature verification is enabled")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Dedup.MaxTracked <= 0 {
		return fmt.Errorf("dedup.max_tracked must be > 0")
	}
	switch c.Storage.Provider {
	case "none", "local", "postgres", "gcs":
	default:
		return fmt.Errorf("storage.provider must be one of none, local, postgres, gcs")
	}
	if c.Storage.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when storage.provider is postgres")
	}
	if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// MessengerTimeout returns the send-message client timeout.
func (c Config) MessengerTimeout() time.Duration {
	return time.Duration(c.Messenger.TimeoutSeconds) * time.Second
}

// StageTimeout returns the per-stage execution deadline.
func (c Config) StageTimeout() time.Duration {
	return time.Duration(c.Retry.StageTimeoutSec) * time.Second
}
