package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// UploadTimeoutSeconds bounds a single Bot API call, document uploads included.
	UploadTimeoutSeconds int `yaml:"upload_timeout_seconds" envconfig:"TELEGRAM_UPLOAD_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// MediaConfig controls how media is resolved, converted and delivered.
type MediaConfig struct {
	// YTDLPPath overrides the yt-dlp executable; empty means lookup in PATH.
	YTDLPPath string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	// AutoInstall fetches a yt-dlp release at startup when YTDLPPath is empty.
	AutoInstall    bool     `yaml:"auto_install" envconfig:"YTDLP_AUTO_INSTALL"`
	SupportedHosts []string `yaml:"supported_hosts" envconfig:"MEDIA_SUPPORTED_HOSTS"`

	AudioCodec     string `yaml:"audio_codec" envconfig:"MEDIA_AUDIO_CODEC"`
	AudioQuality   string `yaml:"audio_quality" envconfig:"MEDIA_AUDIO_QUALITY"`
	VideoContainer string `yaml:"video_container" envconfig:"MEDIA_VIDEO_CONTAINER"`

	MetadataTimeoutSeconds int `yaml:"metadata_timeout_seconds" envconfig:"MEDIA_METADATA_TIMEOUT_SECONDS"`
	DownloadTimeoutSeconds int `yaml:"download_timeout_seconds" envconfig:"MEDIA_DOWNLOAD_TIMEOUT_SECONDS"`
	MaxUploadMB            int `yaml:"max_upload_mb" envconfig:"MEDIA_MAX_UPLOAD_MB"`
	MaxParallel            int `yaml:"max_parallel" envconfig:"MEDIA_MAX_PARALLEL"`
	ShutdownGraceSeconds   int `yaml:"shutdown_grace_seconds" envconfig:"MEDIA_SHUTDOWN_GRACE_SECONDS"`
}

// StagingConfig locates the scratch directory for downloaded artifacts.
type StagingConfig struct {
	Dir string `yaml:"dir" envconfig:"STAGING_DIR"`
	// SweepAfterMinutes removes leftovers older than this at startup; 0 -> default.
	SweepAfterMinutes int `yaml:"sweep_after_minutes" envconfig:"STAGING_SWEEP_AFTER_MINUTES"`
}

// SessionsConfig selects the session store backend.
type SessionsConfig struct {
	Backend string `yaml:"backend" envconfig:"SESSIONS_BACKEND"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// HealthConfig enables the HTTP health endpoint when Listen is set.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// SessionsMemory keeps sessions in process memory.
	SessionsMemory = "memory"
	// SessionsPostgres persists sessions in PostgreSQL.
	SessionsPostgres = "postgres"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// DefaultSupportedHosts lists the video sites accepted by the URL check when
// the configuration does not provide its own list.
var DefaultSupportedHosts = []string{
	"youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
	"vimeo.com",
	"soundcloud.com",
	"dailymotion.com",
	"twitch.tv",
	"tiktok.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"facebook.com",
	"reddit.com",
	"bandcamp.com",
	"bilibili.com",
	"streamable.com",
}

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Media     MediaConfig     `yaml:"media"`
	Staging   StagingConfig   `yaml:"staging"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Database  DatabaseConfig  `yaml:"database"`
	Health    HealthConfig    `yaml:"health"`
}

// Load reads configuration from an optional YAML file and environment variables.
// A missing file is not an error: the bot can be configured from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	applyPlatformEnv(&cfg)

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformEnv honours PaaS style variables: HEROKU holds the public base
// URL and PORT the webhook listen port.
func applyPlatformEnv(cfg *Config) {
	base := strings.TrimSpace(os.Getenv("HEROKU"))
	if base != "" && strings.TrimSpace(cfg.Webhook.URL) == "" {
		cfg.Webhook.URL = strings.TrimRight(base, "/") + "/" + cfg.Telegram.Token
		if strings.TrimSpace(cfg.Telegram.RunMode) == "" {
			cfg.Telegram.RunMode = RunModeWebhook
		}
	}
	if cfg.Webhook.Port == 0 {
		if p, err := strconv.Atoi(strings.TrimSpace(os.Getenv("PORT"))); err == nil {
			cfg.Webhook.Port = p
		}
	}
	if strings.EqualFold(cfg.Telegram.RunMode, RunModeWebhook) && strings.TrimSpace(cfg.Webhook.Listen) == "" {
		cfg.Webhook.Listen = "0.0.0.0"
	}
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	if cfg.Telegram.UploadTimeoutSeconds <= 0 {
		cfg.Telegram.UploadTimeoutSeconds = 300
	}

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeMedia(&cfg.Media); err != nil {
		return err
	}
	normalizeStaging(&cfg.Staging)
	return normalizeSessions(cfg)
}

func normalizeMedia(m *MediaConfig) error {
	hosts := make([]string, 0, len(m.SupportedHosts))
	for _, h := range m.SupportedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		hosts = append(hosts, DefaultSupportedHosts...)
	}
	m.SupportedHosts = hosts

	m.AudioCodec = strings.ToLower(strings.TrimSpace(m.AudioCodec))
	if m.AudioCodec == "" {
		m.AudioCodec = "mp3"
	}
	if strings.TrimSpace(m.AudioQuality) == "" {
		m.AudioQuality = "192K"
	}
	m.VideoContainer = strings.ToLower(strings.TrimSpace(m.VideoContainer))
	if m.VideoContainer == "" {
		m.VideoContainer = "mp4"
	}

	if m.MetadataTimeoutSeconds < 0 || m.DownloadTimeoutSeconds < 0 {
		return fmt.Errorf("media timeouts must be >= 0")
	}
	if m.MetadataTimeoutSeconds == 0 {
		m.MetadataTimeoutSeconds = 60
	}
	if m.DownloadTimeoutSeconds == 0 {
		m.DownloadTimeoutSeconds = 600
	}
	if m.MaxUploadMB <= 0 {
		// Bot API limit for documents sent by bots.
		m.MaxUploadMB = 50
	}
	if m.MaxParallel <= 0 {
		m.MaxParallel = 4
	}
	if m.ShutdownGraceSeconds <= 0 {
		m.ShutdownGraceSeconds = 30
	}
	return nil
}

func normalizeStaging(s *StagingConfig) {
	if strings.TrimSpace(s.Dir) == "" {
		s.Dir = filepath.Join(os.TempDir(), "ytbot-staging")
	}
	if s.SweepAfterMinutes <= 0 {
		s.SweepAfterMinutes = 60
	}
}

func normalizeSessions(cfg *Config) error {
	backend := strings.ToLower(strings.TrimSpace(cfg.Sessions.Backend))
	if backend == "" {
		backend = SessionsMemory
	}
	switch backend {
	case SessionsMemory:
	case SessionsPostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when sessions.backend is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 5
		}
	default:
		return fmt.Errorf("invalid sessions.backend %q; allowed: memory, postgres", cfg.Sessions.Backend)
	}
	cfg.Sessions.Backend = backend
	return nil
}
