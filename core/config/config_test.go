package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearPlatformEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HEROKU", "PORT", "BOT_TOKEN", "WEBHOOK_URL", "TELEGRAM_RUN_MODE", "SESSIONS_BACKEND"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearPlatformEnv(t)
	cfg, err := Load(writeConfig(t, "telegram:\n  token: \"123:abc\"\n"))
	require.NoError(t, err)

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, 300, cfg.Telegram.UploadTimeoutSeconds)
	assert.Equal(t, "mp3", cfg.Media.AudioCodec)
	assert.Equal(t, "192K", cfg.Media.AudioQuality)
	assert.Equal(t, "mp4", cfg.Media.VideoContainer)
	assert.Equal(t, 50, cfg.Media.MaxUploadMB)
	assert.Equal(t, 4, cfg.Media.MaxParallel)
	assert.Equal(t, DefaultSupportedHosts, cfg.Media.SupportedHosts)
	assert.Equal(t, SessionsMemory, cfg.Sessions.Backend)
	assert.NotEmpty(t, cfg.Staging.Dir)
	assert.Equal(t, 60, cfg.Staging.SweepAfterMinutes)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("BOT_TOKEN", "env:token")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env:token", cfg.Telegram.Token)
}

func TestLoadRequiresToken(t *testing.T) {
	clearPlatformEnv(t)
	_, err := Load(writeConfig(t, "media:\n  audio_codec: opus\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	clearPlatformEnv(t)
	_, err := Load(writeConfig(t, "telegram: [unclosed"))
	require.Error(t, err)
}

func TestNormalizeWebhook(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Telegram.RunMode = "webhook"
	require.ErrorContains(t, Normalize(cfg), "webhook.url")

	cfg.Webhook.URL = "https://bot.example/hook"
	require.ErrorContains(t, Normalize(cfg), "webhook.listen")

	cfg.Webhook.Listen = "0.0.0.0"
	require.ErrorContains(t, Normalize(cfg), "webhook.port")

	cfg.Webhook.Port = 8443
	require.NoError(t, Normalize(cfg))
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Telegram.RunMode = " Polling "
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)

	cfg.Telegram.RunMode = "carrier-pigeon"
	require.ErrorContains(t, Normalize(cfg), "invalid telegram.run_mode")
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "MESSAGE"}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{"callback", "message"}, cfg.RateLimit.ExcludeUpdates)

	cfg.RateLimit.ExcludeUpdates = []string{"edited_message"}
	require.Error(t, Normalize(cfg))
}

func TestNormalizeMediaHosts(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Media.SupportedHosts = []string{" YouTube.com ", "", "Vimeo.com"}
	cfg.Media.AudioCodec = " OPUS "
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{"youtube.com", "vimeo.com"}, cfg.Media.SupportedHosts)
	assert.Equal(t, "opus", cfg.Media.AudioCodec)

	cfg.Media.DownloadTimeoutSeconds = -1
	require.Error(t, Normalize(cfg))
}

func TestNormalizePostgresSessions(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Sessions.Backend = "Postgres"
	require.ErrorContains(t, Normalize(cfg), "database.host")

	cfg.Database.Host = "db"
	cfg.Database.Name = "ytbot"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, SessionsPostgres, cfg.Sessions.Backend)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5, cfg.Database.MaxConnections)

	cfg.Sessions.Backend = "redis"
	require.ErrorContains(t, Normalize(cfg), "invalid sessions.backend")
}

func TestPlatformEnv(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("HEROKU", "https://ytbot.herokuapp.com/")
	t.Setenv("PORT", "5000")

	cfg, err := Load(writeConfig(t, "telegram:\n  token: \"123:abc\"\n"))
	require.NoError(t, err)
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
	assert.Equal(t, "https://ytbot.herokuapp.com/123:abc", cfg.Webhook.URL)
	assert.Equal(t, 5000, cfg.Webhook.Port)
	assert.Equal(t, "0.0.0.0", cfg.Webhook.Listen)
}
