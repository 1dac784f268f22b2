package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	coretelegram "github.com/Myudi422/youtube-telegram-downloader/core/telegram"
)

type fakeApp struct {
	closed  bool
	stopped bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStop: func(context.Context, coretelegram.Runtime) error {
			a.stopped = true
			return nil
		},
	}, nil
}

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("YTBOT_TEST_CONFIG", "")
	assert.Equal(t, "default.yaml", ResolveConfigPath(Options{ConfigEnvVar: "YTBOT_TEST_CONFIG", DefaultConfigPath: "default.yaml"}))

	t.Setenv("YTBOT_TEST_CONFIG", "env.yaml")
	assert.Equal(t, "env.yaml", ResolveConfigPath(Options{ConfigEnvVar: "YTBOT_TEST_CONFIG", DefaultConfigPath: "default.yaml"}))
	assert.Equal(t, "flag.yaml", ResolveConfigPath(Options{ConfigPath: "flag.yaml", ConfigEnvVar: "YTBOT_TEST_CONFIG"}))
}

func TestRunWiresLifecycleHooks(t *testing.T) {
	app := &fakeApp{}
	var loggerClosed bool

	err := Run(Options{
		ConfigPath: "cfg.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			assert.Equal(t, "cfg.yaml", path)
			return &coreconfig.Config{}, nil
		},
		Bootstrap:      func(context.Context, *coreconfig.Config) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.True(t, app.stopped)
	assert.True(t, app.closed)
	assert.True(t, loggerClosed)
}

func TestRunFailures(t *testing.T) {
	load := func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil }

	err := Run(Options{LoadConfig: load})
	assert.ErrorContains(t, err, "Bootstrap is required")

	err = Run(Options{
		LoadConfig:     func(string) (*coreconfig.Config, error) { return nil, errors.New("no token") },
		Bootstrap:      func(context.Context, *coreconfig.Config) (TelegramApp, error) { return &fakeApp{}, nil },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorContains(t, err, "no token")

	err = Run(Options{
		LoadConfig:     load,
		Bootstrap:      func(context.Context, *coreconfig.Config) (TelegramApp, error) { return nil, errors.New("db down") },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorContains(t, err, "bootstrap failed")
}
