package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
)

func noopLogger(*coreconfig.Config) error { return nil }

func TestRunMemoryBackendSkipsDatabase(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Sessions.Backend = coreconfig.SessionsMemory

	var order []string
	res, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noopLogger,
		Connect: func(coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			t.Fatal("connect must not be called for the memory backend")
			return nil, nil
		},
		Hooks: []Hook{
			HookFunc{Label: "first", Fn: func(context.Context, *Result) error { order = append(order, "first"); return nil }},
			HookFunc{Label: "second", Fn: func(context.Context, *Result) error { order = append(order, "second"); return nil }},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.Same(t, cfg, res.Config)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.NoError(t, res.Close())
}

func TestRunPostgresConnectFailure(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Sessions.Backend = coreconfig.SessionsPostgres
	boom := errors.New("refused")

	_, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noopLogger,
		Connect:    func(coreconfig.DatabaseConfig) (*sqlx.DB, error) { return nil, boom },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunHookFailureStops(t *testing.T) {
	cfg := &coreconfig.Config{}
	boom := errors.New("sweep failed")
	called := false

	_, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noopLogger,
		Hooks: []Hook{
			HookFunc{Label: "sweep", Fn: func(context.Context, *Result) error { return boom }},
			HookFunc{Label: "after", Fn: func(context.Context, *Result) error { called = true; return nil }},
		},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "sweep")
	assert.False(t, called)
}

func TestRunLoggerFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no sink") },
	})
	assert.ErrorContains(t, err, "logger init failed")
}
