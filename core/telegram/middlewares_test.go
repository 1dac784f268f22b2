package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/serial"
)

func names(mws []Middleware) []string {
	out := make([]string, len(mws))
	for i, mw := range mws {
		out[i] = mw.Name
	}
	return out
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	cfg := &coreconfig.Config{}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(cfg, MiddlewareOptions{})))

	cfg.RateLimit.IntervalMS = 500
	got := DefaultMiddlewares(cfg, MiddlewareOptions{Executor: serial.New(serial.Options{})})
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "serial", "metrics"}, names(got))
}
