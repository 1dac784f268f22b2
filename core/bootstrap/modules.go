package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
)

// Hook is a startup task that needs the bootstrapped infrastructure,
// such as sweeping stale staging files or resetting interrupted sessions.
type Hook interface {
	Name() string
	Run(ctx context.Context, res *Result) error
}

// HookFunc adapts a bare function to the Hook interface.
type HookFunc struct {
	Label string
	Fn    func(ctx context.Context, res *Result) error
}

// Name returns the hook label used in logs.
func (h HookFunc) Name() string { return h.Label }

// Run executes the underlying function.
func (h HookFunc) Run(ctx context.Context, res *Result) error {
	if h.Fn == nil {
		return nil
	}
	return h.Fn(ctx, res)
}

func runHooks(ctx context.Context, hooks []Hook, res *Result) error {
	for _, h := range hooks {
		if h == nil {
			continue
		}
		start := time.Now()
		if err := h.Run(ctx, res); err != nil {
			logger.Error(ctx, "app", "bootstrap.hook",
				slog.String("handler", h.Name()),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("bootstrap: %s: %w", h.Name(), err)
		}
		logger.Debug(ctx, "app", "bootstrap.hook",
			slog.String("handler", h.Name()),
			slog.String("status", "ok"),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}
