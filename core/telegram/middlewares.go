package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/middleware"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/serial"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions supplies the collaborators of the default chain.
type MiddlewareOptions struct {
	// Executor moves handlers off the receive loop; nil runs them inline.
	Executor   *serial.Executor
	OnLimited  tele.HandlerFunc
	OnOverflow tele.HandlerFunc
}

// DefaultMiddlewares builds the shared chain, outermost first:
// recover, rate limit, receipt logging, per-user serialization, reply counters.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, t := range cfg.RateLimit.ExcludeUpdates {
			ex[strings.ToLower(t)] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   ex,
				OnLimited: opts.OnLimited,
			}),
		})
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	if opts.Executor != nil {
		mws = append(mws, Middleware{
			Name: "serial",
			Use: middleware.SerialMiddleware(middleware.SerialOptions{
				Executor:   opts.Executor,
				OnOverflow: opts.OnOverflow,
			}),
		})
	}
	return append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
}
