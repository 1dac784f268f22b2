// Package app wires configuration, infrastructure and the dialogue engine
// into a runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Myudi422/youtube-telegram-downloader/core/bootstrap"
	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	"github.com/Myudi422/youtube-telegram-downloader/core/dialogue"
	"github.com/Myudi422/youtube-telegram-downloader/core/health"
	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	"github.com/Myudi422/youtube-telegram-downloader/core/media"
	"github.com/Myudi422/youtube-telegram-downloader/core/staging"
	coretelegram "github.com/Myudi422/youtube-telegram-downloader/core/telegram"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/router"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/serial"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/state"
)

const component = "app"

// Deps overrides collaborators, mainly for tests. Zero fields are built from config.
type Deps struct {
	Bootstrap bootstrap.Options
	Resolver  media.Resolver
	Bot       *tele.Bot
}

// App owns every long-lived component of the bot.
type App struct {
	cfg      *coreconfig.Config
	infra    *bootstrap.Result
	bot      *tele.Bot
	resolver media.Resolver
	stager   *staging.Stager
	sessions *state.Manager
	engine   *dialogue.Engine
	exec     *serial.Executor
	registry *coretelegram.Registry
	health   *health.Server
	ready    atomic.Bool
}

// New bootstraps infrastructure and builds the bot from cfg.
func New(ctx context.Context, cfg *coreconfig.Config) (*App, error) {
	return NewWithDeps(ctx, cfg, Deps{})
}

// NewWithDeps is New with injected collaborators.
func NewWithDeps(ctx context.Context, cfg *coreconfig.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg, resolver: deps.Resolver, bot: deps.Bot}

	stager, err := staging.New(cfg.Staging.Dir)
	if err != nil {
		return nil, fmt.Errorf("app: staging: %w", err)
	}
	a.stager = stager

	var ytdlp *media.YTDLP
	if a.resolver == nil {
		ytdlp = media.NewYTDLP(cfg.Media.SupportedHosts, cfg.Media.YTDLPPath)
		a.resolver = ytdlp
	}

	opts := deps.Bootstrap
	opts.Config = cfg
	opts.Hooks = append(opts.Hooks,
		bootstrap.HookFunc{Label: "sessions", Fn: a.openSessions},
		bootstrap.HookFunc{Label: "staging.sweep", Fn: a.sweepStaging},
	)
	if ytdlp != nil && cfg.Media.AutoInstall {
		opts.Hooks = append(opts.Hooks, bootstrap.HookFunc{
			Label: "ytdlp.install",
			Fn:    func(ctx context.Context, _ *bootstrap.Result) error { return ytdlp.EnsureInstalled(ctx) },
		})
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.infra = infra

	if a.bot == nil {
		if a.bot, err = coretelegram.NewBot(cfg); err != nil {
			_ = infra.Close()
			return nil, err
		}
	}

	transport := coretelegram.NewTransport(a.bot, &http.Client{Timeout: 15 * time.Second})
	a.engine = dialogue.New(a.resolver, transport, a.sessions, a.stager, dialogue.Config{
		Profile: media.Profile{
			AudioCodec:     cfg.Media.AudioCodec,
			AudioQuality:   cfg.Media.AudioQuality,
			VideoContainer: cfg.Media.VideoContainer,
		},
		MetadataTimeout: seconds(cfg.Media.MetadataTimeoutSeconds),
		DownloadTimeout: seconds(cfg.Media.DownloadTimeoutSeconds),
		MaxUploadBytes:  int64(cfg.Media.MaxUploadMB) << 20,
		MaxParallel:     cfg.Media.MaxParallel,
	})
	a.exec = serial.New(serial.Options{})

	a.registry = coretelegram.NewRegistry()
	if err := registerHandlers(a.registry, &handlers{app: a}); err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// openSessions picks the session store and resets sessions left mid-delivery
// by a previous process: their staged files are gone.
func (a *App) openSessions(ctx context.Context, res *bootstrap.Result) error {
	store := state.NewMemoryStore()
	if res.DB != nil {
		store = state.NewPostgresStore(res.DB)
	}
	a.sessions = state.NewManager(store)
	n, err := a.sessions.ResetActive(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info(ctx, component, "sessions.reset", slog.Int("count", n))
	}
	return nil
}

func (a *App) sweepStaging(ctx context.Context, _ *bootstrap.Result) error {
	maxAge := time.Duration(a.cfg.Staging.SweepAfterMinutes) * time.Minute
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	_, err := a.stager.Sweep(ctx, maxAge)
	return err
}

// Engine exposes the dialogue engine.
func (a *App) Engine() *dialogue.Engine { return a.engine }

// TelegramRunOptions assembles middlewares, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	h := &handlers{app: a}
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: h.adminReject,
	})
	routes = append(routes, router.TextRoutes(a.registry, router.TextOptions{
		UnknownDocument: h.usage,
	})...)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:   a.cfg,
		Bot:      a.bot,
		Registry: a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, coretelegram.MiddlewareOptions{
			Executor:   a.exec,
			OnLimited:  h.slowDown,
			OnOverflow: h.slowDown,
		}),
		Routes:  routes,
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ coretelegram.Runtime) error {
	if listen := a.cfg.Health.Listen; listen != "" {
		srv, err := health.Start(listen, health.Options{
			Ready:    a.ready.Load,
			InFlight: a.engine.InFlight,
			Sessions: a.sessionStats,
		})
		if err != nil {
			return fmt.Errorf("app: health endpoint: %w", err)
		}
		a.health = srv
	}
	a.ready.Store(true)
	return nil
}

// stop drains deliveries within the configured grace period, then the
// per-user actors, then the health endpoint.
func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	a.ready.Store(false)
	grace := seconds(a.cfg.Media.ShutdownGraceSeconds)
	if grace <= 0 {
		grace = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	var errs []error
	if err := a.exec.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("serial executor: %w", err))
	}
	if err := a.engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("deliveries: %w", err))
	}
	if a.health != nil {
		if err := a.health.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn(ctx, component, "shutdown", slog.String("status", "fail"), slog.String("err", err.Error()))
	}
	return nil
}

func (a *App) sessionStats(ctx context.Context) (map[string]int, error) {
	stats, err := a.sessions.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for st, n := range stats {
		out[string(st)] = n
	}
	return out, nil
}

// Close releases infrastructure opened by New.
func (a *App) Close() error {
	return a.infra.Close()
}
