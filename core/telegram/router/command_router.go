package router

import (
	"log/slog"
	"time"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	tg "github.com/Myudi422/youtube-telegram-downloader/core/telegram"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command and alias to its handler,
// wrapped with recovery, logging, the admin check and a summary line.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	var routes []tg.Route
	for name, def := range reg.Commands() {
		handlerName := normalizeHandlerName(name)
		cmd := def.Handler
		if def.AdminOnly {
			cmd = admin(cmd)
		}
		h := func(c tele.Context) error {
			return handleWithSummary(c, handlerName, time.Now(), func() error { return cmd(c) })
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))

		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
		for _, alias := range def.Aliases {
			if alias != "" && alias[0] != '/' {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
