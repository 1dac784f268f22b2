package state

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
)

const sessionKey = "dialogue_session"

// WithSession loads a snapshot of the sender's session into the handler
// context. Handlers use it for read-only decisions; changes go through Manager.
func WithSession(mgr *Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if mgr == nil || c.Sender() == nil {
				return next(c)
			}
			ctx := logger.Background()
			s, err := mgr.Get(ctx, c.Sender().ID)
			if err != nil {
				logger.Warn(ctx, "sessions", "session.load",
					slog.Int64("user_id", c.Sender().ID),
					slog.String("err", err.Error()),
				)
				return next(c)
			}
			c.Set(sessionKey, s)
			return next(c)
		}
	}
}

// FromContext returns the snapshot stored by WithSession.
func FromContext(c tele.Context) (Session, bool) {
	s, ok := c.Get(sessionKey).(Session)
	return s, ok
}
