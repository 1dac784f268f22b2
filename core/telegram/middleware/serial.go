package middleware

import (
	"errors"
	"log/slog"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	tghelpers "github.com/Myudi422/youtube-telegram-downloader/core/telegram/helpers"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/serial"

	tele "gopkg.in/telebot.v4"
)

// SerialOptions configures SerialMiddleware.
type SerialOptions struct {
	Executor *serial.Executor
	// OnOverflow answers an update that could not be queued.
	OnOverflow tele.HandlerFunc
}

// SerialMiddleware hands every update to its sender's actor and returns at
// once, so the receive loop never waits on a handler. Updates without a
// sender run inline.
func SerialMiddleware(opts SerialOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if opts.Executor == nil || user == nil {
				return next(c)
			}
			err := opts.Executor.Submit(user.ID, func() {
				if err := next(c); err != nil {
					logger.Debug(tghelpers.BuildContext(c), "tg", "handler.error",
						slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
					)
				}
			})
			switch {
			case err == nil:
				return nil
			case errors.Is(err, serial.ErrQueueFull):
				logger.Warn(tghelpers.BuildContext(c), "tg", "serial.overflow", slog.String("status", "busy"))
				if opts.OnOverflow != nil {
					return opts.OnOverflow(c)
				}
				return nil
			default:
				return err
			}
		}
	}
}
