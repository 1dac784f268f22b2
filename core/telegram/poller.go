package telegram

import (
	"net"
	"strconv"
	"time"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// BuildPoller returns the webhook listener or the long poller selected by
// telegram.run_mode. The config is expected to be normalized.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg)}
}

func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultLongPollTimeout
}

// clientTimeout covers the slower of an upload and a long poll round trip.
func clientTimeout(cfg *coreconfig.Config) time.Duration {
	upload := time.Duration(cfg.Telegram.UploadTimeoutSeconds) * time.Second
	return max(upload, longPollTimeout(cfg)+10*time.Second)
}
