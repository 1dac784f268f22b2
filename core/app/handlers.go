package app

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/Myudi422/youtube-telegram-downloader/core/buildinfo"
	"github.com/Myudi422/youtube-telegram-downloader/core/dialogue"
	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	"github.com/Myudi422/youtube-telegram-downloader/core/media"
	coretelegram "github.com/Myudi422/youtube-telegram-downloader/core/telegram"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/callbacks"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/commands"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/helpers"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/state"
)

const (
	textGreeting  = "Hi! Send me a video link with /v <url> and I'll send it back as audio or video."
	textUsageLine = "Send me a link: /v <url>"
	textSlowDown  = "Slow down a little, please."
	textAdminOnly = "This command is for the bot owner."
)

type handlers struct {
	app *App
}

func registerHandlers(reg *coretelegram.Registry, h *handlers) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.start, Description: "Start the bot"}},
		{"/help", commands.Command{Handler: h.help, Description: "How to use the bot"}},
		{"/v", commands.Command{Handler: h.submit, Description: "Download a link as audio or video", Usage: "<url>", Aliases: []string{"video"}}},
		{"/formats", commands.Command{Handler: h.formats, Description: "List formats offered for a link", Usage: "<url>"}},
		{"/status", commands.Command{Handler: state.WithSession(h.app.sessions)(h.status), Description: "Show your current request", Hidden: true}},
		{"/stats", commands.Command{Handler: h.stats, Description: "Bot statistics", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	for _, unique := range []string{dialogue.OutputButton, dialogue.FormatButton} {
		if err := reg.RegisterCallback(unique, h.button); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(h.button)
	reg.SetTextFallback(h.text)
	return nil
}

// argument returns the text after the command, also for commands matched
// from plain text where telebot leaves Payload empty.
func argument(c tele.Context) string {
	if msg := c.Message(); msg != nil && msg.Payload != "" {
		return strings.TrimSpace(msg.Payload)
	}
	fields := strings.Fields(c.Text())
	if len(fields) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Text()), fields[0]))
}

func (h *handlers) start(c tele.Context) error {
	return helpers.SendText(c, textGreeting)
}

func (h *handlers) help(c tele.Context) error {
	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	for _, cmd := range h.app.registry.ListCommands(true) {
		line := "/" + cmd.Text
		if def, ok := h.app.registry.Commands()[line]; ok && def.Usage != "" {
			line += " " + def.Usage
		}
		fmt.Fprintf(&b, "%s - %s\n", html.EscapeString(line), html.EscapeString(cmd.Description))
	}
	b.WriteString("\nYou can also just paste a link.")
	return helpers.SendHTML(c, b.String())
}

func (h *handlers) submit(c tele.Context) error {
	ctx := helpers.WithHandler(c, "v")
	return h.app.engine.Handle(ctx, dialogue.Submit{Origin: coretelegram.OriginFrom(c), URL: argument(c)})
}

func (h *handlers) formats(c tele.Context) error {
	ctx := helpers.WithHandler(c, "formats")
	return h.app.engine.Handle(ctx, dialogue.ListFormats{Origin: coretelegram.OriginFrom(c), URL: argument(c)})
}

func (h *handlers) button(c tele.Context) error {
	ctx := helpers.WithHandler(c, "callback")
	unique, payload := callbacks.ParseCallbackData(c.Callback())
	return h.app.engine.Handle(ctx, dialogue.DecodeButton(coretelegram.OriginFrom(c), unique, payload))
}

// text treats a bare link as /v and answers anything else with usage.
func (h *handlers) text(c tele.Context) error {
	if msg := strings.TrimSpace(c.Text()); media.LooksLikeURL(msg) {
		ctx := helpers.WithHandler(c, "text.link")
		return h.app.engine.Handle(ctx, dialogue.Submit{Origin: coretelegram.OriginFrom(c), URL: msg})
	}
	return h.usage(c)
}

func (h *handlers) usage(c tele.Context) error {
	return helpers.SendText(c, textUsageLine)
}

func (h *handlers) status(c tele.Context) error {
	s, ok := state.FromContext(c)
	if !ok || s.State == state.StateIdle || s.State == "" {
		return helpers.SendText(c, "Nothing in progress. "+textUsageLine)
	}
	text := "Current request: " + strings.ReplaceAll(string(s.State), "_", " ")
	if s.PendingURL != "" {
		text += "\n" + logger.SanitizeLimit(s.PendingURL, 200)
	}
	if s.FormatID != "" {
		text += "\nFormat: " + s.FormatID
	}
	if s.OutputKind != "" {
		text += "\nOutput: " + string(s.OutputKind)
	}
	return helpers.SendText(c, text)
}

func (h *handlers) stats(c tele.Context) error {
	ctx := helpers.WithHandler(c, "stats")
	sessions, err := h.app.sessionStats(ctx)
	if err != nil {
		logger.Error(ctx, component, "stats.sessions", slog.String("err", err.Error()))
		return helpers.SendText(c, "Session stats are unavailable right now.")
	}
	keys := make([]string, 0, len(sessions))
	for k := range sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nDeliveries running: %d\n", buildinfo.String(), h.app.engine.InFlight())
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %d\n", k, sessions[k])
	}
	return helpers.SendText(c, strings.TrimSpace(b.String()))
}

func (h *handlers) adminReject(c tele.Context) error {
	return helpers.SendText(c, textAdminOnly)
}

// slowDown answers updates dropped by the rate limiter or the per-user queue.
func (h *handlers) slowDown(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textSlowDown})
	}
	return helpers.SendText(c, textSlowDown)
}
