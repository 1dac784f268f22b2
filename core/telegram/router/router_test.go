package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/Myudi422/youtube-telegram-downloader/core/telegram"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/callbacks"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/commands"
)

func newBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Token: "test", Offline: true})
	require.NoError(t, err)
	return bot
}

func callbackCtx(bot *tele.Bot, data string) tele.Context {
	return bot.NewContext(tele.Update{ID: 1, Callback: &tele.Callback{ID: "cb", Sender: &tele.User{ID: 3}, Data: data}})
}

func textCtx(bot *tele.Bot, text string) tele.Context {
	user := &tele.User{ID: 3}
	return bot.NewContext(tele.Update{ID: 2, Message: &tele.Message{Sender: user, Chat: &tele.Chat{ID: 3}, Text: text}})
}

func TestCallbackRouteDispatchesByUnique(t *testing.T) {
	bot := newBot(t)
	reg := tg.NewRegistry()

	var payload string
	require.NoError(t, reg.RegisterCallback("out", func(c tele.Context) error {
		payload = callbacks.CallbackPayload(c)
		return nil
	}))
	var unknown string
	reg.SetCallbackNotFound(func(c tele.Context) error {
		unknown = c.Callback().Data
		return nil
	})

	route := CallbackRoute(reg, CallbackOptions{})
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	require.NoError(t, route.Handler(callbackCtx(bot, callbacks.Encode("out", "video"))))
	assert.Equal(t, "video", payload)

	require.NoError(t, route.Handler(callbackCtx(bot, "garbage")))
	assert.Equal(t, "garbage", unknown)
}

func TestTextRoutes(t *testing.T) {
	bot := newBot(t)
	reg := tg.NewRegistry()

	var hits []string
	require.NoError(t, reg.RegisterCommand("/v", commands.Command{
		Description: "download",
		Aliases:     []string{"video"},
		Handler:     func(c tele.Context) error { hits = append(hits, "v:"+c.Text()); return nil },
	}))
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{
		Description: "stats",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { hits = append(hits, "stats"); return nil },
	}))
	reg.SetTextFallback(func(c tele.Context) error { hits = append(hits, "fallback:"+c.Text()); return nil })

	routes := TextRoutes(reg, TextOptions{})
	require.Len(t, routes, 2)
	text := routes[0].Handler

	require.NoError(t, text(textCtx(bot, "/video https://youtu.be/x")))
	require.NoError(t, text(textCtx(bot, "https://youtu.be/x")))
	require.NoError(t, text(textCtx(bot, "/stats")))
	assert.Equal(t, []string{
		"v:/video https://youtu.be/x",
		"fallback:https://youtu.be/x",
		"fallback:/stats",
	}, hits)
}

func TestCommandRoutesIncludeAliases(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/v", commands.Command{
		Description: "download",
		Aliases:     []string{"video"},
		Handler:     func(tele.Context) error { return nil },
	}))

	routes := CommandRoutes(reg, CommandRouteOptions{})
	var endpoints []any
	for _, r := range routes {
		endpoints = append(endpoints, r.Endpoint)
	}
	assert.ElementsMatch(t, []any{"/v", "/video"}, endpoints)
}

type codedErr struct{}

func (codedErr) Error() string { return "download failed" }
func (codedErr) Code() string  { return "download failure" }

type plainErr struct{}

func (*plainErr) Error() string { return "x" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "DOWNLOAD_FAILURE", deriveErrorCode(fmt.Errorf("deliver: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", deriveErrorCode(&plainErr{}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "v", normalizeHandlerName("/v"))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "list_formats", normalizeHandlerName("List Formats"))
}
