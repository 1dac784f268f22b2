package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Myudi422/youtube-telegram-downloader/core/dialogue"
	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// maxThumbnailBytes is the Bot API limit for document thumbnails.
const maxThumbnailBytes = 200 << 10

// Transport sends dialogue output through a telebot bot.
type Transport struct {
	bot    *tele.Bot
	client *http.Client
}

var _ dialogue.Transport = (*Transport)(nil)

// NewTransport wraps bot. client fetches remote thumbnails; nil uses
// http.DefaultClient.
func NewTransport(bot *tele.Bot, client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{bot: bot, client: client}
}

func markup(buttons []dialogue.Button) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, len(buttons))
	for i, b := range buttons {
		btns[i] = keyboard.InlineBtn{Text: b.Text, Unique: b.Unique, Data: b.Data}
	}
	perRow := 2
	if len(btns) > 2 {
		perRow = 1
	}
	return keyboard.InlineButtonsNPerRow(btns, perRow)
}

// SendText posts text with optional inline buttons and returns its reference.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, buttons []dialogue.Button) (dialogue.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return dialogue.MessageRef{}, err
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if rm := markup(buttons); rm != nil {
		opts.ReplyMarkup = rm
	}
	msg, err := t.bot.Send(tele.ChatID(chatID), text, opts)
	if err != nil {
		return dialogue.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	ref := dialogue.MessageRef{ChatID: chatID, MessageID: strconv.Itoa(msg.ID)}
	if msg.Chat != nil {
		ref.ChatID = msg.Chat.ID
	}
	return ref, nil
}

// EditText replaces the text of msg. An edit without buttons removes the
// inline keyboard; an edit that changes nothing is not an error.
func (t *Transport) EditText(ctx context.Context, msg dialogue.MessageRef, text string, buttons []dialogue.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.IsZero() {
		return errors.New("edit message: empty message reference")
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if rm := markup(buttons); rm != nil {
		opts.ReplyMarkup = rm
	}
	_, err := t.bot.Edit(msg, text, opts)
	if err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
		return fmt.Errorf("edit message %s: %w", msg, err)
	}
	return nil
}

// SendDocument uploads doc.Path as a document.
func (t *Transport) SendDocument(ctx context.Context, chatID int64, doc dialogue.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file := &tele.Document{
		File:     tele.FromDisk(doc.Path),
		FileName: doc.FileName,
		Caption:  doc.Caption,
	}
	if thumb := t.thumbnail(ctx, doc.Thumbnail); thumb != nil {
		file.Thumbnail = thumb
	}
	if _, err := t.bot.Send(tele.ChatID(chatID), file); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// Acknowledge answers a button press. Events that are not button presses
// have no callback id and need no answer.
func (t *Transport) Acknowledge(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text}); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// thumbnail loads src from disk or over http(s). A thumbnail is decoration,
// so failures are logged and the document goes out without one.
func (t *Transport) thumbnail(ctx context.Context, src string) *tele.Photo {
	switch {
	case src == "":
		return nil
	case !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://"):
		return &tele.Photo{File: tele.FromDisk(src)}
	}
	data, err := t.fetch(ctx, src)
	if err != nil {
		logger.Debug(ctx, "tg", "thumbnail.skip",
			slog.String("url", logger.SanitizeLimit(src, 256)),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return &tele.Photo{File: tele.FromReader(bytes.NewReader(data))}
}

func (t *Transport) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail status: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxThumbnailBytes {
		return nil, fmt.Errorf("thumbnail larger than %d bytes", maxThumbnailBytes)
	}
	return data, nil
}

// OriginFrom describes who sent the update in c.
func OriginFrom(c tele.Context) dialogue.Origin {
	var o dialogue.Origin
	if user := c.Sender(); user != nil {
		o.UserID = user.ID
	}
	if chat := c.Chat(); chat != nil {
		o.ChatID = chat.ID
	}
	if cb := c.Callback(); cb != nil {
		o.CallbackID = cb.ID
		if msg := cb.Message; msg != nil && msg.Chat != nil {
			o.Message = dialogue.MessageRef{ChatID: msg.Chat.ID, MessageID: strconv.Itoa(msg.ID)}
			if o.ChatID == 0 {
				o.ChatID = msg.Chat.ID
			}
		}
	}
	if o.ChatID == 0 {
		o.ChatID = o.UserID
	}
	return o
}
