package dialogue

import (
	"context"
	"strconv"
)

// MessageRef points at a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID string
}

// IsZero reports whether the ref points nowhere.
func (m MessageRef) IsZero() bool { return m.ChatID == 0 || m.MessageID == "" }

// MessageSig implements telebot's Editable.
func (m MessageRef) MessageSig() (string, int64) { return m.MessageID, m.ChatID }

// String renders chat:message for logs.
func (m MessageRef) String() string {
	return strconv.FormatInt(m.ChatID, 10) + ":" + m.MessageID
}

// Button is an inline keyboard button. Unique and Data form the callback payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Document is a local file to send as an attachment.
type Document struct {
	Path     string
	FileName string
	Caption  string
	// Thumbnail is a local path or an http(s) URL; empty means none.
	Thumbnail string
}

// Transport is what the dialogue needs from the chat client.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, buttons []Button) (MessageRef, error)
	EditText(ctx context.Context, msg MessageRef, text string, buttons []Button) error
	SendDocument(ctx context.Context, chatID int64, doc Document) error
	Acknowledge(ctx context.Context, callbackID, text string) error
}
