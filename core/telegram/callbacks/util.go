package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// prefix marks callback data produced for buttons that carry a unique.
const prefix = "\f"

// Encode renders unique and payload the way telebot writes inline button data:
// \f<unique>|<payload>, or \f<unique> when the payload is empty.
func Encode(unique, payload string) string {
	if payload == "" {
		return prefix + unique
	}
	return prefix + unique + "|" + payload
}

// Decode splits raw callback data into unique and payload. Data that does not
// carry the telebot prefix or names no unique is reported as malformed.
func Decode(data string) (string, string, bool) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return "", "", false
	}
	unique, payload, _ := strings.Cut(raw, "|")
	unique = strings.TrimSpace(unique)
	if unique == "" {
		return "", "", false
	}
	return unique, payload, true
}

// ParseCallbackData returns unique and payload of cb. When telebot already
// matched a registered unique, Data holds only the payload.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	if unique, payload, ok := Decode(cb.Data); ok {
		return unique, payload
	}
	// Buttons built without a unique keep their raw data.
	return "", cb.Data
}

// CallbackKey returns the unique of the pressed button.
func CallbackKey(c tele.Context) string {
	unique, _ := ParseCallbackData(c.Callback())
	return unique
}

// CallbackPayload returns the payload that follows the unique.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}
