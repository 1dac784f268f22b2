// Package dialogue drives a user from a submitted link to a delivered file:
// IDLE → AWAITING_OUTPUT_CHOICE → DOWNLOADING → UPLOADING → IDLE. /formats
// adds an AWAITING_FORMAT step in front of the output choice.
package dialogue

import (
	"regexp"

	"github.com/Myudi422/youtube-telegram-downloader/core/media"
)

const (
	// OutputButton is the callback unique shared by the audio and video buttons.
	OutputButton = "out"
	// FormatButton is the callback unique of the format menu; the payload is
	// a yt-dlp format_id or BestFormat.
	FormatButton = "fmt"
	// BestFormat selects the output kind's default selector.
	BestFormat = "best"
)

// formatIDPattern bounds format ids so they fit the 64-byte callback data.
var formatIDPattern = regexp.MustCompile(`^[A-Za-z0-9._+=-]{1,48}$`)

// ValidFormatID reports whether id can be carried by a format button.
func ValidFormatID(id string) bool { return formatIDPattern.MatchString(id) }

// Origin identifies who sent an event and, for button presses, which
// callback and message it came from.
type Origin struct {
	UserID     int64
	ChatID     int64
	CallbackID string
	Message    MessageRef
}

func (o Origin) origin() Origin { return o }

// Event is one of Submit, ChooseOutput, ListFormats, ChooseFormat or
// Unrecognized.
type Event interface {
	origin() Origin
}

// Submit starts a request for URL.
type Submit struct {
	Origin
	URL string
}

// ChooseOutput is the audio/video button press.
type ChooseOutput struct {
	Origin
	Kind media.OutputKind
}

// ListFormats asks for the formats offered for URL.
type ListFormats struct {
	Origin
	URL string
}

// ChooseFormat is a press on the format menu.
type ChooseFormat struct {
	Origin
	FormatID string
}

// Unrecognized is any button press the dialogue does not understand.
type Unrecognized struct {
	Origin
	Data string
}

// DecodeButton maps callback unique and payload to an event. Malformed
// data never fails; it becomes Unrecognized.
func DecodeButton(o Origin, unique, payload string) Event {
	switch unique {
	case OutputButton:
		if kind, ok := media.ParseOutputKind(payload); ok {
			return ChooseOutput{Origin: o, Kind: kind}
		}
	case FormatButton:
		if ValidFormatID(payload) {
			return ChooseFormat{Origin: o, FormatID: payload}
		}
	}
	data := unique
	if payload != "" {
		data += "|" + payload
	}
	return Unrecognized{Origin: o, Data: data}
}

// OutputButtons are the two choices offered for a supported link.
func OutputButtons() []Button {
	return []Button{
		{Text: "🎵 Audio", Unique: OutputButton, Data: string(media.KindAudio)},
		{Text: "🎬 Video", Unique: OutputButton, Data: string(media.KindVideo)},
	}
}
