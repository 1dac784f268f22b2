package state

import (
	"context"
	"time"

	"github.com/Myudi422/youtube-telegram-downloader/core/media"
)

// State identifies a step of the download dialogue.
type State string

const (
	// StateIdle indicates there is no active request for the user.
	StateIdle State = "idle"
	// StateAwaitingFormat waits for a source format button from /formats.
	StateAwaitingFormat State = "awaiting_format"
	// StateAwaitingOutput waits for the audio/video button.
	StateAwaitingOutput State = "awaiting_output"
	// StateDownloading covers metadata fetch, download and conversion.
	StateDownloading State = "downloading"
	// StateUploading covers sending the document to the chat.
	StateUploading State = "uploading"
)

// Busy reports whether a delivery is in flight.
func (s State) Busy() bool {
	return s == StateDownloading || s == StateUploading
}

// Session is the per-user dialogue record.
type Session struct {
	State      State
	PendingURL string
	OutputKind media.OutputKind
	// FormatID is the source format picked from the format menu; empty
	// means the output kind's default selector.
	FormatID string
	// Formats lists the format ids offered by the last format menu.
	Formats []string
	// RequestID identifies the delivery that owns the session while busy.
	RequestID string
	// PromptChatID and PromptMessageID locate the message with the choice
	// buttons; it is edited to show progress.
	PromptChatID    int64
	PromptMessageID string
	UpdatedAt       time.Time
}

// Busy reports whether the session's delivery is still running.
func (s Session) Busy() bool { return s.State.Busy() }

// Store persists sessions keyed by Telegram user id. Implementations must be
// safe for concurrent use; Manager adds per-user serialization on top.
type Store interface {
	Load(ctx context.Context, userID int64) (Session, bool, error)
	Save(ctx context.Context, userID int64, s Session) error
	Delete(ctx context.Context, userID int64) error
	// ResetActive drops sessions left busy by a previous process.
	ResetActive(ctx context.Context) (int, error)
	// Stats counts sessions per state.
	Stats(ctx context.Context) (map[State]int, error)
}
