package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Myudi422/youtube-telegram-downloader/core/media"
)

// Kind classifies why a request could not be completed.
type Kind string

const (
	KindUnsupportedURL  Kind = "unsupported_url"
	KindNoActiveRequest Kind = "no_active_request"
	KindResolution      Kind = "resolution"
	KindDownload        Kind = "download"
	KindUpload          Kind = "upload"
	KindFileTooLarge    Kind = "file_too_large"
	KindStagingIO       Kind = "staging_io"
)

// Failure is the single error type that leaves the engine. Err keeps the
// diagnostic cause for logs; users only ever see Message.
type Failure struct {
	Kind  Kind
	Err   error
	Input string
	Size  int64
	Limit int64
}

// Sentinels for errors.Is.
var (
	ErrUnsupportedURL  = &Failure{Kind: KindUnsupportedURL}
	ErrNoActiveRequest = &Failure{Kind: KindNoActiveRequest}
	ErrResolution      = &Failure{Kind: KindResolution}
	ErrDownload        = &Failure{Kind: KindDownload}
	ErrUpload          = &Failure{Kind: KindUpload}
	ErrFileTooLarge    = &Failure{Kind: KindFileTooLarge}
	ErrStagingIO       = &Failure{Kind: KindStagingIO}
)

func newFailure(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "dialogue: " + string(f.Kind)
	}
	return fmt.Sprintf("dialogue: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Code feeds the err_code log attribute.
func (f *Failure) Code() string { return strings.ToUpper(string(f.Kind)) }

// Is matches failures of the same kind. FileTooLarge also matches ErrUpload.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok || t.Err != nil {
		return false
	}
	if t.Kind == f.Kind {
		return true
	}
	return t.Kind == KindUpload && f.Kind == KindFileTooLarge
}

// Message is the user-facing text for the failure.
func (f *Failure) Message() string {
	switch f.Kind {
	case KindUnsupportedURL:
		return fmt.Sprintf("Sorry, I can't download from %q. Send a link from YouTube or another supported video site.", f.Input)
	case KindNoActiveRequest:
		return "There is no active request. Please send the link again with /v <url>."
	case KindResolution:
		return "I couldn't read that video. Check the link or try a different one."
	case KindDownload:
		return "The download failed. Please try again later or try a different link."
	case KindFileTooLarge:
		return fmt.Sprintf("The file is too large to send (%s, limit %s). Try the audio version instead.",
			media.HumanSize(f.Size), media.HumanSize(f.Limit))
	case KindUpload:
		return "I couldn't send the file. Please try again later."
	default:
		return "Something went wrong on my side. Please try again."
	}
}

// asFailure returns err as a Failure, classifying unknown errors as fallback.
func asFailure(err error, fallback Kind) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return newFailure(fallback, err)
}
