// Package media defines the resolver capability used by the dialogue engine
// and its yt-dlp backed implementation.
package media

import (
	"context"
	"errors"
	"strings"
)

// OutputKind is the user's choice between the audio track and the full video.
type OutputKind string

const (
	KindAudio OutputKind = "audio"
	KindVideo OutputKind = "video"
)

// Format selectors handed to yt-dlp for each output kind.
const (
	SelectorBestAudio = "bestaudio/best"
	SelectorBestVideo = "bestvideo+bestaudio/best"
)

var (
	// ErrUnsupported wraps the failure for URLs rejected by the host check.
	ErrUnsupported = errors.New("media: unsupported url")
	// ErrNoOutput is returned when a download finished without a usable file.
	ErrNoOutput = errors.New("media: download produced no output file")
)

// ParseOutputKind accepts "audio" or "video" in any case.
func ParseOutputKind(s string) (OutputKind, bool) {
	switch OutputKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAudio:
		return KindAudio, true
	case KindVideo:
		return KindVideo, true
	}
	return "", false
}

// Valid reports whether k is one of the known kinds.
func (k OutputKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// Selector returns the yt-dlp format selector for the kind.
func (k OutputKind) Selector() string {
	if k == KindAudio {
		return SelectorBestAudio
	}
	return SelectorBestVideo
}

// PostProcess is a conversion directive applied after download.
// The set of directives is closed: ExtractAudio and RemuxVideo.
type PostProcess interface {
	// Ext is the extension of the file the directive produces.
	Ext() string
	postProcess()
}

// ExtractAudio transcodes the audio stream to Codec at Quality.
type ExtractAudio struct {
	Codec   string
	Quality string
}

func (a ExtractAudio) Ext() string { return a.Codec }
func (ExtractAudio) postProcess()  {}

// RemuxVideo merges and remuxes the streams into Container.
type RemuxVideo struct {
	Container string
}

func (v RemuxVideo) Ext() string { return v.Container }
func (RemuxVideo) postProcess()  {}

// Profile holds the fixed conversion targets.
type Profile struct {
	AudioCodec     string
	AudioQuality   string
	VideoContainer string
}

// DefaultProfile converts audio to 192K mp3 and video to mp4.
var DefaultProfile = Profile{AudioCodec: "mp3", AudioQuality: "192K", VideoContainer: "mp4"}

// Directive returns the post-processing step for kind.
func (p Profile) Directive(kind OutputKind) PostProcess {
	if kind == KindAudio {
		return ExtractAudio{Codec: p.AudioCodec, Quality: p.AudioQuality}
	}
	return RemuxVideo{Container: p.VideoContainer}
}

// Metadata is what the resolver learns about a URL without downloading it.
type Metadata struct {
	ID        string
	Title     string
	Thumbnail string
	Duration  float64
	Formats   []Format
}

// Format describes one encoding offered by the source.
type Format struct {
	ID       string
	Ext      string
	Note     string
	Width    int
	Height   int
	FPS      float64
	Filesize int64
	VCodec   string
	ACodec   string
}

// DownloadRequest carries everything the resolver needs for one download.
// OutputPattern is a yt-dlp output template such as "/dir/<id>.%(ext)s".
type DownloadRequest struct {
	URL           string
	OutputPattern string
	Format        string
	PostProcess   PostProcess
}

// Resolver inspects, downloads and converts remote media.
type Resolver interface {
	// Supports is a cheap host check; it never touches the network.
	Supports(rawURL string) bool
	Metadata(ctx context.Context, rawURL string) (Metadata, error)
	// Download returns the path of the converted file.
	Download(ctx context.Context, req DownloadRequest) (string, error)
}
