package dialogue

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	textUsage       = "Send me a link: /v <url>"
	textChooseKind  = "Do you want the full video or just audio?"
	textBusy        = "I'm still working on your previous link. Please wait until it's delivered."
	textAlready     = "Already working on it…"
	textQueued      = "Queued, waiting for a free slot…"
	textDownloading = "Downloading…"
	textUploading   = "Uploading…"
	textDone        = "Done ✅"
	textNoFormats   = "No formats found for this link."
	textFormatUsage = "Send me a link: /formats <url>"
	textPickFormat  = "Choose a source format:"
	textBestFormat  = "⭐ Best quality"
	textNotOffered  = "That format is not on offer, pick one from the list."

	maxCaptionRunes  = 1024
	maxFileNameRunes = 120
	maxInputEcho     = 200
	maxFormatButtons = 40
)

// fileName builds a safe attachment name from the remote title.
func fileName(title, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, title)
	name = strings.Trim(strings.TrimSpace(name), ".")
	name = truncateRunes(name, maxFileNameRunes)
	if name == "" {
		name = "media"
	}
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
