package buildinfo

// Set at link time:
//
//	-X 'github.com/Myudi422/youtube-telegram-downloader/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/Myudi422/youtube-telegram-downloader/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/Myudi422/youtube-telegram-downloader/core/buildinfo.Date=2026-01-02T12:00:00Z'
var (
	// Version reports the release tag of the binary.
	Version = "dev"
	// Commit reports the source revision.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders the build identity on one line for the version command.
func String() string {
	s := Version + " (" + Commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}
