package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	"github.com/Myudi422/youtube-telegram-downloader/core/staging"
)

// YTDLP resolves media by shelling out to yt-dlp through go-ytdlp.
type YTDLP struct {
	checker    *SupportChecker
	executable string
}

// NewYTDLP returns a resolver that accepts the given hosts. An empty
// executable means yt-dlp is looked up in PATH.
func NewYTDLP(hosts []string, executable string) *YTDLP {
	return &YTDLP{checker: NewSupportChecker(hosts), executable: strings.TrimSpace(executable)}
}

// EnsureInstalled downloads a yt-dlp release into the go-ytdlp cache when no
// explicit executable is configured.
func (y *YTDLP) EnsureInstalled(ctx context.Context) error {
	if y.executable != "" {
		return nil
	}
	start := time.Now()
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}
	logger.Info(ctx, "media", "ytdlp.install",
		slog.String("status", "ok"),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Supports implements Resolver.
func (y *YTDLP) Supports(rawURL string) bool {
	return y.checker.Supports(rawURL)
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoPlaylist().NoProgress()
	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}
	return cmd
}

// Metadata implements Resolver using --dump-single-json without downloading.
func (y *YTDLP) Metadata(ctx context.Context, rawURL string) (Metadata, error) {
	start := time.Now()
	res, err := y.command().SkipDownload().DumpSingleJSON().Run(ctx, rawURL)
	if err != nil {
		return Metadata{}, runError(ctx, "metadata", res, err)
	}
	meta, err := parseMetadata(res.Stdout)
	if err != nil {
		return Metadata{}, err
	}
	logger.Debug(ctx, "media", "metadata.done",
		slog.String("title", logger.SanitizeLimit(meta.Title, 120)),
		slog.Int("formats", len(meta.Formats)),
		slog.Duration("duration", logger.Took(start)),
	)
	return meta, nil
}

// Download implements Resolver. The converted file is located next to the
// output pattern, by the directive's extension first.
func (y *YTDLP) Download(ctx context.Context, req DownloadRequest) (string, error) {
	if req.PostProcess == nil {
		return "", fmt.Errorf("media: download without post-process directive")
	}
	cmd := y.command().
		ForceOverwrites().
		Format(req.Format).
		Output(req.OutputPattern).
		WriteThumbnail().
		ConvertThumbnails("jpg")

	switch pp := req.PostProcess.(type) {
	case ExtractAudio:
		cmd = cmd.ExtractAudio().AudioFormat(pp.Codec).AudioQuality(pp.Quality)
	case RemuxVideo:
		cmd = cmd.MergeOutputFormat(pp.Container).RemuxVideo(pp.Container)
	}

	start := time.Now()
	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		return "", runError(ctx, "download", res, err)
	}
	path, err := LocateOutput(req.OutputPattern, req.PostProcess.Ext())
	if err != nil {
		return "", err
	}
	logger.Debug(ctx, "media", "download.done",
		slog.String("path", path),
		slog.Duration("duration", logger.Took(start)),
	)
	return path, nil
}

// LocateOutput finds the converted artifact produced for pattern.
func LocateOutput(pattern, ext string) (string, error) {
	stem := strings.TrimSuffix(pattern, ".%(ext)s")
	if ext != "" {
		want := stem + "." + ext
		if fi, err := os.Stat(want); err == nil && !fi.IsDir() {
			return want, nil
		}
	}
	matches, err := staging.Siblings(stem + ".")
	if err != nil {
		return "", fmt.Errorf("media: locate output: %w", err)
	}
	for _, m := range matches {
		if !isSideProduct(m) {
			return m, nil
		}
	}
	return "", ErrNoOutput
}

// ThumbnailPath returns the local thumbnail written next to pattern, if any.
func ThumbnailPath(pattern string) string {
	p := strings.TrimSuffix(pattern, ".%(ext)s") + ".jpg"
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() && fi.Size() > 0 {
		return p
	}
	return ""
}

func isSideProduct(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".part", ".ytdl", ".jpg", ".jpeg", ".png", ".webp", ".temp":
		return true
	}
	return false
}

func runError(ctx context.Context, op string, res *ytdlp.Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(ctxErr, err)
	}
	if res != nil {
		if tail := lastLine(res.Stderr); tail != "" {
			return fmt.Errorf("yt-dlp %s: %w (%s)", op, err, tail)
		}
	}
	return fmt.Errorf("yt-dlp %s: %w", op, err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return logger.SanitizeLimit(s, 300)
}

type rawInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Thumbnail  string      `json:"thumbnail"`
	Duration   float64     `json:"duration"`
	Formats    []rawFormat `json:"formats"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	FPS            float64 `json:"fps"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
}

func parseMetadata(stdout string) (Metadata, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return Metadata{}, fmt.Errorf("yt-dlp metadata: empty output")
	}
	var info rawInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp metadata: decode: %w", err)
	}
	meta := Metadata{
		ID:        info.ID,
		Title:     strings.TrimSpace(info.Title),
		Thumbnail: info.Thumbnail,
		Duration:  info.Duration,
	}
	if meta.Thumbnail == "" && len(info.Thumbnails) > 0 {
		meta.Thumbnail = info.Thumbnails[len(info.Thumbnails)-1].URL
	}
	if meta.Title == "" {
		meta.Title = info.ID
	}
	for _, f := range info.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		meta.Formats = append(meta.Formats, Format{
			ID:       f.FormatID,
			Ext:      f.Ext,
			Note:     f.FormatNote,
			Width:    int(f.Width),
			Height:   int(f.Height),
			FPS:      f.FPS,
			Filesize: int64(size),
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
		})
	}
	return meta, nil
}
