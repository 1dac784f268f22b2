package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
	"github.com/Myudi422/youtube-telegram-downloader/core/media"
	"github.com/Myudi422/youtube-telegram-downloader/core/staging"
	"github.com/Myudi422/youtube-telegram-downloader/core/telegram/state"
)

const component = "dialogue"

// Config tunes the engine. Zero values get defaults in New.
type Config struct {
	Profile         media.Profile
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	MaxUploadBytes  int64
	MaxParallel     int
}

// Request is one delivery, owned by the goroutine that runs it.
type Request struct {
	ID         string
	UserID     int64
	ChatID     int64
	URL        string
	Kind       media.OutputKind
	// Format is the yt-dlp selector; empty means Kind's default.
	Format     string
	Title      string
	Thumbnail  string
	StagedPath string
	Status     MessageRef
	CallbackID string
	Acked      bool
}

func (r Request) selector() string {
	if r.Format != "" {
		return r.Format
	}
	return r.Kind.Selector()
}

// Engine is the dialogue state machine.
type Engine struct {
	resolver  media.Resolver
	transport Transport
	sessions  *state.Manager
	stager    *staging.Stager
	cfg       Config

	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	inFlight atomic.Int64

	mu     sync.Mutex
	closed bool

	root   context.Context
	cancel context.CancelFunc
	newID  func() string
}

// New wires the engine to its collaborators.
func New(resolver media.Resolver, transport Transport, sessions *state.Manager, stager *staging.Stager, cfg Config) *Engine {
	if cfg.Profile == (media.Profile{}) {
		cfg.Profile = media.DefaultProfile
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = time.Minute
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 10 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	root, cancel := context.WithCancel(context.Background())
	return &Engine{
		resolver:  resolver,
		transport: transport,
		sessions:  sessions,
		stager:    stager,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxParallel)),
		root:      root,
		cancel:    cancel,
		newID:     uuid.NewString,
	}
}

// Handle processes one event. Failures are answered in chat before they are
// returned; the returned error is for logging only.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case Submit:
		return e.submit(ctx, ev)
	case ChooseOutput:
		return e.choose(ctx, ev)
	case ListFormats:
		return e.listFormats(ctx, ev)
	case ChooseFormat:
		return e.chooseFormat(ctx, ev)
	case Unrecognized:
		return e.unrecognized(ctx, ev)
	default:
		return nil
	}
}

// InFlight reports the number of running background tasks.
func (e *Engine) InFlight() int64 { return e.inFlight.Load() }

// Wait blocks until background tasks finish or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting deliveries and waits for running ones until ctx
// is done; then it cancels them so their staged files are released.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	err := e.Wait(ctx)
	if err != nil {
		logger.Warn(ctx, component, "shutdown.cancel", slog.Int64("in_flight", e.InFlight()))
		e.cancel()
		_ = e.Wait(context.Background())
		return err
	}
	e.cancel()
	return nil
}

var errBusy = errors.New("dialogue: delivery in progress")

func unsupported(raw string) *Failure {
	return &Failure{
		Kind:  KindUnsupportedURL,
		Err:   media.ErrUnsupported,
		Input: logger.SanitizeLimit(raw, maxInputEcho),
	}
}

func (e *Engine) submit(ctx context.Context, ev Submit) error {
	raw := strings.TrimSpace(ev.URL)
	if raw == "" {
		_, err := e.transport.SendText(ctx, ev.ChatID, textUsage, nil)
		return err
	}
	url := raw
	if n, ok := media.NormalizeURL(raw); ok {
		url = n
	}
	if !e.resolver.Supports(url) {
		f := unsupported(raw)
		e.reply(ctx, ev.ChatID, f.Message())
		return f
	}

	_, err := e.sessions.Update(ctx, ev.UserID, func(s *state.Session) error {
		if s.Busy() {
			return errBusy
		}
		s.State = state.StateAwaitingOutput
		s.PendingURL = url
		s.OutputKind = ""
		s.FormatID, s.Formats = "", nil
		s.RequestID = ""
		s.PromptChatID, s.PromptMessageID = 0, ""
		return nil
	})
	if errors.Is(err, errBusy) {
		e.reply(ctx, ev.ChatID, textBusy)
		logger.Info(ctx, component, "submit.busy", slog.String("status", "busy"))
		return nil
	}
	if err != nil {
		e.reply(ctx, ev.ChatID, ErrStagingIO.Message())
		return fmt.Errorf("submit: %w", err)
	}

	prompt, err := e.transport.SendText(ctx, ev.ChatID, textChooseKind, OutputButtons())
	if err != nil {
		return fmt.Errorf("submit: send prompt: %w", err)
	}
	_, err = e.sessions.Update(ctx, ev.UserID, func(s *state.Session) error {
		if s.State != state.StateAwaitingOutput || s.PendingURL != url {
			return nil
		}
		s.PromptChatID, s.PromptMessageID = prompt.ChatID, prompt.MessageID
		return nil
	})
	logger.Info(ctx, component, "submit.accepted",
		slog.String("state", string(state.StateAwaitingOutput)),
		slog.String("url", logger.SanitizeLimit(url, maxInputEcho)),
	)
	return err
}

func (e *Engine) choose(ctx context.Context, ev ChooseOutput) error {
	var (
		noActive bool
		already  bool
		req      Request
	)
	s, err := e.sessions.Update(ctx, ev.UserID, func(s *state.Session) error {
		switch {
		case s.Busy():
			already = true
			return errBusy
		case s.PendingURL == "" || s.State != state.StateAwaitingOutput:
			noActive = true
			return ErrNoActiveRequest
		}
		s.OutputKind = ev.Kind
		s.RequestID = e.newID()
		s.State = state.StateDownloading
		return nil
	})

	switch {
	case already:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, textAlready)
		return nil
	case noActive:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, "")
		e.reply(ctx, ev.ChatID, ErrNoActiveRequest.Message())
		return newFailure(KindNoActiveRequest, errors.New("button pressed without pending url"))
	case err != nil:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, "")
		e.reply(ctx, ev.ChatID, ErrStagingIO.Message())
		return fmt.Errorf("choose: %w", err)
	}

	ackErr := e.transport.Acknowledge(ctx, ev.CallbackID, "")
	req = Request{
		ID:         s.RequestID,
		UserID:     ev.UserID,
		ChatID:     ev.ChatID,
		URL:        s.PendingURL,
		Kind:       s.OutputKind,
		Format:     s.FormatID,
		Status:     ev.Message,
		CallbackID: ev.CallbackID,
		Acked:      ackErr == nil,
	}
	if req.Status.IsZero() && s.PromptMessageID != "" {
		req.Status = MessageRef{ChatID: s.PromptChatID, MessageID: s.PromptMessageID}
	}
	e.status(ctx, &req, textDownloading)

	if !e.spawn(func(bg context.Context) { e.deliver(bg, req) }) {
		e.finish(ctx, req, newFailure(KindDownload, errors.New("shutting down")))
	}
	return nil
}

// spawn runs fn detached from the handler's context but bound to the engine.
// It refuses new work once Shutdown has started.
func (e *Engine) spawn(fn func(ctx context.Context)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	e.inFlight.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)
		fn(e.root)
	}()
	return true
}

func (e *Engine) deliver(ctx context.Context, req Request) {
	ctx = logger.WithRequestID(ctx, req.ID)
	ctx = logger.WithUpdateMeta(ctx, 0, req.UserID, req.ChatID)
	start := time.Now()

	if !e.sem.TryAcquire(1) {
		e.status(ctx, &req, textQueued)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.finish(ctx, req, newFailure(KindDownload, err))
			return
		}
		e.status(ctx, &req, textDownloading)
	}
	defer e.sem.Release(1)

	var staged *staging.File
	err := e.run(ctx, &req, &staged)
	if staged != nil {
		if relErr := staged.Release(); relErr != nil {
			logger.Error(ctx, component, "staging.release",
				slog.String("path", staged.Stem),
				slog.String("err", relErr.Error()),
			)
		}
	}
	// a cancelled task still reports and resets its session
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}
	if err == nil && !req.Acked {
		req.Acked = e.transport.Acknowledge(ctx, req.CallbackID, "") == nil
	}
	e.finish(ctx, req, err)
	logger.Info(ctx, component, "delivery.done",
		slog.String("kind", string(req.Kind)),
		slog.String("status", statusOf(err)),
		slog.Duration("duration", logger.Took(start)),
	)
}

func (e *Engine) run(ctx context.Context, req *Request, staged **staging.File) error {
	mctx, cancel := context.WithTimeout(ctx, e.cfg.MetadataTimeout)
	meta, err := e.resolver.Metadata(mctx, req.URL)
	cancel()
	if err != nil {
		return newFailure(KindResolution, err)
	}
	req.Title = strings.TrimSpace(meta.Title)
	req.Thumbnail = meta.Thumbnail

	f, err := e.stager.Acquire()
	if err != nil {
		return newFailure(KindStagingIO, err)
	}
	*staged = f

	directive := e.cfg.Profile.Directive(req.Kind)
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DownloadTimeout)
	path, err := e.resolver.Download(dctx, media.DownloadRequest{
		URL:           req.URL,
		OutputPattern: f.Pattern,
		Format:        req.selector(),
		PostProcess:   directive,
	})
	cancel()
	if err != nil {
		return newFailure(KindDownload, err)
	}
	req.StagedPath = path

	if _, err := e.sessions.Update(ctx, req.UserID, func(s *state.Session) error {
		if s.RequestID == req.ID {
			s.State = state.StateUploading
		}
		return nil
	}); err != nil {
		logger.Warn(ctx, component, "session.update", slog.String("err", err.Error()))
	}
	e.status(ctx, req, textUploading)

	fi, err := os.Stat(path)
	if err != nil {
		return newFailure(KindStagingIO, err)
	}
	if fi.Size() > e.cfg.MaxUploadBytes {
		return &Failure{
			Kind:  KindFileTooLarge,
			Err:   fmt.Errorf("%d bytes exceeds %d", fi.Size(), e.cfg.MaxUploadBytes),
			Size:  fi.Size(),
			Limit: e.cfg.MaxUploadBytes,
		}
	}

	thumb := media.ThumbnailPath(f.Pattern)
	if thumb == "" {
		thumb = req.Thumbnail
	}
	doc := Document{
		Path:      path,
		FileName:  fileName(req.Title, directive.Ext()),
		Caption:   truncateRunes(req.Title, maxCaptionRunes),
		Thumbnail: thumb,
	}
	if err := e.transport.SendDocument(ctx, req.ChatID, doc); err != nil {
		return newFailure(KindUpload, err)
	}
	logger.Info(ctx, component, "upload.done",
		slog.String("title", logger.SanitizeLimit(req.Title, 120)),
		slog.Int64("size_bytes", fi.Size()),
	)
	return nil
}

// finish reports the outcome once and returns the session to idle.
func (e *Engine) finish(ctx context.Context, req Request, err error) {
	if err == nil {
		e.status(ctx, &req, textDone)
	} else {
		f := asFailure(err, KindDownload)
		logger.Error(ctx, component, "delivery.failed",
			slog.String("kind", string(req.Kind)),
			slog.String("url", logger.SanitizeLimit(req.URL, maxInputEcho)),
			slog.String("err", err.Error()),
			slog.String("err_code", f.Code()),
		)
		if !req.Acked {
			req.Acked = e.transport.Acknowledge(ctx, req.CallbackID, "") == nil
		}
		if req.Status.IsZero() || e.transport.EditText(ctx, req.Status, f.Message(), nil) != nil {
			e.reply(ctx, req.ChatID, f.Message())
		}
	}
	if _, rerr := e.sessions.Reset(ctx, req.UserID, req.ID); rerr != nil {
		logger.Error(ctx, component, "session.reset", slog.String("err", rerr.Error()))
	}
}

// listFormats fetches the formats of a link in the background and offers
// them as buttons. The session holds the link in AWAITING_FORMAT while the
// fetch runs; RequestID marks which fetch owns it.
func (e *Engine) listFormats(ctx context.Context, ev ListFormats) error {
	raw := strings.TrimSpace(ev.URL)
	if raw == "" {
		_, err := e.transport.SendText(ctx, ev.ChatID, textFormatUsage, nil)
		return err
	}
	url := raw
	if n, ok := media.NormalizeURL(raw); ok {
		url = n
	}
	if !e.resolver.Supports(url) {
		f := unsupported(raw)
		e.reply(ctx, ev.ChatID, f.Message())
		return f
	}

	listID := e.newID()
	_, err := e.sessions.Update(ctx, ev.UserID, func(s *state.Session) error {
		if s.Busy() {
			return errBusy
		}
		s.State = state.StateAwaitingFormat
		s.PendingURL = url
		s.OutputKind = ""
		s.FormatID, s.Formats = "", nil
		s.RequestID = listID
		s.PromptChatID, s.PromptMessageID = 0, ""
		return nil
	})
	if errors.Is(err, errBusy) {
		e.reply(ctx, ev.ChatID, textBusy)
		return nil
	}
	if err != nil {
		e.reply(ctx, ev.ChatID, ErrStagingIO.Message())
		return fmt.Errorf("formats: %w", err)
	}

	userID, chatID := ev.UserID, ev.ChatID
	if !e.spawn(func(bg context.Context) { e.offerFormats(bg, userID, chatID, url, listID) }) {
		f := newFailure(KindResolution, errors.New("shutting down"))
		e.reply(ctx, chatID, f.Message())
		e.dropFormats(ctx, userID, listID)
		return f
	}
	return nil
}

func (e *Engine) offerFormats(ctx context.Context, userID, chatID int64, url, listID string) {
	ctx = logger.WithRequestID(ctx, listID)
	ctx = logger.WithUpdateMeta(ctx, 0, userID, chatID)
	mctx, cancel := context.WithTimeout(ctx, e.cfg.MetadataTimeout)
	meta, err := e.resolver.Metadata(mctx, url)
	cancel()
	if ctx.Err() != nil {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer stop()
	}
	if err != nil {
		f := newFailure(KindResolution, err)
		logger.Error(ctx, component, "formats.failed",
			slog.String("err", err.Error()),
			slog.String("err_code", f.Code()),
		)
		e.reply(ctx, chatID, f.Message())
		e.dropFormats(ctx, userID, listID)
		return
	}

	buttons, offered := formatButtons(meta.Formats)
	if len(offered) == 0 {
		e.reply(ctx, chatID, textNoFormats)
		e.dropFormats(ctx, userID, listID)
		return
	}
	if _, err := e.sessions.Update(ctx, userID, func(s *state.Session) error {
		if s.RequestID != listID {
			return errStaleList
		}
		s.Formats = offered
		return nil
	}); err != nil {
		if !errors.Is(err, errStaleList) {
			logger.Warn(ctx, component, "session.update", slog.String("err", err.Error()))
		}
		return
	}

	text := textPickFormat
	if title := truncateRunes(strings.TrimSpace(meta.Title), 200); title != "" {
		text = title + "\n\n" + text
	}
	prompt, err := e.transport.SendText(ctx, chatID, text, buttons)
	if err != nil {
		logger.Warn(ctx, component, "formats.send", slog.String("err", err.Error()))
		e.dropFormats(ctx, userID, listID)
		return
	}
	if _, err := e.sessions.Update(ctx, userID, func(s *state.Session) error {
		if s.RequestID != listID {
			return nil
		}
		s.RequestID = ""
		s.PromptChatID, s.PromptMessageID = prompt.ChatID, prompt.MessageID
		return nil
	}); err != nil {
		logger.Warn(ctx, component, "session.update", slog.String("err", err.Error()))
	}
	logger.Info(ctx, component, "formats.offered",
		slog.Int("formats", len(offered)),
		slog.String("url", logger.SanitizeLimit(url, maxInputEcho)),
	)
}

var errStaleList = errors.New("dialogue: format list superseded")

// dropFormats returns the session to idle unless a newer request took it.
func (e *Engine) dropFormats(ctx context.Context, userID int64, listID string) {
	if _, err := e.sessions.Reset(ctx, userID, listID); err != nil {
		logger.Error(ctx, component, "session.reset", slog.String("err", err.Error()))
	}
}

// formatButtons builds the menu: best first, then sorted formats whose id
// fits a callback. It returns the offered ids without BestFormat.
func formatButtons(formats []media.Format) ([]Button, []string) {
	buttons := []Button{{Text: textBestFormat, Unique: FormatButton, Data: BestFormat}}
	var offered []string
	seen := make(map[string]bool)
	for _, f := range media.SortFormats(formats) {
		if !ValidFormatID(f.ID) || f.ID == BestFormat || seen[f.ID] {
			continue
		}
		if len(offered) == maxFormatButtons {
			break
		}
		seen[f.ID] = true
		offered = append(offered, f.ID)
		buttons = append(buttons, Button{Text: f.Label(), Unique: FormatButton, Data: f.ID})
	}
	return buttons, offered
}

// chooseFormat records the picked source format and moves on to the
// audio/video choice.
func (e *Engine) chooseFormat(ctx context.Context, ev ChooseFormat) error {
	var (
		noActive   bool
		already    bool
		notOffered bool
	)
	s, err := e.sessions.Update(ctx, ev.UserID, func(s *state.Session) error {
		switch {
		case s.Busy():
			already = true
			return errBusy
		case s.PendingURL == "" || s.State != state.StateAwaitingFormat:
			noActive = true
			return ErrNoActiveRequest
		case ev.FormatID != BestFormat && !isOffered(s.Formats, ev.FormatID):
			notOffered = true
			return errNotOffered
		}
		s.FormatID = ev.FormatID
		if ev.FormatID == BestFormat {
			s.FormatID = ""
		}
		s.Formats = nil
		s.RequestID = ""
		s.State = state.StateAwaitingOutput
		return nil
	})

	switch {
	case already:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, textAlready)
		return nil
	case noActive:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, "")
		e.reply(ctx, ev.ChatID, ErrNoActiveRequest.Message())
		return newFailure(KindNoActiveRequest, errors.New("format pressed without pending url"))
	case notOffered:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, textNotOffered)
		logger.Info(ctx, component, "format.not_offered",
			slog.String("format", logger.SanitizeLimit(ev.FormatID, 64)),
		)
		return nil
	case err != nil:
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, "")
		e.reply(ctx, ev.ChatID, ErrStagingIO.Message())
		return fmt.Errorf("choose format: %w", err)
	}

	_ = e.transport.Acknowledge(ctx, ev.CallbackID, "")
	prompt := ev.Message
	if prompt.IsZero() && s.PromptMessageID != "" {
		prompt = MessageRef{ChatID: s.PromptChatID, MessageID: s.PromptMessageID}
	}
	if prompt.IsZero() || e.transport.EditText(ctx, prompt, textChooseKind, OutputButtons()) != nil {
		sent, err := e.transport.SendText(ctx, ev.ChatID, textChooseKind, OutputButtons())
		if err != nil {
			return fmt.Errorf("choose format: send prompt: %w", err)
		}
		prompt = sent
	}
	_, err = e.sessions.Update(ctx, ev.UserID, func(cur *state.Session) error {
		if cur.State != state.StateAwaitingOutput || cur.PendingURL != s.PendingURL {
			return nil
		}
		cur.PromptChatID, cur.PromptMessageID = prompt.ChatID, prompt.MessageID
		return nil
	})
	logger.Info(ctx, component, "format.chosen",
		slog.String("format", ev.FormatID),
		slog.String("state", string(state.StateAwaitingOutput)),
	)
	return err
}

var errNotOffered = errors.New("dialogue: format not offered")

func isOffered(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (e *Engine) unrecognized(ctx context.Context, ev Unrecognized) error {
	if ev.CallbackID != "" {
		_ = e.transport.Acknowledge(ctx, ev.CallbackID, "")
	}
	logger.Debug(ctx, component, "event.unrecognized",
		slog.String("payload", logger.SanitizeLimit(ev.Data, 64)),
	)
	return nil
}

func (e *Engine) status(ctx context.Context, req *Request, text string) {
	if req.Status.IsZero() {
		return
	}
	if err := e.transport.EditText(ctx, req.Status, text, nil); err != nil {
		logger.Warn(ctx, component, "status.edit",
			slog.String("err", err.Error()),
		)
	}
}

func (e *Engine) reply(ctx context.Context, chatID int64, text string) {
	if _, err := e.transport.SendText(ctx, chatID, text, nil); err != nil {
		logger.Warn(ctx, component, "reply.failed", slog.String("err", err.Error()))
	}
}

func statusOf(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}
