package dialogue

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Myudi422/youtube-telegram-downloader/core/media"
)

type fakeResolver struct {
	mu        sync.Mutex
	supported func(string) bool
	meta      media.Metadata
	metaErr   error
	dlErr     error
	payload   []byte
	thumbnail bool
	block     chan struct{}
	started   chan struct{}

	metaCalls int
	downloads []media.DownloadRequest
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		supported: func(u string) bool { return !strings.Contains(u, "notavideosite") },
		meta:      media.Metadata{Title: "Sample Title", Thumbnail: "https://img.example/t.jpg"},
		payload:   []byte("media-bytes"),
	}
}

func (r *fakeResolver) Supports(u string) bool { return r.supported(u) }

func (r *fakeResolver) Metadata(ctx context.Context, _ string) (media.Metadata, error) {
	r.mu.Lock()
	r.metaCalls++
	r.mu.Unlock()
	if r.metaErr != nil {
		return media.Metadata{}, r.metaErr
	}
	return r.meta, nil
}

func (r *fakeResolver) Download(ctx context.Context, req media.DownloadRequest) (string, error) {
	r.mu.Lock()
	r.downloads = append(r.downloads, req)
	r.mu.Unlock()

	stem := strings.TrimSuffix(req.OutputPattern, ".%(ext)s")
	// intermediate left by the extractor before post-processing
	if err := os.WriteFile(stem+".webm", []byte("raw"), 0o644); err != nil {
		return "", err
	}
	if r.thumbnail {
		if err := os.WriteFile(stem+".jpg", []byte("jpg"), 0o644); err != nil {
			return "", err
		}
	}
	if r.started != nil {
		close(r.started)
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.dlErr != nil {
		return "", r.dlErr
	}
	path := stem + "." + req.PostProcess.Ext()
	if err := os.WriteFile(path, r.payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (r *fakeResolver) metadataCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metaCalls
}

func (r *fakeResolver) requests() []media.DownloadRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]media.DownloadRequest(nil), r.downloads...)
}

type sentText struct {
	ChatID  int64
	Text    string
	Buttons []Button
}

type editedText struct {
	Msg  MessageRef
	Text string
}

type sentDoc struct {
	ChatID     int64
	Doc        Document
	Content    []byte
	ThumbExist bool
}

type ack struct {
	ID   string
	Text string
}

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int
	texts   []sentText
	edits   []editedText
	docs    []sentDoc
	acks    []ack
	docErr  error
	ackErrs int
}

func (t *fakeTransport) SendText(_ context.Context, chatID int64, text string, buttons []Button) (MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.texts = append(t.texts, sentText{ChatID: chatID, Text: text, Buttons: buttons})
	return MessageRef{ChatID: chatID, MessageID: strconv.Itoa(t.nextID)}, nil
}

func (t *fakeTransport) EditText(_ context.Context, msg MessageRef, text string, _ []Button) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edits = append(t.edits, editedText{Msg: msg, Text: text})
	return nil
}

func (t *fakeTransport) SendDocument(_ context.Context, chatID int64, doc Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.docErr != nil {
		return t.docErr
	}
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(doc.Thumbnail)
	t.docs = append(t.docs, sentDoc{ChatID: chatID, Doc: doc, Content: content, ThumbExist: statErr == nil})
	return nil
}

func (t *fakeTransport) Acknowledge(_ context.Context, id, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == "" {
		return nil
	}
	t.acks = append(t.acks, ack{ID: id, Text: text})
	if t.ackErrs > 0 {
		t.ackErrs--
		return errors.New("ack failed")
	}
	return nil
}

// visible returns every text the user can see, sends and edits alike.
func (t *fakeTransport) visible() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, s := range t.texts {
		out = append(out, s.Text)
	}
	for _, e := range t.edits {
		out = append(out, e.Text)
	}
	return out
}

func (t *fakeTransport) snapshot() ([]sentText, []editedText, []sentDoc, []ack) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentText(nil), t.texts...),
		append([]editedText(nil), t.edits...),
		append([]sentDoc(nil), t.docs...),
		append([]ack(nil), t.acks...)
}
