// Package health serves liveness, readiness and delivery statistics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Myudi422/youtube-telegram-downloader/core/buildinfo"
	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
)

const component = "health"

// Options supplies the callbacks behind the endpoints. Nil funcs report zero
// values; a nil Ready reports ready.
type Options struct {
	Ready    func() bool
	InFlight func() int64
	Sessions func(ctx context.Context) (map[string]int, error)
}

// Stats is the /stats payload.
type Stats struct {
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	InFlight int64          `json:"in_flight"`
	Sessions map[string]int `json:"sessions,omitempty"`
}

type handlers struct {
	opts    Options
	started time.Time
}

// NewRouter registers /healthz, /readyz and /stats.
func NewRouter(opts Options) *mux.Router {
	h := &handlers{opts: opts, started: time.Now()}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.live).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ready).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	return r
}

func (h *handlers) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) ready(w http.ResponseWriter, _ *http.Request) {
	if h.opts.Ready != nil && !h.opts.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	out := Stats{
		Version: buildinfo.String(),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	if h.opts.InFlight != nil {
		out.InFlight = h.opts.InFlight()
	}
	if h.opts.Sessions != nil {
		sessions, err := h.opts.Sessions(r.Context())
		if err != nil {
			logger.Warn(r.Context(), component, "stats.sessions", slog.String("err", err.Error()))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session stats unavailable"})
			return
		}
		out.Sessions = sessions
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is a running health endpoint.
type Server struct {
	srv  *http.Server
	addr string
	done chan struct{}
}

// Start listens on listen and serves in the background.
func Start(listen string, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv: &http.Server{
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr: ln.Addr().String(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), component, "serve", slog.String("err", err.Error()))
		}
	}()
	logger.Info(context.Background(), component, "listen", slog.String("listen", s.addr))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.addr }

// Shutdown stops the server, waiting for open requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
