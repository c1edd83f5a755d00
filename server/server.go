package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mapview/models"
	"mapview/render"

	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed for in-flight requests when shutting down.
	closeGracePeriod = 5 * time.Second
	// How often the page reloads the snapshot.
	refreshPeriod = 250 * time.Millisecond
)

// Triggers are the exploration server's one-shot endpoints, fired from the page buttons.
type Triggers interface {
	Start()
	FSP()
}

// Server is the viewer: it keeps the most recent rendering of the map and serves
// it as a png, together with a page that displays it and the trigger buttons.
// Frames are rendered one at a time in arrival order; the only state shared with
// the http handlers is the encoded snapshot.
type Server struct {
	addr         string
	renderer     *render.Renderer
	triggers     Triggers
	snapshotPath string
	router       *mux.Router

	mu       sync.RWMutex
	snapshot []byte
	rendered int
}

// NewServer renders the blank map and sets up the routes. If snapshotPath is
// non-empty every rendered frame is also written there.
func NewServer(
	addr string,
	renderer *render.Renderer,
	triggers Triggers,
	snapshotPath string,
) (*Server, error) {
	server := &Server{
		addr:         addr,
		renderer:     renderer,
		triggers:     triggers,
		snapshotPath: snapshotPath,
		router:       mux.NewRouter(),
	}

	if err := server.render(renderer.Blank()); err != nil {
		return nil, err
	}

	server.router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	server.router.HandleFunc("/snapshot.png", server.serveSnapshot).Methods(http.MethodGet)
	server.router.HandleFunc("/start", server.serveTrigger(triggers.Start)).Methods(http.MethodPost)
	server.router.HandleFunc("/fsp", server.serveTrigger(triggers.FSP)).Methods(http.MethodPost)
	return server, nil
}

// Handler returns the viewer's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Str("addr", server.addr).Msg("viewer listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// HandleFrame renders the frame and replaces the current snapshot. Rendering
// failures are logged and leave the previous snapshot in place.
func (server *Server) HandleFrame(frame models.Frame) {
	if err := server.render(frame); err != nil {
		log.Warn().Err(err).Msg("render failed")
	}
}

// Consume handles frames in order until the channel closes or ctx is done.
func (server *Server) Consume(ctx context.Context, frames <-chan models.Frame) {
	for frame := range channerics.OrDone(ctx.Done(), frames) {
		server.HandleFrame(frame)
	}
}

// Snapshot returns the most recent png and the number of frames rendered so far,
// counting the initial blank map.
func (server *Server) Snapshot() ([]byte, int) {
	server.mu.RLock()
	defer server.mu.RUnlock()
	return server.snapshot, server.rendered
}

func (server *Server) render(frame models.Frame) error {
	png, err := server.renderer.Snapshot(frame)
	if err != nil {
		return err
	}

	server.mu.Lock()
	server.snapshot = png
	server.rendered++
	server.mu.Unlock()

	if server.snapshotPath != "" {
		if err = writeFile(server.snapshotPath, png); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	return nil
}

// writeFile replaces path via a temp file so readers never see a partial png.
func writeFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	err = os.Rename(tmp.Name(), path)
	return
}

func (server *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	png, _ := server.Snapshot()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// serveTrigger fires and forgets; the response never reflects the outcome.
func (server *Server) serveTrigger(fire func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fire()
		w.WriteHeader(http.StatusAccepted)
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.renderer); err != nil {
		log.Warn().Err(err).Msg("index template")
	}
}

var indexTemplate = template.Must(template.New("index.html").Parse(`<!DOCTYPE html>
<html>
	<head>
		<link rel="icon" href="data:,">
		<title>mapview</title>
	</head>
	<body style="background: #252a33;">
		<img id="map" src="/snapshot.png" width="{{ .Width }}" height="{{ .Height }}">
		<div>
			<button id="start">Start</button>
			<button id="FSP">FSP</button>
		</div>
		<script>
			document.getElementById("start").addEventListener("click", () => fetch("/start", {method: "POST"}));
			document.getElementById("FSP").addEventListener("click", () => fetch("/fsp", {method: "POST"}));
			setInterval(() => {
				document.getElementById("map").src = "/snapshot.png?t=" + Date.now();
			}, {{ .RefreshMillis }});
		</script>
	</body>
</html>
`))

func renderTemplate(w io.Writer, renderer *render.Renderer) error {
	return indexTemplate.Execute(w, struct {
		Width, Height int
		RefreshMillis int64
	}{
		Width:         int(renderer.Width()),
		Height:        int(renderer.Height()),
		RefreshMillis: refreshPeriod.Milliseconds(),
	})
}
