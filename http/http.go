package httpx

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"ota-serve/ota"
	"ota-serve/pkg/logger"
)

// NewHandler routes the manifest and image paths to svc. Everything else
// gets the mux's default 404.
func NewHandler(svc *ota.Service, log *logger.Logger) http.Handler {
	h := &handler{svc: svc, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ota.ManifestPath, h.serveManifest)
	mux.HandleFunc("GET "+ota.BinaryPath, h.serveBinary)
	return logRequests(mux, log)
}

type handler struct {
	svc *ota.Service
	log *logger.Logger
}

func (h *handler) serveManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Manifest()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(m.String())))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = m.WriteTo(w)

	h.log.WithFields(logger.Fields{
		"version":  m.Version,
		"size":     humanize.Bytes(uint64(m.Size)),
		"checksum": m.Checksum,
	}).Debug("manifest built")
}

func (h *handler) serveBinary(w http.ResponseWriter, r *http.Request) {
	f, size, err := h.svc.OpenArtifact()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.CopyN(w, f, size); err != nil {
		h.log.WithError(err).Warnf("short write of %s to %s", h.svc.Artifact().Path(), r.RemoteAddr)
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, fs.ErrNotExist) {
		code = http.StatusNotFound
	}
	// the body stays generic; paths and causes only go to the log
	h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	http.Error(w, http.StatusText(code), code)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

func logRequests(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		log.WithFields(logger.Fields{
			"request_id": uuid.NewString(),
			"remote":     r.RemoteAddr,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"bytes":      rec.bytes,
			"duration":   time.Since(start).String(),
		}).Info("http request")
	})
}

// StartHTTPServer listens on addr and serves handler in the background.
// It returns the listener so the caller can manage lifecycle if needed.
func StartHTTPServer(addr string, handler http.Handler, log *logger.Logger) (net.Listener, error) {
	if addr == "" {
		addr = ":" + strconv.Itoa(ota.DefaultPort)
	}
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp4", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: handler}
	go func() {
		log.Infof("http server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			log.WithError(err).Error("http serve error")
		}
	}()
	return ln, nil
}
