// Package server is the browser front end: upload a scan, review every page
// next to its OCR text, choose pages and download the export.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/wudi/pdfocr/observability"
	"github.com/wudi/pdfocr/ocr"
	"github.com/wudi/pdfocr/recognize"
	"github.com/wudi/pdfocr/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures a Server.
type Options struct {
	// MaxUploadBytes limits the size of an uploaded PDF.
	MaxUploadBytes int64
	// MaxConnections caps concurrent connections; 0 means unlimited.
	MaxConnections int
	// Defaults are the OCR options of a freshly uploaded document.
	Defaults recognize.Options
}

// Server holds the single in-memory session. Every handler that reads or
// changes it holds mu, so preview and export never overlap.
type Server struct {
	svc    *session.Service
	opts   Options
	logger observability.Logger
	tmpl   *template.Template
	hub    *progressHub
	router *http.ServeMux

	mu   sync.Mutex
	sess *session.Session
}

// New creates a server around svc.
func New(svc *session.Service, opts Options, logger observability.Logger) (*Server, error) {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 200 << 20
	}
	if opts.Defaults.Language == "" {
		opts.Defaults = recognize.DefaultOptions()
	}
	logger = observability.OrNop(logger)
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"languages": ocr.Languages,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logger,
		tmpl:   tmpl,
		hub:    newProgressHub(logger),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /settings", s.handleSettings)
	mux.HandleFunc("POST /select", s.handleSelect)
	mux.HandleFunc("POST /pages/{n}/toggle", s.handleToggle)
	mux.HandleFunc("GET /pages/{n}/image", s.handleImage)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("POST /export", s.handleExport)
	mux.HandleFunc("GET /progress", s.hub.handle)
	return mux
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.recoveryMiddleware(s.loggingMiddleware(s.router))
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("http server starting", observability.String("address", ln.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	s.hub.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Session returns the current session, or nil before the first upload.
func (s *Server) Session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}
