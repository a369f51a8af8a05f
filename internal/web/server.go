package web

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/viatico/internal/memo"
	"github.com/vbonduro/viatico/internal/metrics"
	"github.com/vbonduro/viatico/internal/service"
)

type Server struct {
	service   *service.RequestService
	templates fs.FS
	metrics   *metrics.Metrics
	mux       *http.ServeMux
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(svc *service.RequestService, tmpl fs.FS, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		service:   svc,
		templates: tmpl,
		metrics:   m,
		mux:       http.NewServeMux(),
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"clp": memo.FormatCLP,
			"inc": func(i int) int { return i + 1 },
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/request", http.StatusSeeOther)
	})
	s.mux.HandleFunc("GET /request", s.handleRequestPage)
	s.mux.HandleFunc("POST /request/crew", s.handleAddToCrew)
	s.mux.HandleFunc("POST /request/crew/{id}/remove", s.handleRemoveFromCrew)
	s.mux.HandleFunc("POST /request/crew/{id}/roles", s.handleSetRoles)
	s.mux.HandleFunc("POST /request/zone", s.handleSetZone)
	s.mux.HandleFunc("POST /request/rows", s.handleAddRow)
	s.mux.HandleFunc("POST /request/rows/{id}/remove", s.handleRemoveRow)
	s.mux.HandleFunc("POST /request/rows/{id}/type", s.handleSetRowType)
	s.mux.HandleFunc("POST /request/rows/{id}/values/{person}", s.handleSetValue)
	s.mux.HandleFunc("POST /request/rows/{id}/repeat", s.handleRepeatFirstValue)
	s.mux.HandleFunc("POST /request/rows/{id}/reset", s.handleResetRow)
	s.mux.HandleFunc("POST /request/reset", s.handleReset)
	s.mux.HandleFunc("GET /request/export.json", s.handleExportJSON)
	s.mux.HandleFunc("GET /request/preview", s.handlePreview)
	s.mux.HandleFunc("POST /request/send", s.handleSend)
	s.mux.HandleFunc("GET /submissions", s.handleListSubmissions)
	s.mux.HandleFunc("GET /submissions/{id}", s.handleGetSubmission)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"form-action 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		m.ObserveHTTP(r.Method, strconv.Itoa(rec.status), elapsed.Seconds())
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, s.metrics, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}
