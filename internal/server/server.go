// Package server exposes the check pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/crisis"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/ratelimit"
	"github.com/misintel/misintel/internal/translate"
	"github.com/misintel/misintel/internal/trending"
	"github.com/misintel/misintel/pkg/speech"
)

// DefaultMaxUploadBytes bounds multipart bodies.
const DefaultMaxUploadBytes = 10 << 20

// Checker runs one advanced check.
type Checker interface {
	Check(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error)
}

// AuthorLookup attributes a URL to an author. It never fails.
type AuthorLookup interface {
	Extract(ctx context.Context, url string) model.AuthorInfo
}

// Headlines lists trending news.
type Headlines interface {
	Top(ctx context.Context, q trending.Query) ([]trending.Item, error)
}

// CrisisMonitor reports the active crisis, or nil.
type CrisisMonitor interface {
	Status(ctx context.Context) (*crisis.Event, error)
}

// Translator renders an analysis in every supported language.
type Translator interface {
	Translate(ctx context.Context, src translate.Source) translate.Translations
}

// Limiter admits or rejects a client request.
type Limiter interface {
	Allow(clientID string) ratelimit.Decision
}

// Instrumentation is the metrics surface used by the router.
type Instrumentation interface {
	Handler() http.Handler
	InstrumentHandler(next http.Handler) http.Handler
	ObserveRateLimited()
}

// Deps are the handlers' collaborators. Nil optional collaborators disable
// their routes' behavior: Speech answers 500, Trending 503, Crisis reports no
// crisis, Translator returns English only, Metrics is not mounted.
type Deps struct {
	Checker        Checker
	Authors        AuthorLookup
	Speech         speech.Client
	Trending       Headlines
	Crisis         CrisisMonitor
	Translator     Translator
	Limiter        Limiter
	Metrics        Instrumentation
	CORSOrigins    []string
	MaxUploadBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// New builds the router.
func New(deps Deps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(deps.CORSOrigins) == 0 {
		deps.CORSOrigins = []string{"*"}
	}
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.InstrumentHandler)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Retry-After", requestIDHeader},
		MaxAge:         300,
		// Routes answer their own OPTIONS through preflight.
		OptionsPassthrough: true,
	}))

	r.Get("/health", s.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	r.Post("/advanced-check", s.advancedCheck)
	r.Options("/advanced-check", s.preflight)
	r.Post("/speech-to-text", s.speechToText)
	r.Post("/author-info", s.authorInfo)
	r.Get("/trending", s.trending)
	r.Get("/crisis-mode", s.crisisMode)
	r.Post("/translate", s.translate)
	r.Options("/translate", s.preflight)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) preflight(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

const requestIDHeader = "X-Request-ID"

// requestID propagates or assigns X-Request-ID and logs the request.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Debug("server: request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
