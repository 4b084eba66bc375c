package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/catalog"
	"atlas-advisor-backend/internal/config"
	"atlas-advisor-backend/internal/envelope"
	"atlas-advisor-backend/internal/pipeline"
	"atlas-advisor-backend/internal/telemetry"
	"atlas-advisor-backend/internal/types"
	"atlas-advisor-backend/internal/validation"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Deps are the collaborators chosen at process start.
type Deps struct {
	Catalog        *catalog.Catalog
	Chat           pipeline.Handler[types.ChatInput, types.ChatReply]
	Search         pipeline.Handler[types.SearchInput, types.SearchResponse]
	Sink           telemetry.Sink
	Logger         *slog.Logger
	MetricsHandler http.Handler
	// Names reported by /api/health.
	CompletionName string
	SearchName     string
}

type Server struct {
	router  *chi.Mux
	cfg     config.Config
	deps    Deps
	pipe    pipeline.Pipeline
	limiter *rateLimiter
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Catalog == nil || deps.Chat == nil || deps.Search == nil {
		return nil, errors.New("server needs a catalog, a chat handler and a search handler")
	}
	if deps.Sink == nil {
		deps.Sink = telemetry.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id", "X-Request-Id", "Retry-After"},
		AllowCredentials: cfg.AllowedOrigin != "*",
		MaxAge:           300,
	}))
	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
		pipe:   pipeline.Pipeline{Sink: deps.Sink, Logger: deps.Logger},
	}
	r.Use(s.recoverer)
	if cfg.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(s.rateLimit)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Get("/api/living-atlas/search", s.handleSearch)
	s.router.Get("/api/apps", s.handleApps)
	s.router.Get("/api/apps/{id}", s.handleApp)
	if s.deps.MetricsHandler != nil {
		s.router.Handle("/metrics", s.deps.MetricsHandler)
	}
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.Write(w, envelope.Fail(apperr.New(apperr.CategoryNotFound,
			apperr.WithMessagef("No endpoint at %s.", r.URL.Path),
			apperr.WithDetails(map[string]any{"path": r.URL.Path}),
		), ""))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		envelope.Write(w, envelope.Fail(apperr.Validation("method",
			fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path),
			map[string]any{"method": r.Method}), ""))
	})
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	envelope.Write(w, envelope.OK(types.HealthStatus{
		Status:     "ok",
		Completion: s.deps.CompletionName,
		Search:     s.deps.SearchName,
		Templates:  len(s.deps.Catalog.Templates()),
		Datasets:   len(s.deps.Catalog.Datasets()),
	}))
}

// POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	validate := func(r *http.Request) pipeline.Result[types.ChatInput] {
		res := pipeline.Then(decodeJSON[types.ChatRequest](w, r), validation.ValidateChat)
		return pipeline.Then(res, func(in types.ChatInput) pipeline.Result[types.ChatInput] {
			if in.SessionID == "" {
				in.SessionID = sessionFromRequest(r)
			}
			w.Header().Set("X-Session-Id", in.SessionID)
			SetSessionCookie(w, r, in.SessionID)
			return pipeline.Ok(in)
		})
	}
	resp := pipeline.Run[*http.Request, types.ChatInput, types.ChatReply](
		r.Context(), s.pipe, "chat", r, validate, s.deps.Chat)
	envelope.Write(w, resp)
}

// GET /api/living-atlas/search?q=&category=&limit=&offset=&sortBy=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := types.SearchRequest{
		Q:        q.Get("q"),
		Category: q.Get("category"),
		Limit:    q.Get("limit"),
		Offset:   q.Get("offset"),
		SortBy:   q.Get("sortBy"),
	}
	resp := pipeline.Run[types.SearchRequest, types.SearchInput, types.SearchResponse](
		r.Context(), s.pipe, "search", req, validation.ValidateSearch, s.deps.Search)
	envelope.Write(w, resp)
}

type appsResponse struct {
	Count int                 `json:"count"`
	Apps  []types.AppTemplate `json:"apps"`
}

// GET /api/apps
func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	apps := s.deps.Catalog.Templates()
	envelope.Write(w, envelope.OK(appsResponse{Count: len(apps), Apps: apps}))
}

// GET /api/apps/{id}
func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	validate := func(id string) pipeline.Result[string] {
		id = strings.TrimSpace(id)
		if id == "" {
			return pipeline.Fail[string](apperr.Validation("id", "id is required", nil))
		}
		return pipeline.Ok(id)
	}
	lookup := pipeline.HandlerFunc[string, types.AppTemplate](func(_ context.Context, id string) pipeline.Result[types.AppTemplate] {
		t, ok := s.deps.Catalog.Template(id)
		if !ok {
			return pipeline.Fail[types.AppTemplate](apperr.New(apperr.CategoryNotFound,
				apperr.WithMessagef("No app template with id %q.", id),
				apperr.WithDetails(map[string]any{"id": id}),
			))
		}
		return pipeline.Ok(t)
	})
	resp := pipeline.Run[string, string, types.AppTemplate](
		r.Context(), s.pipe, "app", chi.URLParam(r, "id"), validate, lookup)
	envelope.Write(w, resp)
}

// decodeJSON reads a size-capped JSON body. Malformed input is a
// validation failure on the "body" field.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) pipeline.Result[T] {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return pipeline.Fail[T](apperr.Validation("body",
				fmt.Sprintf("request body must be at most %d bytes", maxBodyBytes),
				map[string]any{"maxBytes": maxBodyBytes}))
		}
		return pipeline.Fail[T](apperr.Validation("body", "request body must be valid JSON", nil))
	}
	// Exactly one JSON value; anything after it is malformed input.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pipeline.Fail[T](apperr.Validation("body", "request body must be a single JSON object", nil))
	}
	return pipeline.Ok(v)
}

// sessionFromRequest reuses a well-formed session id from the cookie or
// X-Session-Id header, or mints a new one.
func sessionFromRequest(r *http.Request) string {
	candidates := []string{r.Header.Get("X-Session-Id")}
	if c, err := GetSessionCookie(r); err == nil {
		candidates = append([]string{c}, candidates...)
	}
	for _, c := range candidates {
		if _, err := uuid.Parse(c); err == nil && c != "" {
			return c
		}
	}
	return uuid.NewString()
}

// recoverer turns a panic anywhere in the stack into an INTERNAL envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				f := envelope.Fail(apperr.New(apperr.CategoryInternal,
					apperr.WithCause(fmt.Errorf("panic: %v", rec))), "")
				s.deps.Logger.Error("panic serving request", "path", r.URL.Path, "requestId", f.RequestID, "panic", rec)
				envelope.Write(w, f)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
