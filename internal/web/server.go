// Package web serves the recipe component: a server-rendered page driven by
// plain form posts, and a JSON API exposing the same actions.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/recgen/recgen/internal/config"
	"github.com/recgen/recgen/internal/errors"
	"github.com/recgen/recgen/internal/middleware"
	"github.com/recgen/recgen/internal/render"
	"github.com/recgen/recgen/internal/sentry"
	"github.com/recgen/recgen/internal/session"
)

type Server struct {
	cfg       *config.Config
	component *session.Component
	renderer  *render.Renderer
	limiter   *middleware.RateLimiter
	logger    *slog.Logger
}

func NewServer(cfg *config.Config, component *session.Component, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []render.Option
	if cfg.Component.RawMarkup {
		opts = append(opts, render.WithRawMarkup())
	}
	return &Server{
		cfg:       cfg,
		component: component,
		renderer:  render.New(opts...),
		limiter:   middleware.NewRateLimiter(cfg.Component.ActionsPerMin),
		logger:    logger,
	}
}

// Mount registers the component's routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/api/render", s.HandleRender)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(s.cfg))
		r.Use(sentry.HTTPMiddleware)

		r.Get("/", s.HandleIndex)
		r.Get("/image", s.HandleImagePreview)
		r.Get("/api/state", s.HandleAPIState)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)

			r.Post("/image", s.HandleSelectImage)
			r.Post("/detect", s.HandleDetect)
			r.Post("/recipes/{index}", s.HandlePickRecipe)

			r.Post("/api/image", s.HandleAPISelectImage)
			r.Post("/api/detect", s.HandleAPIDetect)
			r.Post("/api/recipes/{index}", s.HandleAPIPickRecipe)
		})
	})
}

// Handler returns a router with only the component's routes, for tests and embedding.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Mount(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error *errors.AppError `json:"error"`
	State *stateResponse   `json:"state,omitempty"`
}

// writeError writes err as a JSON AppError. Errors that are not AppErrors are
// reported as internal errors without leaking their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, state *stateResponse) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError("Internal server error", "INTERNAL_ERROR", err)
	}
	s.report(r, err, appErr)
	writeJSON(w, appErr.StatusCode, errorResponse{Error: appErr, State: state})
}

// redirectAlert sends the browser back to the page with err's message as the alert.
func (s *Server) redirectAlert(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError("Something went wrong.", "INTERNAL_ERROR", err)
	}
	s.report(r, err, appErr)
	http.Redirect(w, r, "/?alert="+url.QueryEscape(appErr.Message), http.StatusSeeOther)
}

func (s *Server) report(r *http.Request, err error, appErr *errors.AppError) {
	if appErr.StatusCode >= 500 {
		sentry.CaptureError(r.Context(), err)
		s.logger.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		return
	}
	s.logger.DebugContext(r.Context(), "Request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"code", appErr.ErrorCode,
	)
}

func sessionID(r *http.Request) string {
	id, _ := middleware.GetSessionID(r.Context())
	return id
}
