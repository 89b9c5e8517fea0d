package server

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/presentable/presentable/internal/auth"
	"github.com/presentable/presentable/internal/database"
	"github.com/presentable/presentable/internal/feedback"
	"github.com/presentable/presentable/internal/httputil"
	"github.com/presentable/presentable/internal/presentation"
	"github.com/presentable/presentable/internal/ratelimit"
	"github.com/presentable/presentable/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB         database.DBTX
	Pinger     Pinger
	Storage    presentation.ObjectStorage
	Dispatcher feedback.Dispatcher
	JWTSecret  string
	BaseURL    string
}

type Server struct {
	router              chi.Router
	pinger              Pinger
	authHandler         *auth.Handler
	presentationHandler *presentation.Handler
	feedbackHandler     *feedback.Handler
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{BaseURL: cfg.BaseURL}))

	s := &Server{router: r, pinger: cfg.Pinger}

	if cfg.DB != nil {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		svc := feedback.NewService(feedback.NewPGStore(cfg.DB), baseURL)
		if cfg.Dispatcher != nil {
			svc.SetDispatcher(cfg.Dispatcher)
		}

		s.authHandler = auth.NewHandler(cfg.JWTSecret)
		s.feedbackHandler = feedback.NewHandler(svc)
		s.presentationHandler = presentation.NewHandler(presentation.NewPGStore(cfg.DB), cfg.Storage)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.authHandler == nil {
		return
	}

	readLimiter := ratelimit.NewLimiter(10, 30)
	writeLimiter := ratelimit.NewLimiter(2, 10)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authHandler.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(readLimiter.Middleware)
			r.Get("/presentations/{id}", s.presentationHandler.Get)
			r.Get("/presentations/{id}/active", s.presentationHandler.Active)
			r.Get("/presentations/{id}/feedbacks", s.feedbackHandler.List)
			r.Get("/feedbacks/{id}", s.feedbackHandler.Get)
			r.Get("/feedbacks/{id}/comments", s.feedbackHandler.ListComments)
		})

		r.Group(func(r chi.Router) {
			r.Use(writeLimiter.Middleware)
			r.Patch("/presentations/{id}/events/{eventId}", s.presentationHandler.ValidateEvent)
			r.Post("/presentations/{id}/feedbacks", s.feedbackHandler.Create)
			r.Patch("/feedbacks/{id}", s.feedbackHandler.Update)
			r.Delete("/feedbacks/{id}", s.feedbackHandler.Delete)
			r.Post("/feedbacks/{id}/comments", s.feedbackHandler.PostComment)
			r.Delete("/comments/{id}", s.feedbackHandler.DeleteComment)

			r.With(auth.RequireReviewer).Patch("/presentations/{id}/visibility", s.presentationHandler.SetVisibility)
			r.With(auth.RequireReviewer).Post("/presentations/{id}/transcript", s.presentationHandler.ImportTranscript)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
