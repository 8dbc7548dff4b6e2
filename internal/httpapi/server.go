// Package httpapi exposes the service over HTTP with chi.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/auth"
	"github.com/jacentio/plume/internal/posts"
	"github.com/jacentio/plume/internal/uploads"
	"github.com/jacentio/plume/internal/users"
)

// Server holds the handlers' dependencies.
type Server struct {
	auth     *auth.Service
	users    *users.Service
	posts    *posts.Service
	images   uploads.Presigner
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer wires a Server.
func NewServer(authSvc *auth.Service, userSvc *users.Service, postSvc *posts.Service, images uploads.Presigner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		auth:     authSvc,
		users:    userSvc,
		posts:    postSvc,
		images:   images,
		logger:   logger,
		validate: validator.New(),
	}
}

// Router builds the route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/posts", s.handleFeed)
		r.Get("/posts/{postID}", s.handleGetPost)
		r.Get("/users/{userID}", s.handleGetUser)
		r.Get("/users/{userID}/posts", s.handleUserPosts)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/users/me", s.handleMe)
			r.Post("/users/{userID}/follow", s.handleToggleFollow)

			r.Post("/posts", s.handleCreatePost)
			r.Post("/posts/{postID}/like", s.handleToggleLike)
			r.Post("/posts/{postID}/retweet", s.handleToggleRetweet)

			r.Post("/uploads/presign", s.handlePresignUpload)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
