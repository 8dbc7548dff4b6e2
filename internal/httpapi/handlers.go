package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jacentio/plume/internal/apperr"
	"github.com/jacentio/plume/internal/users"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createPostRequest struct {
	Content   string   `json:"content" validate:"max=500"`
	ImageKeys []string `json:"imageKeys" validate:"max=4,dive,min=1,max=512"`
}

type presignRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

type likeResponse struct {
	Liked bool `json:"liked"`
}

type retweetResponse struct {
	Reposted bool `json:"reposted"`
}

type followResponse struct {
	Following bool `json:"following"`
}

// decode reads and validates a JSON request body.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.InvalidInput("malformed request body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return apperr.InvalidInput("invalid request: " + err.Error())
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), UserID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, users.ToView(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, users.ToPublicView(user))
}

func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := s.users.ToggleFollow(r.Context(), UserID(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, followResponse{Following: following})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	post, err := s.posts.Create(r.Context(), UserID(r.Context()), req.Content, req.ImageKeys)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, post)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.posts.GetByID(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, post)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := s.posts.Feed(r.Context(), pageLimit(r), r.URL.Query().Get("cursor"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	page, err := s.posts.UserPosts(r.Context(), chi.URLParam(r, "userID"), pageLimit(r), r.URL.Query().Get("cursor"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, err := s.posts.ToggleLike(r.Context(), UserID(r.Context()), chi.URLParam(r, "postID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, likeResponse{Liked: liked})
}

func (s *Server) handleToggleRetweet(w http.ResponseWriter, r *http.Request) {
	retweeted, err := s.posts.ToggleRetweet(r.Context(), UserID(r.Context()), chi.URLParam(r, "postID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, retweetResponse{Reposted: retweeted})
}

func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	slot, err := s.images.PresignUpload(r.Context(), UserID(r.Context()), req.ContentType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, slot)
}

// pageLimit parses the limit query parameter; the service clamps it.
func pageLimit(r *http.Request) int32 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return int32(n)
}
