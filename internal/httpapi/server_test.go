package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/plume/internal/auth"
	"github.com/jacentio/plume/internal/likes"
	"github.com/jacentio/plume/internal/posts"
	"github.com/jacentio/plume/internal/storage"
	"github.com/jacentio/plume/internal/uploads"
	"github.com/jacentio/plume/internal/users"
)

type stubPresigner struct{}

func (stubPresigner) PresignUpload(_ context.Context, ownerID, contentType string) (uploads.Upload, error) {
	return uploads.Upload{
		Key:       "posts/" + ownerID + "/img_stub",
		UploadURL: "https://upload.test/" + contentType,
		ExpiresIn: 60,
	}, nil
}

func (stubPresigner) PresignView(_ context.Context, key string) (string, error) {
	return "https://img.test/" + key, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	mem := storage.NewMemory()
	userSvc := users.NewService(users.NewRepo(mem, nil), nil)
	postSvc := posts.NewService(posts.NewRepo(mem, nil), likes.NewRepo(mem, nil), userSvc, stubPresigner{}, nil)
	authSvc := auth.NewService(userSvc, []byte("test-secret"), time.Hour, nil)

	return NewServer(authSvc, userSvc, postSvc, stubPresigner{}, nil).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, router http.Handler, username string) *auth.Session {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decodeBody[*auth.Session](t, rec)
	return sess
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "not-an-email",
		"password": "correct horse",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "correct horse",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/posts", "", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/posts", "garbage-token", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	alice := registerUser(t, router, "alice")
	bob := registerUser(t, router, "bob")

	// Alice posts.
	rec := doJSON(t, router, http.MethodPost, "/api/posts", alice.Token, map[string]any{
		"content":   "hello world",
		"imageKeys": []string{"posts/x/img_1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[posts.View](t, rec)
	assert.Equal(t, "hello world", created.Content)
	assert.Equal(t, []string{"https://img.test/posts/x/img_1"}, created.ImageURLs)

	// Bob likes it, twice.
	rec = doJSON(t, router, http.MethodPost, "/api/posts/"+created.ID+"/like", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[likeResponse](t, rec).Liked)

	rec = doJSON(t, router, http.MethodPost, "/api/posts/"+created.ID+"/like", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[likeResponse](t, rec).Liked)

	// The post shows up on the public feed without a token.
	rec = doJSON(t, router, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decodeBody[posts.PageView](t, rec)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, created.ID, feed.Items[0].ID)

	// And on alice's timeline.
	rec = doJSON(t, router, http.MethodGet, "/api/users/"+alice.User.ID+"/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	timeline := decodeBody[posts.PageView](t, rec)
	require.Len(t, timeline.Items, 1)
}

func TestFollowOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	alice := registerUser(t, router, "alice")
	bob := registerUser(t, router, "bob")

	rec := doJSON(t, router, http.MethodPost, "/api/users/"+bob.User.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[followResponse](t, rec).Following)

	// Self-follow is rejected.
	rec = doJSON(t, router, http.MethodPost, "/api/users/"+alice.User.ID+"/follow", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The relationship is visible from both profiles.
	rec = doJSON(t, router, http.MethodGet, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[users.View](t, rec)
	assert.Contains(t, me.FollowingIDs, bob.User.ID)

	rec = doJSON(t, router, http.MethodGet, "/api/users/me", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me = decodeBody[users.View](t, rec)
	assert.Contains(t, me.FollowerIDs, alice.User.ID)
}

func TestPublicProfileHidesEmail(t *testing.T) {
	router := newTestRouter(t)
	alice := registerUser(t, router, "alice")

	rec := doJSON(t, router, http.MethodGet, "/api/users/"+alice.User.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "email")
	assert.NotContains(t, raw, "passwordHash")
	assert.Equal(t, "alice", raw["username"])
}

func TestUnknownPostIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/posts/p_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresignUpload(t *testing.T) {
	router := newTestRouter(t)
	alice := registerUser(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/uploads/presign", alice.Token, map[string]string{
		"contentType": "image/png",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	slot := decodeBody[uploads.Upload](t, rec)
	assert.NotEmpty(t, slot.Key)
	assert.NotEmpty(t, slot.UploadURL)
}

func TestBadCursorIs400(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/posts?cursor=%21%21", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
