package posts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/plume/internal/apperr"
	"github.com/jacentio/plume/internal/likes"
	"github.com/jacentio/plume/internal/storage"
	"github.com/jacentio/plume/internal/uploads"
	"github.com/jacentio/plume/internal/users"
)

type fakePresigner struct{}

func (fakePresigner) PresignUpload(context.Context, string, string) (uploads.Upload, error) {
	panic("not used")
}

func (fakePresigner) PresignView(_ context.Context, key string) (string, error) {
	return "https://img.test/" + key, nil
}

type fixture struct {
	svc   *Service
	users *users.Service
	mem   *storage.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := storage.NewMemory()
	userSvc := users.NewService(users.NewRepo(mem, nil), nil)
	svc := NewService(NewRepo(mem, nil), likes.NewRepo(mem, nil), userSvc, fakePresigner{}, nil)

	// Deterministic clock and ids so that feed order is under the
	// test's control.
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("p_%04d", seq)
	}

	return &fixture{svc: svc, users: userSvc, mem: mem}
}

func (f *fixture) register(t *testing.T, username string) string {
	t.Helper()
	u, err := f.users.Register(context.Background(), username, username+"@example.com", "hash")
	require.NoError(t, err)
	return u.ID
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	created, err := f.svc.Create(ctx, alice, "  hello world  ", []string{"posts/a/img_1", ""})
	require.NoError(t, err)
	assert.Equal(t, "hello world", created.Content)
	assert.Equal(t, alice, created.AuthorID)
	assert.Equal(t, []string{"posts/a/img_1"}, created.ImageKeys)
	assert.Equal(t, []string{"https://img.test/posts/a/img_1"}, created.ImageURLs)
	assert.Zero(t, created.LikeCount)
	assert.Empty(t, created.RetweetOfID)

	got, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateRejectsEmptyPost(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	_, err := f.svc.Create(context.Background(), alice, "   ", nil)
	assert.True(t, apperr.IsInvalidInput(err))

	_, err = f.svc.Create(context.Background(), alice, "", []string{"  "})
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestGetUnknownPost(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetByID(context.Background(), "p_missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestFeedPaginationChains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	want := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		p, err := f.svc.Create(ctx, alice, fmt.Sprintf("post %d", i), nil)
		require.NoError(t, err)
		want = append([]string{p.ID}, want...) // newest first
	}

	var got []string
	token := ""
	pages := 0
	for {
		page, err := f.svc.Feed(ctx, 2, token)
		require.NoError(t, err)
		for _, v := range page.Items {
			got = append(got, v.ID)
		}
		pages++
		if page.NextCursor == "" {
			break
		}
		token = page.NextCursor
	}

	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)
}

func TestFeedRejectsBadCursor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Feed(context.Background(), 10, "not-a-cursor")
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestUserPostsUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UserPosts(context.Background(), "u_missing", 10, "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestToggleLikeCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	post, err := f.svc.Create(ctx, alice, "likeable", nil)
	require.NoError(t, err)

	liked, err := f.svc.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	got, err := f.svc.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)

	u, err := f.users.GetByID(ctx, bob)
	require.NoError(t, err)
	assert.Contains(t, []string(u.LikedPostIDs), post.ID)

	liked, err = f.svc.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	got, err = f.svc.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikeCount)

	u, err = f.users.GetByID(ctx, bob)
	require.NoError(t, err)
	assert.NotContains(t, []string(u.LikedPostIDs), post.ID)
}

func TestToggleLikeUnknownPost(t *testing.T) {
	f := newFixture(t)
	bob := f.register(t, "bob")

	_, err := f.svc.ToggleLike(context.Background(), bob, "p_missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestToggleRetweetCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	original, err := f.svc.Create(ctx, alice, "worth sharing", []string{"posts/a/img_9"})
	require.NoError(t, err)

	on, err := f.svc.ToggleRetweet(ctx, bob, original.ID)
	require.NoError(t, err)
	assert.True(t, on)

	// The copy carries denormalized content and sits on bob's timeline.
	page, err := f.svc.UserPosts(ctx, bob, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	copyView := page.Items[0]
	assert.Equal(t, original.ID, copyView.RetweetOfID)
	assert.Equal(t, "worth sharing", copyView.Content)
	assert.Equal(t, original.ImageKeys, copyView.ImageKeys)
	assert.NotEqual(t, original.ID, copyView.ID)

	u, err := f.users.GetByID(ctx, bob)
	require.NoError(t, err)
	assert.Contains(t, []string(u.RepostedPostIDs), original.ID)

	// Toggling again deletes the copy, never the original.
	on, err = f.svc.ToggleRetweet(ctx, bob, original.ID)
	require.NoError(t, err)
	assert.False(t, on)

	page, err = f.svc.UserPosts(ctx, bob, 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = f.svc.GetByID(ctx, original.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetByID(ctx, copyView.ID)
	assert.True(t, apperr.IsNotFound(err))

	u, err = f.users.GetByID(ctx, bob)
	require.NoError(t, err)
	assert.NotContains(t, []string(u.RepostedPostIDs), original.ID)
}

func TestToggleRetweetOfRetweetRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	carol := f.register(t, "carol")

	original, err := f.svc.Create(ctx, alice, "origin", nil)
	require.NoError(t, err)

	_, err = f.svc.ToggleRetweet(ctx, bob, original.ID)
	require.NoError(t, err)

	page, err := f.svc.UserPosts(ctx, bob, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	_, err = f.svc.ToggleRetweet(ctx, carol, page.Items[0].ID)
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestToggleRetweetUnknownPost(t *testing.T) {
	f := newFixture(t)
	bob := f.register(t, "bob")

	_, err := f.svc.ToggleRetweet(context.Background(), bob, "p_missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRetweetsAppearOnFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	original, err := f.svc.Create(ctx, alice, "origin", nil)
	require.NoError(t, err)

	_, err = f.svc.ToggleRetweet(ctx, bob, original.ID)
	require.NoError(t, err)

	page, err := f.svc.Feed(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, original.ID, page.Items[0].RetweetOfID) // copy is newer
	assert.Equal(t, original.ID, page.Items[1].ID)
}
