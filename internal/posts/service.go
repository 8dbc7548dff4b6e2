package posts

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/apperr"
	"github.com/jacentio/plume/internal/cursor"
	"github.com/jacentio/plume/internal/ids"
	"github.com/jacentio/plume/internal/likes"
	"github.com/jacentio/plume/internal/model"
	"github.com/jacentio/plume/internal/storage"
	"github.com/jacentio/plume/internal/uploads"
	"github.com/jacentio/plume/internal/users"
)

// Page size bounds applied to every feed and timeline read.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// View is the outward shape of a post. Image keys are resolved to
// short-lived URLs at read time; the keys themselves travel alongside
// so clients can echo them back on retweet or edit flows.
type View struct {
	ID          string   `json:"id"`
	AuthorID    string   `json:"authorId"`
	Content     string   `json:"content"`
	CreatedAt   string   `json:"createdAt"`
	RetweetOfID string   `json:"retweetOfId,omitempty"`
	LikeCount   int      `json:"likeCount"`
	ImageKeys   []string `json:"imageKeys"`
	ImageURLs   []string `json:"imageUrls"`
}

// PageView is one page of posts plus the cursor for the next one.
type PageView struct {
	Items      []View `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Service implements post creation, feeds, and the retweet and like
// toggles on top of the repositories.
type Service struct {
	repo   *Repo
	likes  *likes.Repo
	users  *users.Service
	images uploads.Presigner
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewService wires the post service.
func NewService(repo *Repo, likeRepo *likes.Repo, userSvc *users.Service, images uploads.Presigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		likes:  likeRepo,
		users:  userSvc,
		images: images,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return ids.New(ids.PostPrefix) },
	}
}

// Create publishes a new post. A post must carry text or images;
// whitespace-only content with no images is rejected.
func (s *Service) Create(ctx context.Context, authorID, content string, imageKeys []string) (*View, error) {
	content = strings.TrimSpace(content)

	kept := make([]string, 0, len(imageKeys))
	for _, k := range imageKeys {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}

	if content == "" && len(kept) == 0 {
		return nil, apperr.InvalidInput("post needs content or images")
	}

	post := model.NewPostItem(s.newID(), authorID, content, kept, s.timestamp())
	if err := s.repo.Put(ctx, post); err != nil {
		return nil, apperr.Unavailable("create post", err)
	}

	s.logger.Info("post created",
		zap.String("postId", post.ID),
		zap.String("authorId", authorID),
		zap.Int("images", len(kept)))

	return s.toView(ctx, post)
}

// GetByID returns a single post.
func (s *Service) GetByID(ctx context.Context, postID string) (*View, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, *post)
}

// Feed returns one page of the global feed, newest first.
func (s *Service) Feed(ctx context.Context, limit int32, cursorToken string) (*PageView, error) {
	startKey, err := cursor.Decode(cursorToken)
	if err != nil {
		return nil, apperr.InvalidInput("invalid cursor")
	}

	items, lastKey, err := s.repo.QueryFeed(ctx, clampLimit(limit), startKey)
	if err != nil {
		return nil, apperr.Unavailable("query feed", err)
	}
	return s.toPage(ctx, items, lastKey)
}

// UserPosts returns one page of a user's timeline, newest first, with
// retweets included. An unknown user yields not found, not an empty page.
func (s *Service) UserPosts(ctx context.Context, userID string, limit int32, cursorToken string) (*PageView, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	startKey, err := cursor.Decode(cursorToken)
	if err != nil {
		return nil, apperr.InvalidInput("invalid cursor")
	}

	items, lastKey, err := s.repo.QueryUserPosts(ctx, userID, clampLimit(limit), startKey)
	if err != nil {
		return nil, apperr.Unavailable("query user posts", err)
	}
	return s.toPage(ctx, items, lastKey)
}

// ToggleLike flips userID's like on postID and returns the new state.
// The caller's liked-posts mirror is updated best effort afterwards.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return false, err
	}

	liked, err := s.likes.Toggle(ctx, userID, postID)
	if err != nil {
		return false, apperr.Unavailable("toggle like", err)
	}

	if liked {
		err = s.users.MarkLiked(ctx, userID, postID)
	} else {
		err = s.users.UnmarkLiked(ctx, userID, postID)
	}
	if err != nil {
		s.logger.Warn("liked-posts mirror update failed",
			zap.String("userId", userID),
			zap.String("postId", postID),
			zap.Bool("liked", liked),
			zap.Error(err))
	}

	return liked, nil
}

// ToggleRetweet flips userID's retweet of originalID and returns the
// new state. Turning it on creates a full post copy in the user's
// timeline; turning it off deletes that copy and never the original.
func (s *Service) ToggleRetweet(ctx context.Context, userID, originalID string) (bool, error) {
	original, err := s.getPost(ctx, originalID)
	if err != nil {
		return false, err
	}
	if original.IsRetweet() {
		return false, apperr.InvalidInput("cannot retweet a retweet")
	}

	// The existing copy, when there is one, is resolved by Check and
	// consumed by Off.
	var existing *model.PostItem

	on, err := storage.RunToggle(ctx, s.logger, storage.Toggle{
		Name: "retweet",
		Check: func(ctx context.Context) (bool, error) {
			existing, err = s.repo.FindUserRetweet(ctx, userID, originalID)
			if err != nil {
				return false, err
			}
			return existing != nil, nil
		},
		On: func(ctx context.Context) error {
			copyItem := model.NewRetweetItem(s.newID(), userID, *original, s.timestamp())
			return s.repo.Put(ctx, copyItem)
		},
		Off: func(ctx context.Context) error {
			return s.repo.Delete(ctx, existing.ID)
		},
		AfterOn: func(ctx context.Context) error {
			return s.users.MarkReposted(ctx, userID, originalID)
		},
		AfterOff: func(ctx context.Context) error {
			return s.users.UnmarkReposted(ctx, userID, originalID)
		},
	})
	if err != nil {
		return false, apperr.Unavailable("toggle retweet", err)
	}
	return on, nil
}

func (s *Service) getPost(ctx context.Context, postID string) (*model.PostItem, error) {
	post, err := s.repo.GetByID(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("post")
	}
	if err != nil {
		return nil, apperr.Unavailable("get post", err)
	}
	return post, nil
}

func (s *Service) toPage(ctx context.Context, items []model.PostItem, lastKey map[string]string) (*PageView, error) {
	views := make([]View, 0, len(items))
	for _, item := range items {
		v, err := s.toView(ctx, item)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}

	return &PageView{Items: views, NextCursor: cursor.Encode(lastKey)}, nil
}

func (s *Service) toView(ctx context.Context, post model.PostItem) (*View, error) {
	v := &View{
		ID:          post.ID,
		AuthorID:    post.AuthorID,
		Content:     post.Content,
		CreatedAt:   post.CreatedAt,
		RetweetOfID: post.RetweetOfID,
		LikeCount:   post.LikeCount,
		ImageKeys:   post.ImageKeys,
		ImageURLs:   []string{},
	}
	if v.ImageKeys == nil {
		v.ImageKeys = []string{}
	}

	if len(post.ImageKeys) > 0 && s.images != nil {
		urls := make([]string, 0, len(post.ImageKeys))
		for _, key := range post.ImageKeys {
			// PresignView errors arrive already classified.
			url, err := s.images.PresignView(ctx, key)
			if err != nil {
				return nil, err
			}
			urls = append(urls, url)
		}
		v.ImageURLs = urls
	}
	return v, nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func clampLimit(limit int32) int32 {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
