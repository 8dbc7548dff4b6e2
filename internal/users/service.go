package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/apperr"
	"github.com/jacentio/plume/internal/ids"
	"github.com/jacentio/plume/internal/model"
	"github.com/jacentio/plume/internal/storage"
)

// View is the full profile shape returned to its owner.
type View struct {
	ID              string   `json:"id"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	CreatedAt       string   `json:"createdAt"`
	LikedPostIDs    []string `json:"likedPostIds"`
	RepostedPostIDs []string `json:"repostedPostIds"`
	FollowingIDs    []string `json:"followingIds"`
	FollowerIDs     []string `json:"followerIds"`
}

// PublicView is the profile shape anyone may see.
type PublicView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

// Service enforces the user-side business invariants: email
// uniqueness, self-follow rejection, follow symmetry.
type Service struct {
	repo   *Repo
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a user service.
func NewService(repo *Repo, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Register creates a user with an already-hashed password. The email is
// lowercased before it becomes the uniqueness key. A concurrent
// registration with the same address loses cleanly: exactly one wins.
func (s *Service) Register(ctx context.Context, username, email, passwordHash string) (*model.UserItem, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, apperr.InvalidInput("username and email are required")
	}

	user := model.NewUserItem(
		ids.New(ids.UserPrefix),
		username,
		email,
		passwordHash,
		s.now().UTC().Format(time.RFC3339),
	)

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Either the pre-existing address or a lost registration race;
			// both read the same from outside.
			return nil, apperr.InvalidInput("email already in use")
		}
		return nil, apperr.Unavailable("create user", err)
	}

	s.logger.Info("user registered",
		zap.String("userID", user.ID),
		zap.String("username", username),
	)
	return &user, nil
}

// GetByID returns a full profile.
func (s *Service) GetByID(ctx context.Context, userID string) (*model.UserItem, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Unavailable("get user", err)
	}
	return user, nil
}

// FindByEmail returns the profile behind an address, or nil when the
// address is unknown. Used by login, which must not leak which of the
// two it was.
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.UserItem, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Unavailable("find user by email", err)
	}
	return user, nil
}

// ToggleFollow flips whether meID follows targetID and returns the new
// state. Self-follow is rejected and an unknown target is not-found,
// both before anything is written.
func (s *Service) ToggleFollow(ctx context.Context, meID, targetID string) (bool, error) {
	if meID == targetID {
		return false, apperr.InvalidInput("cannot follow yourself")
	}
	if _, err := s.GetByID(ctx, targetID); err != nil {
		return false, err
	}

	following, err := storage.RunToggle(ctx, s.logger, storage.Toggle{
		Name: "follow",
		Check: func(ctx context.Context) (bool, error) {
			return s.repo.IsFollowing(ctx, meID, targetID)
		},
		On: func(ctx context.Context) error {
			return s.repo.Follow(ctx, meID, targetID)
		},
		Off: func(ctx context.Context) error {
			return s.repo.Unfollow(ctx, meID, targetID)
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return false, apperr.NotFound("user")
		}
		if errors.Is(err, storage.ErrTransactionConflict) {
			return false, apperr.Conflict("follow state changed concurrently")
		}
		return false, apperr.Unavailable("toggle follow", err)
	}
	return following, nil
}

// MarkLiked mirrors a like onto the profile. Best-effort companion to
// the like toggle.
func (s *Service) MarkLiked(ctx context.Context, userID, postID string) error {
	return s.repo.AddLikedPost(ctx, userID, postID)
}

// UnmarkLiked removes the like mirror.
func (s *Service) UnmarkLiked(ctx context.Context, userID, postID string) error {
	return s.repo.RemoveLikedPost(ctx, userID, postID)
}

// MarkReposted mirrors a retweet onto the profile.
func (s *Service) MarkReposted(ctx context.Context, userID, postID string) error {
	return s.repo.AddRepostedPost(ctx, userID, postID)
}

// UnmarkReposted removes the retweet mirror.
func (s *Service) UnmarkReposted(ctx context.Context, userID, postID string) error {
	return s.repo.RemoveRepostedPost(ctx, userID, postID)
}

// ToView shapes a profile for its owner.
func ToView(u *model.UserItem) View {
	return View{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		CreatedAt:       u.CreatedAt,
		LikedPostIDs:    u.LikedPostIDs,
		RepostedPostIDs: u.RepostedPostIDs,
		FollowingIDs:    u.FollowingIDs,
		FollowerIDs:     u.FollowerIDs,
	}
}

// ToPublicView shapes a profile for everyone else: no email, no hash.
func ToPublicView(u *model.UserItem) PublicView {
	return PublicView{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
