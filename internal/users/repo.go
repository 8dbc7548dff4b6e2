// Package users owns user profiles: registration with email
// uniqueness, the follow relationship, and the liked/reposted mirrors
// maintained for the toggles.
package users

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/keys"
	"github.com/jacentio/plume/internal/model"
	"github.com/jacentio/plume/internal/storage"
)

// Profile attribute names touched by mirror updates.
const (
	fieldLiked     = "likedPostIds"
	fieldReposted  = "repostedPostIds"
	fieldFollowing = "followingIds"
	fieldFollowers = "followerIds"
)

// Repo translates user operations into store client calls. Store errors
// pass through verbatim; classification happens in the service.
type Repo struct {
	engine storage.Engine
	logger *zap.Logger
}

// NewRepo creates a user repository.
func NewRepo(engine storage.Engine, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{engine: engine, logger: logger}
}

// GetByID returns a profile, or storage.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, userID string) (*model.UserItem, error) {
	raw, err := r.engine.Get(ctx, keys.User(userID))
	if err != nil {
		return nil, err
	}

	var user model.UserItem
	if err := model.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	// One canonical shape for the mirrors, whatever path wrote them.
	user.LikedPostIDs = user.LikedPostIDs.Normalize()
	user.RepostedPostIDs = user.RepostedPostIDs.Normalize()
	return &user, nil
}

// GetByEmail resolves the lookup item, then the profile. The email must
// already be lowercased.
func (r *Repo) GetByEmail(ctx context.Context, email string) (*model.UserItem, error) {
	raw, err := r.engine.Get(ctx, keys.Email(email))
	if err != nil {
		return nil, err
	}

	var lookup model.EmailLookupItem
	if err := model.Unmarshal(raw, &lookup); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, lookup.UserID)
}

// Create writes the profile and its email lookup in one transaction:
// the pair exists together or not at all. A taken email (or, far less
// likely, a colliding id) fails with storage.ErrAlreadyExists and
// writes nothing.
func (r *Repo) Create(ctx context.Context, user model.UserItem) error {
	profile, err := model.Marshal(user)
	if err != nil {
		return err
	}
	lookup, err := model.Marshal(model.NewEmailLookupItem(user.Email, user.ID, user.CreatedAt))
	if err != nil {
		return err
	}

	return r.engine.TransactWrite(ctx, []storage.Write{
		{PutIfAbsent: profile},
		{PutIfAbsent: lookup},
	})
}

// IsFollowing reports whether meID currently follows targetID.
func (r *Repo) IsFollowing(ctx context.Context, meID, targetID string) (bool, error) {
	me, err := r.GetByID(ctx, meID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, id := range me.FollowingIDs {
		if id == targetID {
			return true, nil
		}
	}
	return false, nil
}

// Follow adds the relationship to both mirrored sets in one
// transaction; the two sides can never disagree.
func (r *Repo) Follow(ctx context.Context, meID, targetID string) error {
	return r.engine.TransactWrite(ctx, []storage.Write{
		{SetAdd: &storage.SetMutation{
			Key: keys.User(meID), Field: fieldFollowing, Member: targetID, RequireExists: true,
		}},
		{SetAdd: &storage.SetMutation{
			Key: keys.User(targetID), Field: fieldFollowers, Member: meID, RequireExists: true,
		}},
	})
}

// Unfollow removes the relationship from both sets transactionally.
func (r *Repo) Unfollow(ctx context.Context, meID, targetID string) error {
	return r.engine.TransactWrite(ctx, []storage.Write{
		{SetRemove: &storage.SetMutation{
			Key: keys.User(meID), Field: fieldFollowing, Member: targetID,
		}},
		{SetRemove: &storage.SetMutation{
			Key: keys.User(targetID), Field: fieldFollowers, Member: meID,
		}},
	})
}

// AddLikedPost records postID in the profile's liked mirror.
func (r *Repo) AddLikedPost(ctx context.Context, userID, postID string) error {
	return r.engine.AppendUnique(ctx, keys.User(userID), fieldLiked, postID)
}

// RemoveLikedPost drops postID from the liked mirror.
func (r *Repo) RemoveLikedPost(ctx context.Context, userID, postID string) error {
	return r.engine.RemoveValue(ctx, keys.User(userID), fieldLiked, postID)
}

// AddRepostedPost records the original postID in the reposted mirror.
func (r *Repo) AddRepostedPost(ctx context.Context, userID, postID string) error {
	return r.engine.AppendUnique(ctx, keys.User(userID), fieldReposted, postID)
}

// RemoveRepostedPost drops the original postID from the reposted mirror.
func (r *Repo) RemoveRepostedPost(ctx context.Context, userID, postID string) error {
	return r.engine.RemoveValue(ctx, keys.User(userID), fieldReposted, postID)
}
