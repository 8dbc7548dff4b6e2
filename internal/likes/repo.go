// Package likes stores like indicators. A like is nothing but the
// existence of its item; likeCount on the post is a derived counter
// that trails it.
package likes

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/keys"
	"github.com/jacentio/plume/internal/model"
	"github.com/jacentio/plume/internal/storage"
)

const counterField = "likeCount"

// Repo owns like indicator items and the likeCount side effect.
type Repo struct {
	engine storage.Engine
	logger *zap.Logger
	now    func() time.Time
}

// NewRepo creates a like repository.
func NewRepo(engine storage.Engine, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{engine: engine, logger: logger, now: time.Now}
}

// Toggle flips whether userID likes postID and returns the new state.
//
// The indicator write is authoritative; the counter update runs after
// it, is floored at zero, and may be lost to a crash in between. That
// staleness is part of the contract: likeCount equals the number of
// like items eventually, not instantaneously.
func (r *Repo) Toggle(ctx context.Context, userID, postID string) (bool, error) {
	likeKey := keys.Like(postID, userID)
	postKey := keys.Post(postID)

	return storage.RunToggle(ctx, r.logger, storage.Toggle{
		Name: "like",
		Check: func(ctx context.Context) (bool, error) {
			_, err := r.engine.Get(ctx, likeKey)
			if errors.Is(err, storage.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
		On: func(ctx context.Context) error {
			item, err := model.Marshal(model.NewLikeItem(postID, userID, r.now().UTC().Format(time.RFC3339)))
			if err != nil {
				return err
			}
			return r.engine.PutIfAbsent(ctx, item)
		},
		Off: func(ctx context.Context) error {
			return r.engine.Delete(ctx, likeKey)
		},
		AfterOn: func(ctx context.Context) error {
			return r.engine.AddToCounter(ctx, postKey, counterField, 1, 0)
		},
		AfterOff: func(ctx context.Context) error {
			return r.engine.AddToCounter(ctx, postKey, counterField, -1, 0)
		},
	})
}

// Exists reports whether userID currently likes postID.
func (r *Repo) Exists(ctx context.Context, userID, postID string) (bool, error) {
	_, err := r.engine.Get(ctx, keys.Like(postID, userID))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
