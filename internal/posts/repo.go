// Package posts owns post items and the feed/timeline access paths:
// the global reverse-chronological feed, per-user timelines with
// retweets interleaved, and the retweet toggle built on a prefix query.
package posts

import (
	"context"

	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/keys"
	"github.com/jacentio/plume/internal/model"
	"github.com/jacentio/plume/internal/storage"
)

// Repo translates post operations into store client calls.
type Repo struct {
	engine storage.Engine
	logger *zap.Logger
}

// NewRepo creates a post repository.
func NewRepo(engine storage.Engine, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{engine: engine, logger: logger}
}

// Put creates a post exactly once.
func (r *Repo) Put(ctx context.Context, post model.PostItem) error {
	item, err := model.Marshal(post)
	if err != nil {
		return err
	}
	return r.engine.PutIfAbsent(ctx, item)
}

// GetByID returns a post, or storage.ErrNotFound.
func (r *Repo) GetByID(ctx context.Context, postID string) (*model.PostItem, error) {
	raw, err := r.engine.Get(ctx, keys.Post(postID))
	if err != nil {
		return nil, err
	}
	var post model.PostItem
	if err := model.Unmarshal(raw, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Delete removes a post item.
func (r *Repo) Delete(ctx context.Context, postID string) error {
	return r.engine.Delete(ctx, keys.Post(postID))
}

// FindUserRetweet locates userID's retweet of originalID, or nil. The
// original's id is embedded in the timeline sort key, so this is a
// point lookup dressed as a prefix query with limit 1.
func (r *Repo) FindUserRetweet(ctx context.Context, userID, originalID string) (*model.PostItem, error) {
	page, err := r.engine.Query(ctx, storage.Query{
		Index:     keys.TimelineIndex,
		PK:        keys.TimelinePK(userID),
		SKPrefix:  keys.RetweetPrefix(originalID),
		Limit:     1,
		Ascending: true,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}

	var post model.PostItem
	if err := model.Unmarshal(page.Items[0], &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// QueryFeed returns one newest-first page of the global feed.
func (r *Repo) QueryFeed(ctx context.Context, limit int32, startKey map[string]string) ([]model.PostItem, map[string]string, error) {
	return r.queryPosts(ctx, storage.Query{
		Index:    keys.FeedIndex,
		PK:       keys.FeedPartition,
		Limit:    limit,
		StartKey: startKey,
	})
}

// QueryUserPosts returns one newest-first page of a user's timeline,
// authored posts and retweets interleaved by recency.
func (r *Repo) QueryUserPosts(ctx context.Context, userID string, limit int32, startKey map[string]string) ([]model.PostItem, map[string]string, error) {
	return r.queryPosts(ctx, storage.Query{
		Index:    keys.TimelineIndex,
		PK:       keys.TimelinePK(userID),
		Limit:    limit,
		StartKey: startKey,
	})
}

func (r *Repo) queryPosts(ctx context.Context, q storage.Query) ([]model.PostItem, map[string]string, error) {
	page, err := r.engine.Query(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	items := make([]model.PostItem, 0, len(page.Items))
	for _, raw := range page.Items {
		if model.EntityType(raw) != keys.TypePost {
			continue
		}
		var post model.PostItem
		if err := model.Unmarshal(raw, &post); err != nil {
			r.logger.Warn("skipping unreadable post item", zap.Error(err))
			continue
		}
		items = append(items, post)
	}
	return items, page.LastKey, nil
}
