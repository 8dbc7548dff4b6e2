// Package stream provides the DynamoDB Streams handler that reconciles
// derived counters with the indicator items they summarize.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/plume/internal/keys"
	"github.com/jacentio/plume/internal/storage"
)

// Handler processes DynamoDB stream events for counter reconciliation.
//
// Like indicator items are authoritative; likeCount on the post is a
// denormalized counter that can fall behind when a process dies between
// the indicator write and the counter update. This handler recounts the
// indicators whenever one changes and writes the exact total back, so
// any drift heals on the next like or unlike of the same post.
type Handler struct {
	engine storage.Engine
	logger *slog.Logger
}

// NewHandler creates a stream handler.
func NewHandler(engine storage.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// HandleLikeEvents reconciles like counters for every like indicator
// touched in the event batch. Designed to be used as an AWS Lambda
// handler on the table's stream.
func (h *Handler) HandleLikeEvents(ctx context.Context, event events.DynamoDBEvent) error {
	// A batch often carries several events for the same post; recount once.
	postIDs := make(map[string]struct{})
	for _, record := range event.Records {
		if postID, ok := likedPostID(record); ok {
			postIDs[postID] = struct{}{}
		}
	}

	for postID := range postIDs {
		if err := h.reconcile(ctx, postID); err != nil {
			h.logger.Error("failed to reconcile like count",
				"postID", postID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// reconcile recounts the like indicators for one post and writes the
// total back. Safe to run any number of times.
func (h *Handler) reconcile(ctx context.Context, postID string) error {
	count, err := h.engine.Count(ctx, storage.Query{
		PK:       keys.Post(postID).PK,
		SKPrefix: keys.LikePrefix,
	})
	if err != nil {
		return fmt.Errorf("count likes: %w", err)
	}

	err = h.engine.SetCounter(ctx, keys.Post(postID), "likeCount", count)
	if errors.Is(err, storage.ErrConditionFailed) {
		// The post was deleted; its stray like items carry no counter.
		h.logger.Info("skipping reconcile for deleted post", "postID", postID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("write like count: %w", err)
	}

	h.logger.Info("like count reconciled",
		"postID", postID,
		"count", count,
	)
	return nil
}

// likedPostID extracts the post id from a stream record when the record
// is an insert or removal of a like indicator item.
func likedPostID(record events.DynamoDBEventRecord) (string, bool) {
	if record.EventName != "INSERT" && record.EventName != "REMOVE" {
		return "", false
	}

	image := record.Change.NewImage
	if record.EventName == "REMOVE" {
		image = record.Change.OldImage
	}
	if getStringAttr(image, "entityType") != keys.TypeLike {
		return "", false
	}

	postID := getStringAttr(image, "postId")
	return postID, postID != ""
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
