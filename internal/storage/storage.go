// Package storage is the store client for the shared table.
//
// It narrows the key-value engine to the operation set the repositories
// need: single-item reads and conditional writes, a floored atomic
// counter, list and set mirrors, index queries with continuation keys,
// and an all-or-nothing transactional write. Every operation is atomic
// at the single-item level; cross-item atomicity exists only through
// TransactWrite.
//
// Engine has two implementations: the DynamoDB client used in
// production and an in-memory engine for tests and local development.
package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/plume/internal/keys"
)

// Item is a raw table item.
type Item = map[string]types.AttributeValue

// Query addresses one partition of the base table or of an index.
type Query struct {
	// Index selects a secondary index by name; empty means the base table.
	Index string

	// PK is the partition key value, matched exactly.
	PK string

	// SKPrefix optionally narrows the sort key with a begins_with match.
	SKPrefix string

	// Limit bounds the page size (0 = engine default).
	Limit int32

	// Ascending selects sort order; false yields newest-first for the
	// time-sorted indexes.
	Ascending bool

	// StartKey resumes after a previous page's LastKey. All key
	// attributes in this table are strings.
	StartKey map[string]string
}

// Page is one query result page. An absent LastKey means the result set
// is exhausted.
type Page struct {
	Items   []Item
	LastKey map[string]string
}

// SetMutation adds or removes one member of a string-set attribute.
type SetMutation struct {
	Key    keys.Key
	Field  string
	Member string

	// RequireExists fails the enclosing transaction when the target item
	// is missing.
	RequireExists bool
}

// Write is one element of a transactional write. Exactly one field is set.
type Write struct {
	// Put writes the item unconditionally.
	Put Item

	// PutIfAbsent writes the item only when its key is free.
	PutIfAbsent Item

	// SetAdd adds SetMutation.Member to a string set.
	SetAdd *SetMutation

	// SetRemove removes SetMutation.Member from a string set.
	SetRemove *SetMutation
}

// Engine is the store client contract.
type Engine interface {
	// Get returns the item at key, or ErrNotFound.
	Get(ctx context.Context, key keys.Key) (Item, error)

	// Put writes an item, replacing any existing one.
	Put(ctx context.Context, item Item) error

	// PutIfAbsent writes an item only if its key is not taken, failing
	// with ErrAlreadyExists otherwise.
	PutIfAbsent(ctx context.Context, item Item) error

	// Delete removes the item at key. Deleting an absent item is a no-op.
	Delete(ctx context.Context, key keys.Key) error

	// AddToCounter atomically adds delta to a numeric field, treating an
	// absent field as zero. A decrement that would land below floor is
	// dropped entirely; the floor is enforced by the store, not the caller.
	AddToCounter(ctx context.Context, key keys.Key, field string, delta, floor int64) error

	// AppendUnique appends value to an ordered list field unless already
	// present. Appending to an absent field creates it.
	AppendUnique(ctx context.Context, key keys.Key, field, value string) error

	// RemoveValue removes value from an ordered list field, preserving
	// the order of the rest. Removing an absent value is a no-op.
	RemoveValue(ctx context.Context, key keys.Key, field, value string) error

	// Query returns one page of a partition, ordered by sort key.
	Query(ctx context.Context, q Query) (Page, error)

	// Count returns the total number of items matching q, walking every
	// page. Limit and StartKey on q are ignored.
	Count(ctx context.Context, q Query) (int64, error)

	// SetCounter overwrites a numeric field with an absolute value. The
	// item must exist; ErrConditionFailed otherwise.
	SetCounter(ctx context.Context, key keys.Key, field string, value int64) error

	// TransactWrite applies all writes or none of them.
	TransactWrite(ctx context.Context, writes []Write) error
}

// indexAttrs maps an index name onto its key attribute names.
func indexAttrs(index string) (pkAttr, skAttr string) {
	switch index {
	case keys.FeedIndex:
		return "GSI1PK", "GSI1SK"
	case keys.TimelineIndex:
		return "GSI2PK", "GSI2SK"
	default:
		return "PK", "SK"
	}
}
