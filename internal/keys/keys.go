// Package keys builds the physical key tuples for the single shared table.
//
// Every entity kind maps deterministically onto a partition/sort key pair,
// and posts are additionally projected onto two secondary indexes: the
// global feed index (one fixed partition, reverse-chronological sort) and
// the per-user timeline index. The scheme is load-bearing data layout --
// changing any of these formats is a data migration, not a refactor.
package keys

import "fmt"

// Index names and sort-key prefixes.
const (
	FeedIndex     = "GSI1"
	TimelineIndex = "GSI2"

	FeedPartition = "FEED#GLOBAL"

	retweetPrefix = "RT#"
)

// Entity type tags stored in the entityType attribute.
const (
	TypeUser        = "USER"
	TypeEmailLookup = "EMAIL_LOOKUP"
	TypePost        = "POST"
	TypeLike        = "LIKE"
)

// Key is a composite partition/sort key pair.
type Key struct {
	PK string
	SK string
}

// User returns the key of a user profile item.
func User(userID string) Key {
	return Key{PK: "USER#" + userID, SK: "PROFILE"}
}

// Email returns the key of an email lookup item. The existence of this
// item is the uniqueness guard for the address; callers must pass the
// already-lowercased form.
func Email(email string) Key {
	return Key{PK: "EMAIL#" + email, SK: "USER"}
}

// Post returns the key of a post metadata item.
func Post(postID string) Key {
	return Key{PK: "POST#" + postID, SK: "META"}
}

// Like returns the key of a like indicator item. Presence of the item is
// the only like state there is.
func Like(postID, userID string) Key {
	return Key{PK: "POST#" + postID, SK: "LIKE#USER#" + userID}
}

// LikePrefix is the sort-key prefix shared by every like indicator in a
// post's partition.
const LikePrefix = "LIKE#"

// FeedSK returns the feed-index sort key for a post. The timestamp comes
// first so that a reverse query yields newest-first order; the id breaks
// ties between posts created in the same instant.
func FeedSK(createdAt, postID string) string {
	return fmt.Sprintf("POST#%s#%s", createdAt, postID)
}

// TimelinePK returns the timeline-index partition key for an author.
func TimelinePK(userID string) string {
	return "USER#" + userID
}

// TimelinePostSK returns the timeline-index sort key for an authored post.
func TimelinePostSK(createdAt, postID string) string {
	return fmt.Sprintf("POST#%s#%s", createdAt, postID)
}

// TimelineRetweetSK returns the timeline-index sort key for a retweet.
// The original post id is embedded before the timestamp so that
// RetweetPrefix can locate a user's retweet of a given post with a
// single prefix query.
func TimelineRetweetSK(originalID, createdAt, postID string) string {
	return fmt.Sprintf("%s%s#%s#%s", retweetPrefix, originalID, createdAt, postID)
}

// RetweetPrefix returns the sort-key prefix matching any retweet of the
// given original post within one user's timeline partition.
func RetweetPrefix(originalID string) string {
	return retweetPrefix + originalID + "#"
}
