// Package model defines the item envelopes stored in the shared table.
//
// All entity kinds live in one table and are disambiguated by their
// composite key plus the entityType tag; readers inspect entityType
// before interpreting the remaining attributes.
package model

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/plume/internal/keys"
)

// UserItem is a user profile. Created once; only the list/set mirrors
// maintained by the toggles change afterwards.
type UserItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"entityType"`

	ID           string `dynamodbav:"id"`
	Username     string `dynamodbav:"username"`
	Email        string `dynamodbav:"email"` // always lowercased
	PasswordHash string `dynamodbav:"passwordHash"`
	CreatedAt    string `dynamodbav:"createdAt"`

	LikedPostIDs    UniqueList `dynamodbav:"likedPostIds,omitempty"`
	RepostedPostIDs UniqueList `dynamodbav:"repostedPostIds,omitempty"`

	FollowingIDs []string `dynamodbav:"followingIds,stringset,omitempty"`
	FollowerIDs  []string `dynamodbav:"followerIds,stringset,omitempty"`
}

// EmailLookupItem guards email uniqueness: its key is the lowercased
// address, so at most one user can ever hold it.
type EmailLookupItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"entityType"`

	UserID    string `dynamodbav:"userId"`
	CreatedAt string `dynamodbav:"createdAt"`
}

// PostItem is a post (authored or retweet copy), projected onto the feed
// and timeline indexes through the GSI attributes.
type PostItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"entityType"`

	ID          string   `dynamodbav:"id"`
	AuthorID    string   `dynamodbav:"authorId"`
	Content     string   `dynamodbav:"content"`
	CreatedAt   string   `dynamodbav:"createdAt"`
	RetweetOfID string   `dynamodbav:"retweetOfId,omitempty"`
	LikeCount   int      `dynamodbav:"likeCount"`
	ImageKeys   []string `dynamodbav:"imageKeys,omitempty"` // order preserved end-to-end

	FeedPK     string `dynamodbav:"GSI1PK"`
	FeedSK     string `dynamodbav:"GSI1SK"`
	TimelinePK string `dynamodbav:"GSI2PK"`
	TimelineSK string `dynamodbav:"GSI2SK"`
}

// IsRetweet reports whether the post is a retweet copy.
func (p *PostItem) IsRetweet() bool { return p.RetweetOfID != "" }

// LikeItem is a like indicator. Its presence is the entire like state.
type LikeItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"entityType"`

	PostID    string `dynamodbav:"postId"`
	UserID    string `dynamodbav:"userId"`
	CreatedAt string `dynamodbav:"createdAt"`
}

// EntityType reads the type tag off a raw item, or "" when absent.
func EntityType(item map[string]types.AttributeValue) string {
	if v, ok := item[attrEntityType].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

const attrEntityType = "entityType"

// NewUserItem builds the profile item for a freshly registered user.
func NewUserItem(id, username, email, passwordHash, createdAt string) UserItem {
	key := keys.User(id)
	return UserItem{
		PK:           key.PK,
		SK:           key.SK,
		EntityType:   keys.TypeUser,
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}
}

// NewEmailLookupItem builds the uniqueness guard paired with a profile.
func NewEmailLookupItem(email, userID, createdAt string) EmailLookupItem {
	key := keys.Email(email)
	return EmailLookupItem{
		PK:         key.PK,
		SK:         key.SK,
		EntityType: keys.TypeEmailLookup,
		UserID:     userID,
		CreatedAt:  createdAt,
	}
}

// NewLikeItem builds a like indicator item.
func NewLikeItem(postID, userID, createdAt string) LikeItem {
	key := keys.Like(postID, userID)
	return LikeItem{
		PK:         key.PK,
		SK:         key.SK,
		EntityType: keys.TypeLike,
		PostID:     postID,
		UserID:     userID,
		CreatedAt:  createdAt,
	}
}

// NewPostItem builds an authored post, projected onto the feed and
// timeline indexes.
func NewPostItem(id, authorID, content string, imageKeys []string, createdAt string) PostItem {
	key := keys.Post(id)
	return PostItem{
		PK:         key.PK,
		SK:         key.SK,
		EntityType: keys.TypePost,
		ID:         id,
		AuthorID:   authorID,
		Content:    content,
		CreatedAt:  createdAt,
		ImageKeys:  imageKeys,
		FeedPK:     keys.FeedPartition,
		FeedSK:     keys.FeedSK(createdAt, id),
		TimelinePK: keys.TimelinePK(authorID),
		TimelineSK: keys.TimelinePostSK(createdAt, id),
	}
}

// NewRetweetItem builds a retweet copy of original in the retweeter's
// timeline. Content and image keys are denormalized from the original
// at retweet time; the copy appears on the global feed like any post.
func NewRetweetItem(id, retweeterID string, original PostItem, createdAt string) PostItem {
	key := keys.Post(id)
	return PostItem{
		PK:          key.PK,
		SK:          key.SK,
		EntityType:  keys.TypePost,
		ID:          id,
		AuthorID:    retweeterID,
		Content:     original.Content,
		CreatedAt:   createdAt,
		RetweetOfID: original.ID,
		ImageKeys:   original.ImageKeys,
		FeedPK:      keys.FeedPartition,
		FeedSK:      keys.FeedSK(createdAt, id),
		TimelinePK:  keys.TimelinePK(retweeterID),
		TimelineSK:  keys.TimelineRetweetSK(original.ID, createdAt, id),
	}
}

// Marshal converts a typed item into its attribute-value form.
func Marshal(v any) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(v)
}

// Unmarshal converts a raw item back into a typed one.
func Unmarshal(item map[string]types.AttributeValue, out any) error {
	return attributevalue.UnmarshalMap(item, out)
}
