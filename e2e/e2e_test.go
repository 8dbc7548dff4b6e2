//go:build e2e

// Package e2e contains end-to-end tests against a real DynamoDB table.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/keys"
	"github.com/jacentio/plume/internal/likes"
	"github.com/jacentio/plume/internal/posts"
	"github.com/jacentio/plume/internal/storage"
	"github.com/jacentio/plume/internal/users"
)

const tablePrefix = "plume-e2e-test"

var (
	tableName string
	ddbClient *dynamodb.Client

	userSvc *users.Service
	postSvc *posts.Service
)

func TestMain(m *testing.M) {
	testID := uuid.New().String()[:8]
	tableName = fmt.Sprintf("%s-%s", tablePrefix, testID)

	fmt.Printf("Test table: %s\n", tableName)

	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(cfg)

	if err := createTable(ctx); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	engine := storage.NewDynamo(ddbClient, tableName, logger)
	userSvc = users.NewService(users.NewRepo(engine, logger), logger)
	postSvc = posts.NewService(posts.NewRepo(engine, logger), likes.NewRepo(engine, logger), userSvc, nil, logger)

	code := m.Run()

	if err := deleteTable(ctx); err != nil {
		fmt.Printf("Failed to delete table: %v\n", err)
	}
	os.Exit(code)
}

func createTable(ctx context.Context) error {
	stringAttr := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		}
	}
	keySchema := func(pk, sk string) []types.KeySchemaElement {
		return []types.KeySchemaElement{
			{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange},
		}
	}

	_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: keySchema("PK", "SK"),
		AttributeDefinitions: []types.AttributeDefinition{
			stringAttr("PK"), stringAttr("SK"),
			stringAttr("GSI1PK"), stringAttr("GSI1SK"),
			stringAttr("GSI2PK"), stringAttr("GSI2SK"),
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName:  aws.String(keys.FeedIndex),
				KeySchema:  keySchema("GSI1PK", "GSI1SK"),
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName:  aws.String(keys.TimelineIndex),
				KeySchema:  keySchema("GSI2PK", "GSI2SK"),
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}, 2*time.Minute)
}

func deleteTable(ctx context.Context) error {
	_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	return err
}

func register(t *testing.T, username string) string {
	t.Helper()
	u, err := userSvc.Register(context.Background(), username, fmt.Sprintf("%s-%s@example.com", username, uuid.New().String()[:8]), "hash")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u.ID
}

func TestRegistrationEmailUniqueness(t *testing.T) {
	ctx := context.Background()

	u, err := userSvc.Register(ctx, "dupe", "dupe@example.com", "hash")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	if _, err := userSvc.Register(ctx, "dupe2", "DUPE@example.com", "hash"); err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}

	got, err := userSvc.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != "dupe@example.com" {
		t.Errorf("expected lowercased email, got %q", got.Email)
	}
}

func TestPostFeedAndTimeline(t *testing.T) {
	ctx := context.Background()
	alice := register(t, "alice")

	var ids []string
	for i := 0; i < 3; i++ {
		p, err := postSvc.Create(ctx, alice, fmt.Sprintf("post %d", i), nil)
		if err != nil {
			t.Fatalf("create post: %v", err)
		}
		ids = append(ids, p.ID)
		time.Sleep(1100 * time.Millisecond) // distinct RFC3339 seconds
	}

	timeline, err := postSvc.UserPosts(ctx, alice, 10, "")
	if err != nil {
		t.Fatalf("user posts: %v", err)
	}
	if len(timeline.Items) != 3 {
		t.Fatalf("expected 3 timeline items, got %d", len(timeline.Items))
	}
	if timeline.Items[0].ID != ids[2] {
		t.Errorf("expected newest post first, got %s", timeline.Items[0].ID)
	}

	feed, err := postSvc.Feed(ctx, 2, "")
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("expected a 2-item page, got %d", len(feed.Items))
	}
	if feed.NextCursor == "" {
		t.Fatal("expected a continuation cursor")
	}

	next, err := postSvc.Feed(ctx, 2, feed.NextCursor)
	if err != nil {
		t.Fatalf("feed page 2: %v", err)
	}
	if len(next.Items) == 0 {
		t.Fatal("expected more feed items on the next page")
	}
	if next.Items[0].ID == feed.Items[len(feed.Items)-1].ID {
		t.Error("pages overlap")
	}
}

func TestLikeToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	alice := register(t, "alice-like")
	bob := register(t, "bob-like")

	p, err := postSvc.Create(ctx, alice, "likeable", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	liked, err := postSvc.ToggleLike(ctx, bob, p.ID)
	if err != nil || !liked {
		t.Fatalf("expected toggle on, got %v, %v", liked, err)
	}
	got, err := postSvc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.LikeCount != 1 {
		t.Errorf("expected like count 1, got %d", got.LikeCount)
	}

	liked, err = postSvc.ToggleLike(ctx, bob, p.ID)
	if err != nil || liked {
		t.Fatalf("expected toggle off, got %v, %v", liked, err)
	}
	got, err = postSvc.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.LikeCount != 0 {
		t.Errorf("expected like count 0, got %d", got.LikeCount)
	}
}

func TestFollowSymmetry(t *testing.T) {
	ctx := context.Background()
	alice := register(t, "alice-follow")
	bob := register(t, "bob-follow")

	following, err := userSvc.ToggleFollow(ctx, alice, bob)
	if err != nil || !following {
		t.Fatalf("expected follow on, got %v, %v", following, err)
	}

	a, err := userSvc.GetByID(ctx, alice)
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	b, err := userSvc.GetByID(ctx, bob)
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if !contains(a.FollowingIDs, bob) || !contains(b.FollowerIDs, alice) {
		t.Error("expected symmetric follow state")
	}

	following, err = userSvc.ToggleFollow(ctx, alice, bob)
	if err != nil || following {
		t.Fatalf("expected follow off, got %v, %v", following, err)
	}

	a, _ = userSvc.GetByID(ctx, alice)
	b, _ = userSvc.GetByID(ctx, bob)
	if contains(a.FollowingIDs, bob) || contains(b.FollowerIDs, alice) {
		t.Error("expected follow state cleared on both sides")
	}
}

func TestRetweetToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	alice := register(t, "alice-rt")
	bob := register(t, "bob-rt")

	original, err := postSvc.Create(ctx, alice, "worth sharing", nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	on, err := postSvc.ToggleRetweet(ctx, bob, original.ID)
	if err != nil || !on {
		t.Fatalf("expected retweet on, got %v, %v", on, err)
	}

	timeline, err := postSvc.UserPosts(ctx, bob, 10, "")
	if err != nil {
		t.Fatalf("user posts: %v", err)
	}
	if len(timeline.Items) != 1 || timeline.Items[0].RetweetOfID != original.ID {
		t.Fatalf("expected one retweet of %s on bob's timeline", original.ID)
	}

	on, err = postSvc.ToggleRetweet(ctx, bob, original.ID)
	if err != nil || on {
		t.Fatalf("expected retweet off, got %v, %v", on, err)
	}

	if _, err := postSvc.GetByID(ctx, original.ID); err != nil {
		t.Errorf("original must survive the untoggle: %v", err)
	}
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
