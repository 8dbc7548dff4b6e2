// Command reconcile-likes runs the stream handler that keeps likeCount
// in step with the like indicator items.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/plume/internal/storage"
	"github.com/jacentio/plume/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	table := os.Getenv("DYNAMO_TABLE")
	if table == "" {
		logger.Error("DYNAMO_TABLE is required")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("aws config", "error", err)
		os.Exit(1)
	}

	engine := storage.NewDynamo(dynamodb.NewFromConfig(awsCfg), table, nil)
	handler := stream.NewHandler(engine, logger)

	lambda.Start(handler.HandleLikeEvents)
}
