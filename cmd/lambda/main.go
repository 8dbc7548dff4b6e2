// Command lambda serves the same API behind API Gateway.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/auth"
	"github.com/jacentio/plume/internal/config"
	"github.com/jacentio/plume/internal/httpapi"
	"github.com/jacentio/plume/internal/likes"
	"github.com/jacentio/plume/internal/posts"
	"github.com/jacentio/plume/internal/storage"
	"github.com/jacentio/plume/internal/uploads"
	"github.com/jacentio/plume/internal/users"
)

var adapter *chiadapter.ChiLambdaV2

func init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Fatal("aws config", zap.Error(err))
	}

	engine := storage.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.TableName, logger)
	images := uploads.NewService(
		s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		cfg.S3Bucket, cfg.S3UploadExpires, cfg.S3ViewExpires, logger)

	userSvc := users.NewService(users.NewRepo(engine, logger), logger)
	postSvc := posts.NewService(posts.NewRepo(engine, logger), likes.NewRepo(engine, logger), userSvc, images, logger)
	authSvc := auth.NewService(userSvc, []byte(cfg.JWTSecret), cfg.JWTExpires, logger)

	router := httpapi.NewServer(authSvc, userSvc, postSvc, images, logger).Router()
	adapter = chiadapter.NewV2(router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return adapter.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(handler)
}
