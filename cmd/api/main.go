// Command api runs the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
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

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return err
	}

	engine := storage.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.TableName, logger)
	images := uploads.NewService(
		s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		cfg.S3Bucket, cfg.S3UploadExpires, cfg.S3ViewExpires, logger)

	userSvc := users.NewService(users.NewRepo(engine, logger), logger)
	postSvc := posts.NewService(posts.NewRepo(engine, logger), likes.NewRepo(engine, logger), userSvc, images, logger)
	authSvc := auth.NewService(userSvc, []byte(cfg.JWTSecret), cfg.JWTExpires, logger)

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           httpapi.NewServer(authSvc, userSvc, postSvc, images, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ServerAddress))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
