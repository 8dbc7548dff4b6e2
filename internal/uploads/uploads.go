// Package uploads issues presigned object-storage URLs for post images.
//
// The store itself never holds image bytes, only opaque keys; this
// package is the boundary that turns keys into short-lived URLs and
// enforces the content-type allow-list on the way in.
package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/apperr"
	"github.com/jacentio/plume/internal/ids"
)

// keyNamespace confines presignable keys to the post-image prefix.
const keyNamespace = "posts/"

// allowedTypes is the image content-type allow-list.
var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// Upload is a presigned upload slot.
type Upload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// Presigner hands out upload and view URLs for image keys.
type Presigner interface {
	// PresignUpload allocates a key namespaced under the owner and
	// returns a URL that accepts one PUT of the given content type.
	PresignUpload(ctx context.Context, ownerID, contentType string) (Upload, error)

	// PresignView returns a short-lived GET URL for an existing key.
	PresignView(ctx context.Context, key string) (string, error)
}

// S3PresignAPI is the slice of the S3 presign client this package uses.
type S3PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var _ S3PresignAPI = (*s3.PresignClient)(nil)

// Service is the S3-backed Presigner.
type Service struct {
	presign   S3PresignAPI
	bucket    string
	uploadTTL time.Duration
	viewTTL   time.Duration
	logger    *zap.Logger
}

// NewService creates an S3 presigner over one bucket.
func NewService(presign S3PresignAPI, bucket string, uploadTTL, viewTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		presign:   presign,
		bucket:    bucket,
		uploadTTL: uploadTTL,
		viewTTL:   viewTTL,
		logger:    logger,
	}
}

var _ Presigner = (*Service)(nil)

// PresignUpload allocates a key under the owner's namespace and signs a
// single-use PUT for it.
func (s *Service) PresignUpload(ctx context.Context, ownerID, contentType string) (Upload, error) {
	if _, ok := allowedTypes[contentType]; !ok {
		return Upload{}, apperr.InvalidInput("unsupported image type")
	}

	key := fmt.Sprintf("%s%s/%s", keyNamespace, ownerID, ids.New(ids.ImagePrefix))

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.uploadTTL))
	if err != nil {
		return Upload{}, apperr.Unavailable("presign upload", err)
	}

	return Upload{
		Key:       key,
		UploadURL: req.URL,
		ExpiresIn: int(s.uploadTTL.Seconds()),
	}, nil
}

// PresignView signs a GET for an existing key. Keys outside the post
// namespace are refused rather than signed.
func (s *Service) PresignView(ctx context.Context, key string) (string, error) {
	if len(key) < len(keyNamespace) || key[:len(keyNamespace)] != keyNamespace {
		return "", apperr.InvalidInput("invalid image key")
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.viewTTL))
	if err != nil {
		return "", apperr.Unavailable("presign view", err)
	}
	return req.URL, nil
}
