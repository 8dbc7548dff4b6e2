// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the binaries need to start.
type Config struct {
	ServerAddress string
	AWSRegion     string

	TableName string

	S3Bucket        string
	S3UploadExpires time.Duration
	S3ViewExpires   time.Duration

	JWTSecret  string
	JWTExpires time.Duration
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),

		TableName: getEnv("DYNAMO_TABLE", ""),

		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3UploadExpires: getDuration("S3_UPLOAD_EXPIRES_SECONDS", 60*time.Second),
		S3ViewExpires:   getDuration("S3_VIEW_EXPIRES_SECONDS", 300*time.Second),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTExpires: getDuration("JWT_EXPIRES_SECONDS", 24*time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TableName == "" {
		return fmt.Errorf("DYNAMO_TABLE is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration reads a whole-seconds value; malformed input falls back.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
