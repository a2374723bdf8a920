// Package storage mirrors placed extraction files to S3-compatible object
// storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/auddy/backend/internal/errors"
	"github.com/auddy/backend/internal/extraction"
)

// Mirror is an object store that placed files are copied to.
type Mirror interface {
	Mirror(ctx context.Context, key, path string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// ============================================================================
// Client (minio-go)
// ============================================================================

// Client mirrors files to a MinIO bucket.
type Client struct {
	client *minio.Client
	bucket string
	retry  *apperrors.RetryConfig
}

// Config holds the configuration for the MinIO client.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips bucket location lookups when set.
	Region string
}

// New creates a new MinIO client.
func New(cfg *Config) (*Client, error) {
	// minio-go expects host:port
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		client: client,
		bucket: cfg.Bucket,
		retry:  apperrors.StorageRetryConfig(),
	}, nil
}

// Mirror uploads the file at path under key.
func (c *Client) Mirror(ctx context.Context, key, path string) error {
	opts := minio.PutObjectOptions{ContentType: ContentType(path)}
	return apperrors.Retry(ctx, c.retry, func(ctx context.Context) error {
		if _, err := c.client.FPutObject(ctx, c.bucket, key, path, opts); err != nil {
			return classify(fmt.Sprintf("failed to put object %s", key), err)
		}
		return nil
	})
}

// Exists checks if an object exists in storage.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return apperrors.RetryWithResult(ctx, c.retry, func(ctx context.Context) (bool, error) {
		_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				return false, nil
			}
			return false, classify(fmt.Sprintf("failed to stat object %s", key), err)
		}
		return true, nil
	})
}

// Delete removes an object from storage.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
		}
	}

	return nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Ping checks if the storage is accessible by verifying bucket exists.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

// ContentType returns the MIME type of an extracted audio file by extension.
func ContentType(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "application/octet-stream"
	}
	return extraction.Format(strings.ToLower(ext)).ContentType()
}

// classify wraps err as a retryable StorageError when the object store
// answered with a transient status, and as a plain error otherwise.
func classify(msg string, err error) error {
	status := 0
	var re *awshttp.ResponseError
	switch {
	case errors.As(err, &re):
		status = re.HTTPStatusCode()
	default:
		status = minio.ToErrorResponse(err).StatusCode
	}

	if status != 0 && !apperrors.HTTPRetryableStatus(status) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return apperrors.StorageError(msg).WithCause(err)
}

var (
	_ Mirror = (*Client)(nil)
	_ Mirror = (*S3Storage)(nil)
)
