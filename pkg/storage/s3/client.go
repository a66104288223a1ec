package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

// Client wraps the R2/S3 bucket that holds the photo files. The platform only
// checks object existence, resolves download locators, and lists keys for the
// orphan scan; uploads happen in a separate pipeline.
type Client struct {
	client        *minio.Client
	bucket        string
	presignExpiry time.Duration
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ObjectInfo describes one stored photo object.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
}

// New builds a MinIO-backed client from configuration and verifies the bucket
// is reachable.
func New(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}

	client := &Client{
		client:        mc,
		bucket:        cfg.Bucket,
		presignExpiry: cfg.DownloadURLExpiry,
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "storage client initialized")
	}
	return client, nil
}

// Ping verifies the configured bucket exists and is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("storage client not initialized")
	}
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}
	return nil
}

// Exists reports whether an object is present at key.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
	return true, nil
}

// Resolve returns a presigned download locator for the object at key.
func (c *Client) Resolve(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("object key is required")
	}
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, c.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return u.String(), nil
}

// ListKeys walks the bucket under prefix and returns every object key. Used
// by the orphan scan to find stored files with no catalog record.
func (c *Client) ListKeys(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    strings.TrimPrefix(prefix, "/"),
		Recursive: true,
	}
	var infos []ObjectInfo
	for object := range c.client.ListObjects(ctx, c.bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects: %w", object.Err)
		}
		infos = append(infos, ObjectInfo{Key: object.Key, SizeBytes: object.Size})
	}
	return infos, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// PhotoNumberFromKey extracts the photo number from an object key. Keys
// follow `<prefix>/<photo_number>.<ext>`; the base name minus its extension
// is the number.
func PhotoNumberFromKey(key string) string {
	base := path.Base(key)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}
