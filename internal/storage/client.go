// Package storage is a thin object-storage abstraction over MinIO with
// per-bucket public/private access policy.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/foliobase/foliobase/pkg/apperr"
)

// Client wraps MinIO and provides bucket-scoped object storage.
type Client struct {
	mc            *minio.Client
	enabled       bool
	publicBuckets map[string]struct{}
	publicBase    string
	maxUploadSize int64
}

// Config holds MinIO connection settings and bucket policy.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"` // e.g. "minio:9000" or "localhost:9000"
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	UseSSL          bool   `mapstructure:"usessl"`
	// PublicBuckets is a comma-separated allow-list of publicly readable buckets.
	PublicBuckets string `mapstructure:"publicbuckets"`
	// MaxUploadBytes rejects larger uploads before any storage I/O. Zero
	// means the default of 50 MiB.
	MaxUploadBytes int64 `mapstructure:"maxuploadbytes"`
}

// DefaultMaxUploadBytes caps uploads when no ceiling is configured.
const DefaultMaxUploadBytes = 50 << 20

// ErrDisabled is returned when storage is not configured.
var ErrDisabled = fmt.Errorf("storage service not configured")

// NewClient creates a storage client. If config has an empty Endpoint, the
// client is disabled (all ops return ErrDisabled).
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		publicBuckets: make(map[string]struct{}),
		maxUploadSize: cfg.MaxUploadBytes,
	}
	if c.maxUploadSize <= 0 {
		c.maxUploadSize = DefaultMaxUploadBytes
	}
	for _, b := range strings.Split(cfg.PublicBuckets, ",") {
		if b = strings.TrimSpace(b); b != "" {
			c.publicBuckets[b] = struct{}{}
		}
	}
	if cfg.Endpoint == "" {
		return c, nil
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	c.mc = mc
	c.enabled = true

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	c.publicBase = scheme + "://" + cfg.Endpoint
	return c, nil
}

// Enabled reports whether the storage client is configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// IsPublicBucket reports whether bucket may be read without authentication.
func (c *Client) IsPublicBucket(bucket string) bool {
	_, ok := c.publicBuckets[bucket]
	return ok
}

// MaxUploadBytes returns the configured upload ceiling.
func (c *Client) MaxUploadBytes() int64 {
	return c.maxUploadSize
}

// UploadInfo describes a stored object.
type UploadInfo struct {
	Path     string `json:"path"`
	ID       string `json:"id"`
	FullPath string `json:"fullPath"`
}

// EnsureBucket creates the bucket if it does not exist (idempotent).
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if !c.enabled {
		return ErrDisabled
	}
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

// Upload stores an object. Oversized uploads fail before any storage I/O.
func (c *Client) Upload(ctx context.Context, bucket, path string, reader io.Reader, size int64, contentType string) (*UploadInfo, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	if size > c.maxUploadSize {
		return nil, apperr.PayloadTooLarge(fmt.Sprintf("upload exceeds %d bytes", c.maxUploadSize))
	}
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, bucket, path, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, err
	}
	return &UploadInfo{
		Path:     path,
		ID:       uuid.New().String(),
		FullPath: bucket + "/" + path,
	}, nil
}

// Object holds the reader and metadata for a downloaded object.
type Object struct {
	Reader       io.ReadCloser
	ContentType  string
	Size         int64
	LastModified time.Time
}

// Download streams an object. A missing object resolves to not_found.
func (c *Client) Download(ctx context.Context, bucket, path string) (*Object, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	obj, err := c.mc.GetObject(ctx, bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFoundOr(err, bucket, path)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, notFoundOr(err, bucket, path)
	}
	return &Object{
		Reader:       obj,
		ContentType:  info.ContentType,
		Size:         info.Size,
		LastModified: info.LastModified,
	}, nil
}

// Remove deletes the given paths. Any missing path fails the batch with
// not_found before deletions for later paths run.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if !c.enabled {
		return ErrDisabled
	}
	for _, path := range paths {
		if _, err := c.mc.StatObject(ctx, bucket, path, minio.StatObjectOptions{}); err != nil {
			return notFoundOr(err, bucket, path)
		}
		if err := c.mc.RemoveObject(ctx, bucket, path, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// ObjectInfo is a minimal object listing entry.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// List lists objects in the bucket with optional prefix.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	ch := c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	out := []ObjectInfo{}
	for obj := range ch {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// PublicURL constructs the unauthenticated URL for an object in a public
// bucket. Pure string construction, no I/O and no existence check.
func (c *Client) PublicURL(bucket, path string) string {
	return c.publicBase + "/" + bucket + "/" + strings.TrimPrefix(path, "/")
}

// SignedURL mints a server-issued time-limited URL for a private object.
func (c *Client) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}
	u, err := c.mc.PresignedGetObject(ctx, bucket, path, ttl, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// notFoundOr maps MinIO "no such key/bucket" responses onto not_found.
func notFoundOr(err error, bucket, path string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return apperr.NotFound(fmt.Sprintf("object %s/%s not found", bucket, path))
	}
	return err
}
