package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/youruser/bannerprint/internal/config"
)

// MinIOStore resolves asset keys to presigned URLs and uploads print files.
type MinIOStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 || ttl > 7*24*time.Hour {
		ttl = 24 * time.Hour
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinIOStore) ResolveURL(ctx context.Context, fileKey string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(fileKey), "/")
	if key == "" {
		return "", ErrEmptyKey
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Upload stores data under folder with a collision-free name derived from
// fileName and returns the key with a presigned download URL.
func (s *MinIOStore) Upload(ctx context.Context, folder, fileName, contentType string, data []byte) (*StoredObject, error) {
	key := ObjectKey(folder, fileName, uuid.NewString())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	u, err := s.ResolveURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &StoredObject{Key: key, URL: u, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

// ObjectKey joins folder and fileName, inserting the first 8 characters of id before the extension.
func ObjectKey(folder, fileName, id string) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	if len(id) > 8 {
		id = id[:8]
	}
	return path.Join(folder, fmt.Sprintf("%s_%s%s", base, id, ext))
}
