package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
)

// MinIOStorage mirrors artifacts to a MinIO server.
type MinIOStorage struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinIOStorage creates a client for cfg.Bucket.
func NewMinIOStorage(cfg config.StorageConfig) (*MinIOStorage, error) {
	client, err := minio.New(normalizeEndpoint(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIOStorage{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: endpointURL(cfg.Endpoint, cfg.UseSSL),
	}, nil
}

// EnsureBucket creates the bucket when missing. The bucket stays private.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	logger.Info("Created bucket %s on %s", s.bucket, s.baseURL)
	return nil
}

func (s *MinIOStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if _, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Get stats the object first; minio's GetObject only fails on the first read.
func (s *MinIOStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err == nil {
		_, err = obj.Stat()
	}
	if err != nil {
		if obj != nil {
			obj.Close()
		}
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return obj, nil
}

func (s *MinIOStorage) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}
