package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
)

// StorageType names a storage backend.
type StorageType string

const (
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
	StorageTypeMinIO        StorageType = "minio"
)

// S3Storage mirrors artifacts to AWS S3, Cloudflare R2 or any
// S3-compatible service through path-style requests.
type S3Storage struct {
	client    *s3.Client
	kind      StorageType
	bucket    string
	baseURL   string
	publicURL string
}

// NewS3Storage creates a client for cfg.Bucket.
func NewS3Storage(kind StorageType, cfg config.StorageConfig) (*S3Storage, error) {
	region := cfg.Region
	switch {
	case region != "":
	case kind == StorageTypeR2:
		region = "auto"
	default:
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	baseURL := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(baseURL)
		o.UsePathStyle = true
	})

	return &S3Storage{
		client:    client,
		kind:      kind,
		bucket:    cfg.Bucket,
		baseURL:   baseURL,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket when HeadBucket fails. R2 buckets can
// only be created from the Cloudflare dashboard.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	if s.kind == StorageTypeR2 {
		return fmt.Errorf("bucket %s does not exist, create it in the R2 dashboard", s.bucket)
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	logger.Info("Created bucket %s on %s", s.bucket, s.baseURL)
	return nil
}

func (s *S3Storage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noKey) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return out.Body, nil
}

// URL prefers the public URL (R2.dev or CDN) over the API endpoint.
func (s *S3Storage) URL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}

// normalizeEndpoint reduces an endpoint to host[:port].
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	host, _, _ := strings.Cut(endpoint, "/")
	return host
}

func endpointURL(endpoint string, useSSL bool) string {
	if useSSL {
		return "https://" + normalizeEndpoint(endpoint)
	}
	return "http://" + normalizeEndpoint(endpoint)
}
