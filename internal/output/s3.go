package output

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ObjectStore is the subset of an S3-compatible API used for uploads.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// S3Options configures an S3Client.
type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Client implements ObjectStore with minio-go.
type S3Client struct {
	client *minio.Client
	region string
}

// NewS3Client creates a client for the given endpoint. The endpoint may be
// a bare host:port or a URL; an https scheme enables TLS.
func NewS3Client(opts S3Options) (*S3Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}

	endpoint := opts.Endpoint
	useSSL := opts.UseSSL
	if u, err := url.Parse(opts.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: useSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}
	return &S3Client{client: client, region: opts.Region}, nil
}

// EnsureBucket creates bucket if it does not exist.
func (s *S3Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", bucket, err)
	}
	return nil
}

// PutObject uploads data under key.
func (s *S3Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Uploader copies produced files into a bucket under a key prefix.
type Uploader struct {
	store  ObjectStore
	bucket string
	prefix string
	logger *logrus.Entry
}

// NewUploader creates an Uploader.
func NewUploader(store ObjectStore, bucket, prefix string, logger *logrus.Entry) *Uploader {
	return &Uploader{
		store:  store,
		bucket: bucket,
		prefix: prefix,
		logger: logger.WithField("component", "uploader"),
	}
}

// Key returns the object key a local file is uploaded under.
func (u *Uploader) Key(file string) string {
	return path.Join(u.prefix, filepath.Base(file))
}

// Upload ensures the bucket exists and uploads every file, stopping at the
// first error.
func (u *Uploader) Upload(ctx context.Context, files ...string) error {
	if err := u.store.EnsureBucket(ctx, u.bucket); err != nil {
		return err
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		key := u.Key(f)
		if err := u.store.PutObject(ctx, u.bucket, key, data, "text/csv"); err != nil {
			return err
		}
		u.logger.WithFields(logrus.Fields{
			"bucket": u.bucket,
			"key":    key,
			"bytes":  len(data),
		}).Info("uploaded")
	}
	return nil
}
