package baseline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures an [S3Store]. Empty keys fall back to the AWS_*
// environment variables.
type S3Options struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Key       string `mapstructure:"key"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// CreateBucket makes the bucket on open when it does not exist.
	CreateBucket bool `mapstructure:"create_bucket"`
}

// S3Store keeps the log in one object of an S3-compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	key    string
}

// NewS3Store creates an [S3Store].
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("s3 baseline store requires 'endpoint' and 'bucket'")
	}

	creds := credentials.NewEnvAWS()
	if opts.AccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	if opts.CreateBucket {
		exists, err := client.BucketExists(ctx, opts.Bucket)
		if err != nil {
			return nil, fmt.Errorf("checking bucket %s: %w", opts.Bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
				return nil, fmt.Errorf("creating bucket %s: %w", opts.Bucket, err)
			}
		}
	}

	return &S3Store{client: client, bucket: opts.Bucket, key: opts.Key}, nil
}

// Load implements [Store].
func (s *S3Store) Load(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close() //nolint:errcheck

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save implements [Store].
func (s *S3Store) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// Close implements [Store].
func (s *S3Store) Close() error { return nil }

func (s *S3Store) String() string { return fmt.Sprintf("s3:%s/%s", s.bucket, s.key) }
