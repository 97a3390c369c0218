package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the slice of the S3 client the uploader needs; tests substitute a
// fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Uploader ships pipeline artifacts to an S3 bucket under an optional key
// prefix.
type S3Uploader struct {
	client s3API
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newS3Uploader(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Uploader(client s3API, bucket, prefix string, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{client: client, bucket: bucket, prefix: prefix, log: logger}
}

func (u *S3Uploader) key(name string) string {
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}

// Upload stores one local file under its base name. The body streams from
// disk; artifacts can run to many gigabytes. An object already present under
// the key is left alone, so retry runs do not re-ship finished artifacts.
func (u *S3Uploader) Upload(ctx context.Context, localFile string) error {
	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", localFile, err)
	}
	defer f.Close()

	name := filepath.Base(localFile)
	key := u.key(name)

	if exists, err := u.Exists(ctx, name); err != nil {
		u.log.Warn("could not check for existing object; uploading anyway", "key", key, "error", err)
	} else if exists {
		u.log.Info("object already uploaded; skipping", "bucket", u.bucket, "key", key)
		return nil
	}

	u.log.Info("uploading artifact", "file", localFile, "bucket", u.bucket, "key", key)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

// Exists reports whether an object is already present under the key for the
// given file name.
func (u *S3Uploader) Exists(ctx context.Context, name string) (bool, error) {
	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key(name)),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head s3://%s/%s: %w", u.bucket, u.key(name), err)
	}
	return true, nil
}
