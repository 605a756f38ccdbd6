package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3 stores files in an S3-compatible bucket (AWS, CEPH, MinIO, R2).
type S3 struct {
	client     *s3.Client
	bucket     string
	publicBase string
	logger     *slog.Logger
}

// S3Config holds the settings for an S3-compatible connection.
type S3Config struct {
	Endpoint       string // custom endpoint, e.g. "https://s3.ceph-provider.com"; empty for AWS
	Region         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool   // true for CEPH/MinIO
	Bucket         string
	PublicBaseURL  string // explicit public base URL override (CDN); empty to derive
}

// NewS3 creates an S3 adapter. The public base URL is resolved once, in
// priority order: explicit override, then endpoint+bucket for custom
// endpoints, then the default virtual-hosted AWS URL.
func NewS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3, error) {
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: s3PublicBase(cfg),
		logger:     logger,
	}, nil
}

func s3PublicBase(cfg S3Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func (s *S3) Driver() Driver { return DriverS3 }

func (s *S3) PublicPath(key string) string {
	return s.publicBase + "/" + key
}

// resolveKey inverts PublicPath, also tolerating the s3:// scheme form used
// before a public base URL was configured.
func (s *S3) resolveKey(path string) string {
	if strings.HasPrefix(path, s.publicBase+"/") {
		return strings.TrimPrefix(path, s.publicBase+"/")
	}
	if scheme := "s3://" + s.bucket + "/"; strings.HasPrefix(path, scheme) {
		return strings.TrimPrefix(path, scheme)
	}
	return strings.TrimPrefix(path, "/")
}

func (s *S3) ResolveTargets(refs []Ref) []Descriptor {
	return resolveTargets(s, refs)
}

func (s *S3) Persist(ctx context.Context, files []Upload, folder string) ([]Descriptor, error) {
	written := make([]string, 0, len(files))
	out := make([]Descriptor, 0, len(files))

	for _, f := range files {
		key := ObjectKey(folder, f.Filename)

		input := &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        f.Body,
			ContentType: aws.String(f.ContentType),
		}
		if _, err := s.client.PutObject(ctx, input); err != nil {
			s.rollback(ctx, written)
			return nil, fmt.Errorf("putting object %s: %w", key, err)
		}

		written = append(written, key)
		out = append(out, Descriptor{Path: s.PublicPath(key), Key: key})
	}

	return out, nil
}

// rollback deletes objects already uploaded in a failing batch. Failures are
// logged; they never mask the original persist error.
func (s *S3) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.deleteObject(ctx, key); err != nil {
			s.logger.Warn("rollback failed to delete object",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *S3) Remove(ctx context.Context, targets []Descriptor) error {
	var errs []error
	for _, t := range targets {
		if err := s.deleteObject(ctx, t.Key); err != nil {
			errs = append(errs, fmt.Errorf("deleting object %s: %w", t.Key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *S3) deleteObject(ctx context.Context, key string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if _, err := s.client.DeleteObject(ctx, input); err != nil && !isS3NotFound(err) {
		return err
	}
	return nil
}

// isS3NotFound reports whether err is a missing-object response. Deleting a
// key that is already gone is success, which makes duplicate cleanup safe.
func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
