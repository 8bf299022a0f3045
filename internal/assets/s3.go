// Package assets stores user uploaded images in S3 compatible object storage.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
)

type Config struct {
	// Custom endpoint for MinIO and friends, empty for AWS
	Endpoint string
	Region   string
	Bucket   string

	AccessKey string
	SecretKey string

	// Base of returned URLs
	// If empty then URL is built from endpoint and bucket
	PublicURL string

	UsePathStyle bool

	// Attempts per upload, SDK default if zero
	MaxAttempts int
}

type S3Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("error while loading s3 config. Err: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		switch {
		case cfg.Endpoint != "":
			publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		default:
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &S3Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload file from local path and return its public URL
// Local file is left in place, see Release
func (u *S3Uploader) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUploadFailed, err)
	}
	defer f.Close() // nolint:errcheck

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: can't detect content type: %w", apperrors.ErrUploadFailed, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUploadFailed, err)
	}

	key := storageKey(time.Now(), mime.Extension())

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(mime.String()),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUploadFailed, err)
	}

	return u.publicURL + "/" + key, nil
}

func storageKey(d time.Time, ext string) string {
	return fmt.Sprintf("assets/%04d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// Remove temporary local file
// Missing file or empty path is not an error
func Release(path string) error {
	if path == "" {
		return nil
	}

	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
