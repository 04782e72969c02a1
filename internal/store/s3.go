package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/donaldgifford/slo-reporter/internal/config"
)

// S3Store implements ObjectStore on one bucket of an S3-compatible service
// such as Ceph RGW.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

// S3Option configures an S3Store.
type S3Option func(*s3Settings)

type s3Settings struct {
	httpClient aws.HTTPClient
	log        *slog.Logger
}

// WithHTTPClient sets the HTTP client used for S3 requests.
func WithHTTPClient(c aws.HTTPClient) S3Option {
	return func(s *s3Settings) {
		s.httpClient = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) S3Option {
	return func(s *s3Settings) {
		s.log = l
	}
}

// NewS3Store creates an S3Store for the bucket described by cfg. Requests use
// path-style addressing so that Ceph endpoints without wildcard DNS work.
func NewS3Store(ctx context.Context, cfg *config.BucketConfig, opts ...S3Option) (*S3Store, error) {
	settings := &s3Settings{log: slog.Default()}
	for _, opt := range opts {
		opt(settings)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if settings.httpClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(settings.httpClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
		// Ceph RGW rejects the default CRC trailers of newer SDKs.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    settings.log,
	}, nil
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Put writes data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	full := joinKey(s.prefix, key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", s.bucket, full, err)
	}
	s.log.Debug("object stored", "bucket", s.bucket, "key", full, "bytes", len(data))
	return nil
}

// Get reads the object under key. A missing object returns ErrNotFound.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	full := joinKey(s.prefix, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, full, ErrNotFound)
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, full, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, full, err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
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
