package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config describes an object storage destination.
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
	User     string
	Password string
	Timeout  time.Duration
}

// S3 spools lines to a temporary file and uploads it as a single object on
// Close. Compression follows the object key's extension.
type S3 struct {
	*lineWriter
	client  *s3.Client
	bucket  string
	key     string
	timeout time.Duration
	spool   *os.File
}

// NewS3Client builds a path-style client with static credentials, suitable
// for MinIO and other S3-compatible stores.
func NewS3Client(cfg S3Config) *s3.Client {
	return s3.New(s3.Options{
		Region:                     cfg.Region,
		BaseEndpoint:               aws.String(cfg.Endpoint),
		DefaultsMode:               aws.DefaultsModeStandard,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.User, cfg.Password, "" /* session */),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenSupported,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenSupported,
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})
}

// OpenS3 prepares an upload of key into the configured bucket, creating the
// bucket if needed.
func OpenS3(ctx context.Context, cfg S3Config, key string) (*S3, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	client := NewS3Client(cfg)
	if err := ensureBucketExists(ctx, client, cfg.Bucket, cfg.Timeout); err != nil {
		return nil, err
	}
	spool, err := os.CreateTemp("", "pairgen-*.spool")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	lw, err := newLineWriter(spool, CompressionFor(key))
	if err != nil {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
		return nil, err
	}
	return &S3{
		lineWriter: lw,
		client:     client,
		bucket:     cfg.Bucket,
		key:        key,
		timeout:    cfg.Timeout,
		spool:      spool,
	}, nil
}

// Close implements Sink. The object is only written if every line was
// flushed successfully.
func (s *S3) Close() error {
	spool := s.release()
	if spool == nil {
		return nil
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	if err := s.finish(); err != nil {
		return err
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool file: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        spool,
		ContentType: aws.String(contentType(CompressionFor(s.key))),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Abort implements Sink. The spool is discarded and nothing is uploaded.
func (s *S3) Abort() error {
	spool := s.release()
	if spool == nil {
		return nil
	}
	s.discard()
	return errors.Join(spool.Close(), os.Remove(spool.Name()))
}

func (s *S3) release() *os.File {
	spool := s.spool
	s.spool = nil
	return spool
}

func ensureBucketExists(ctx context.Context, client *s3.Client, bucket string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func contentType(c Compression) string {
	switch c {
	case Gzip:
		return "application/gzip"
	case Zstd:
		return "application/zstd"
	default:
		return "text/plain; charset=utf-8"
	}
}
