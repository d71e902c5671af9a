package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/catalogue"
	"go.uber.org/zap"
)

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3FileStore keeps file and image attribute uploads in an S3 bucket.
// Calls fail fast with CIRCUIT_OPEN while the breaker is open.
type S3FileStore struct {
	client   s3API
	uploader s3Uploader
	bucket   string
	baseURL  string
	breaker  *CircuitBreaker
}

// NewS3FileStore builds an S3 client from cfg. Static credentials are used
// when configured, otherwise the default AWS credential chain.
func NewS3FileStore(ctx context.Context, cfg catalogue.StorageConfig) (*S3FileStore, error) {
	if err := ValidateS3Config(cfg); err != nil {
		return nil, err
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.Endpoint))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3FileStore(client, manager.NewUploader(client), cfg), nil
}

func newS3FileStore(client s3API, uploader s3Uploader, cfg catalogue.StorageConfig) *S3FileStore {
	return &S3FileStore{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		baseURL:  s3BaseURL(cfg),
		breaker:  NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerWindow, cfg.BreakerOpenFor),
	}
}

// s3BaseURL is the URL prefix public object URLs are built from.
func s3BaseURL(cfg catalogue.StorageConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "" && cfg.UsePathStyle:
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/")
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (f *S3FileStore) URL(key string) string {
	return f.baseURL + "/" + strings.TrimLeft(key, "/")
}

// EnsureBucket creates the bucket if it does not exist yet.
func (f *S3FileStore) EnsureBucket(ctx context.Context) error {
	if _, err := f.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(f.bucket)}); err == nil {
		return nil
	}
	_, err := f.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(f.bucket)})
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return nil
		}
	}
	return fmt.Errorf("create bucket %s: %w", f.bucket, err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func circuitOpenError(op string) error {
	return catalogue.NewCatalogueError(catalogue.ErrorTypeStorage, catalogue.ErrCodeCircuitOpen,
		fmt.Sprintf("file store %s refused: circuit open", op))
}

func (f *S3FileStore) failure(ctx context.Context, op string, err error) error {
	f.breaker.RecordFailure()
	EmitFileStoreError(ctx, op)
	return catalogue.NewCatalogueError(catalogue.ErrorTypeStorage, catalogue.ErrCodeFileStoreFailed,
		fmt.Sprintf("s3 %s failed", op)).WithCause(err)
}

func (f *S3FileStore) Save(ctx context.Context, key string, file catalogue.FileHandle) (catalogue.StoredFile, error) {
	if file.Body == nil {
		return catalogue.StoredFile{}, fmt.Errorf("file %s has no body", file.Name)
	}
	if f.breaker.IsOpen() {
		return catalogue.StoredFile{}, circuitOpenError("save")
	}
	body := &countingReader{r: file.Body}
	input := &s3.PutObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}
	if _, err := f.uploader.Upload(ctx, input); err != nil {
		return catalogue.StoredFile{}, f.failure(ctx, "save", err)
	}
	f.breaker.RecordSuccess()

	zap.S().Debugw("uploaded attribute file", "bucket", f.bucket, "key", key, "size", body.n)
	return catalogue.StoredFile{
		Key:         key,
		Name:        file.Name,
		ContentType: file.ContentType,
		Size:        body.n,
		URL:         f.URL(key),
	}, nil
}

// Delete removes the object. A missing object is not an error.
func (f *S3FileStore) Delete(ctx context.Context, key string) error {
	if f.breaker.IsOpen() {
		return circuitOpenError("delete")
	}
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil
		}
		return f.failure(ctx, "delete", err)
	}
	f.breaker.RecordSuccess()
	return nil
}
