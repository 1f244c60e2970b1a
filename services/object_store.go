package services

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/kendall-kelly/procurement-api/config"
	"go.uber.org/zap"
)

// ObjectStore holds attachment content.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, content []byte) error
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3Store keeps objects in a private S3 bucket
type S3Store struct {
	client *s3.Client
	bucket string
	expiry time.Duration
}

var (
	storeMu       sync.RWMutex
	storeInstance ObjectStore
)

// InitS3Store builds an S3-backed store from the AWS settings and installs
// it as the process-wide store
func InitS3Store(ctx context.Context, cfg *appConfig.Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	store := &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.AWSS3Bucket,
		expiry: time.Hour,
	}
	SetObjectStore(store)
	return store, nil
}

// GetObjectStore returns the installed store, or nil when attachments are
// not configured
func GetObjectStore() ObjectStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return storeInstance
}

// SetObjectStore sets the store instance (primarily for testing)
func SetObjectStore(store ObjectStore) {
	storeMu.Lock()
	storeInstance = store
	storeMu.Unlock()
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, content []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a GET URL for a private object, valid for one hour
func (s *S3Store) PresignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	request, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.expiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// removeStoredObjects deletes objects whose rows are already gone. Failures
// leave orphans in the bucket and are only logged.
func removeStoredObjects(ctx context.Context, keys []string) {
	store := GetObjectStore()
	if store == nil {
		return
	}
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			appConfig.L().Warn("could not remove stored object", zap.String("key", key), zap.Error(err))
		}
	}
}
