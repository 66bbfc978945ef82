package vault

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"msync/internal/config"
)

// LifecycleRuleID names the rule that expires noncurrent object versions.
const LifecycleRuleID = "Delete_noncurrent_versions"

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// uploader streams objects to S3, switching to multipart uploads for large bodies.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store is an ObjectStore backed by one S3 bucket. The bucket is versioned
// so that overwritten and deleted objects stay recoverable until the
// lifecycle rule expires them.
type S3Store struct {
	client         s3API
	uploader       uploader
	bucket         string
	region         string
	storageClass   types.StorageClass
	noncurrentDays int32
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Client builds an S3 client from the vault configuration. Static
// credentials are used when configured, the default AWS chain otherwise.
func NewS3Client(ctx context.Context, cfg config.VaultConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// NewS3Store creates a store for bucket using client.
func NewS3Store(client *s3.Client, cfg config.VaultConfig, bucket string) *S3Store {
	return newS3Store(client, manager.NewUploader(client), cfg, bucket)
}

func newS3Store(client s3API, up uploader, cfg config.VaultConfig, bucket string) *S3Store {
	return &S3Store{
		client:         client,
		uploader:       up,
		bucket:         bucket,
		region:         cfg.Region,
		storageClass:   types.StorageClass(cfg.StorageClass),
		noncurrentDays: cfg.NoncurrentDays,
	}
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if s.storageClass != "" {
		input.StorageClass = s.storageClass
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Validate creates the bucket when it does not exist yet. Versioning and the
// noncurrent version lifecycle rule are applied on every call, so buckets
// created elsewhere are brought to the same settings.
func (s *S3Store) Validate(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
		}
		if err := s.createBucket(ctx); err != nil {
			return err
		}
	}
	return s.configureBucket(ctx)
}

func (s *S3Store) createBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// configureBucket enables versioning and puts the lifecycle rule. Both calls
// replace the previous setting and are safe to repeat.
func (s *S3Store) configureBucket(ctx context.Context) error {
	_, err := s.client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(s.bucket),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return fmt.Errorf("enabling versioning on %s: %w", s.bucket, err)
	}

	if s.noncurrentDays <= 0 {
		return nil
	}
	_, err = s.client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(s.bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{{
				ID:     aws.String(LifecycleRuleID),
				Status: types.ExpirationStatusEnabled,
				Filter: &types.LifecycleRuleFilter{Prefix: aws.String("")},
				NoncurrentVersionExpiration: &types.NoncurrentVersionExpiration{
					NoncurrentDays: aws.Int32(s.noncurrentDays),
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("configuring lifecycle of %s: %w", s.bucket, err)
	}
	return nil
}

// isNotFound reports whether err says the bucket does not exist.
// HeadBucket has no response body, so only the status-derived code is available.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket", "404":
			return true
		}
	}
	return false
}
