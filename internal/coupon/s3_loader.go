package coupon

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3API is the part of the S3 client the catalog loader uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// bucketLoader reads catalog files stored as objects under a key prefix.
type bucketLoader struct {
	client S3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Loader builds a bucket loader from the default AWS credential chain.
func NewS3Loader(ctx context.Context, bucket, prefix, region string, logger zerolog.Logger) (Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewS3LoaderWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

// NewS3LoaderWithClient builds a bucket loader over an existing client.
// Catalog paths are resolved to the object key prefix+path.
func NewS3LoaderWithClient(client S3API, bucket, prefix string, logger zerolog.Logger) Loader {
	return &bucketLoader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "coupon-bucket").Str("bucket", bucket).Logger(),
	}
}

func (l *bucketLoader) Load(ctx context.Context, path string) ([]Coupon, error) {
	key := l.prefix + path

	obj, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch s3://%s/%s: %w", l.bucket, key, err)
	}
	defer obj.Body.Close()

	coupons, err := decodeCoupons(ctx, obj.Body)
	if err != nil {
		return nil, fmt.Errorf("decode s3://%s/%s: %w", l.bucket, key, err)
	}

	l.logger.Info().Str("key", key).Int("coupons", len(coupons)).Msg("catalog object loaded")
	return coupons, nil
}

// fallbackLoader reads from primary and retries secondary with the same path
// when primary fails.
type fallbackLoader struct {
	primary   Loader
	secondary Loader
	logger    zerolog.Logger
}

// NewFallbackLoader chains two loaders. A nil primary means secondary only.
func NewFallbackLoader(primary, secondary Loader, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "coupon-fallback").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, path string) ([]Coupon, error) {
	if l.primary != nil {
		coupons, err := l.primary.Load(ctx, path)
		if err == nil {
			return coupons, nil
		}
		l.logger.Warn().Err(err).Str("path", path).Msg("primary catalog source failed, trying local copy")
	}
	return l.secondary.Load(ctx, path)
}
