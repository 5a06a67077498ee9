package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/multierr"

	"github.com/koseken/game-trading/pkg/config"
	"github.com/koseken/game-trading/pkg/logger"
)

// maxKeysPerDelete is the S3 limit for a single DeleteObjects call.
const maxKeysPerDelete = 1000

var errBucketRequired = errors.New("storage bucket is required")

type objectAPI interface {
	DeleteObjects(ctx context.Context, in *awss3.DeleteObjectsInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Client removes listing images from an S3-compatible bucket.
type Client struct {
	api           objectAPI
	bucket        string
	publicBaseURL string
}

// NewClient builds a client for the configured bucket. Endpoint may point at
// any S3-compatible service.
func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errBucketRequired
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading storage config: %w", err)
	}

	api := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.Bucket), "storage client initialized")
	}
	return newWithAPI(api, cfg), nil
}

func newWithAPI(api objectAPI, cfg config.StorageConfig) *Client {
	return &Client{
		api:           api,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}
}

// Ping checks the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("storage client not initialized")
	}
	_, err := c.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	return err
}

// DeleteURLs removes the objects behind the given public image URLs. URLs
// that do not belong to the bucket are skipped. Every failed key is reported
// in the combined error.
func (c *Client) DeleteURLs(ctx context.Context, urls []string) error {
	if c == nil || c.api == nil {
		return nil
	}
	keys := c.KeysFromURLs(urls)
	if len(keys) == 0 {
		return nil
	}

	var errs error
	for start := 0; start < len(keys); start += maxKeysPerDelete {
		end := start + maxKeysPerDelete
		if end > len(keys) {
			end = len(keys)
		}
		errs = multierr.Append(errs, c.deleteBatch(ctx, keys[start:end]))
	}
	return errs
}

func (c *Client) deleteBatch(ctx context.Context, keys []string) error {
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}
	out, err := c.api.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	var errs error
	for _, objErr := range out.Errors {
		errs = multierr.Append(errs, fmt.Errorf("delete %s: %s", aws.ToString(objErr.Key), aws.ToString(objErr.Message)))
	}
	return errs
}

// KeysFromURLs maps public image URLs to object keys.
func (c *Client) KeysFromURLs(urls []string) []string {
	keys := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		key := c.keyFromURL(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func (c *Client) keyFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	if c.publicBaseURL != "" {
		if !strings.HasPrefix(raw, c.publicBaseURL+"/") {
			return ""
		}
		return strings.TrimPrefix(raw, c.publicBaseURL+"/")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	path := strings.TrimPrefix(u.Path, "/")
	// path-style URLs carry the bucket as the first segment
	return strings.TrimPrefix(path, c.bucket+"/")
}
