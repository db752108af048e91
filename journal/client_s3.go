package journal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config places a journal in an S3 (or S3-compatible) bucket.
// Records land under Prefix/<dataset>/session=<name>/day=<yyyy-mm-dd>/.
type S3Config struct {
	Bucket string
	Prefix string
	// Region falls back to the AWS default chain when empty.
	Region string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO or R2.
	Endpoint     string
	UsePathStyle bool
}

// Validate reports a bucket or endpoint the journal cannot write to.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("journal: S3 bucket is required")
	}
	if strings.Contains(c.Bucket, "/") {
		return fmt.Errorf("journal: S3 bucket %q must not contain '/'", c.Bucket)
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("journal: S3 endpoint %q must be an http(s) URL", c.Endpoint)
		}
	}
	return nil
}

// ParseS3Path splits a --journal value of the form [s3://]bucket[/prefix].
func ParseS3Path(path string) (bucket, prefix string) {
	path = strings.TrimPrefix(path, "s3://")
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, strings.TrimSuffix(prefix, "/")
}

// clientOptions applies the endpoint and addressing overrides.
func (c *S3Config) clientOptions(o *s3.Options) {
	if c.Endpoint != "" {
		endpoint := c.Endpoint
		o.BaseEndpoint = &endpoint
	}
	o.UsePathStyle = c.UsePathStyle
}

// S3Factory builds the store factory shared by the journal's write and
// read paths. Credentials come from the AWS default chain.
func S3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("load AWS config: %w", err), s3cfg.Bucket)
	}

	client := s3.NewFromConfig(awsConfig, s3cfg.clientOptions)
	store := lodes3.Config{Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix}
	return func() (lode.Store, error) {
		return lodes3.New(client, store)
	}, nil
}

// NewLodeS3Client opens a journal writer backed by S3.
func NewLodeS3Client(ctx context.Context, cfg Config, s3cfg S3Config) (*LodeClient, error) {
	factory, err := S3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewLodeClientWithFactory(cfg, factory)
}
