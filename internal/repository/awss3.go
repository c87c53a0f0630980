// Package repository provides the AWS-specialised S3 repository backend.
//
// AWSS3Backend narrows the generic S3 backend to native AWS: the client is
// constructed from a region instead of an explicit endpoint, and bucket
// creation injects the LocationConstraint that AWS requires outside
// us-east-1. Everything else is inherited from the generic backend.
package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flowstore/flowstore/internal/logging"
)

// AWSS3Config holds the construction parameters for the AWS S3 backend.
type AWSS3Config struct {
	// AccessKeyID is the AWS access key ID used to authenticate.
	AccessKeyID string
	// SecretAccessKey is the AWS secret access key used to authenticate.
	SecretAccessKey string
	// Region is the AWS region the bucket lives in, and the region a new
	// bucket is created in by Initialise.
	Region string
	// BucketName is the name of the bucket backing this instance.
	BucketName string
	// EndpointURL optionally overrides the AWS endpoint, e.g. for
	// S3-compatible test doubles. Leave empty for native AWS.
	EndpointURL string
}

// AWSS3Backend implements the Backend contract against native AWS S3. It
// embeds the generic S3 backend and specialises construction and bucket
// creation.
type AWSS3Backend struct {
	*S3Backend
	region string
}

// NewAWSS3Backend creates an AWSS3Backend for the given bucket and region
// using static credentials.
func NewAWSS3Backend(ctx context.Context, cfg AWSS3Config) (*AWSS3Backend, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("aws s3 backend configuration: aws_bucket_name must not be empty")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS client configuration: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	logging.ForBackend("aws_s3", cfg.BucketName).Debug("AWS S3 repository backend constructed", "region", cfg.Region)
	return &AWSS3Backend{
		S3Backend: &S3Backend{bucketName: cfg.BucketName, client: client, kind: "aws_s3"},
		region:    cfg.Region,
	}, nil
}

// NewAWSS3BackendWithClient creates an AWSS3Backend with a pre-configured
// client. This is primarily used for testing with mock clients.
func NewAWSS3BackendWithClient(bucketName, region string, client S3API) *AWSS3Backend {
	return &AWSS3Backend{
		S3Backend: &S3Backend{bucketName: bucketName, client: client, kind: "aws_s3"},
		region:    region,
	}
}

// String returns the string representation of this repository backend.
func (b *AWSS3Backend) String() string {
	return fmt.Sprintf("AWSS3Backend: <%s>", b.bucketName)
}

// Initialise creates the bucket if it doesn't already exist. When a region
// is configured, a LocationConstraint for it is injected into the
// CreateBucket call, which AWS requires; caller-supplied options still apply
// on top and may override it.
func (b *AWSS3Backend) Initialise(ctx context.Context, opts ...InitialiseOption) error {
	if b.region != "" {
		opts = append([]InitialiseOption{WithLocationConstraint(b.region)}, opts...)
	}
	return b.S3Backend.Initialise(ctx, opts...)
}

// Ensure AWSS3Backend implements Backend at compile time.
var _ Backend = (*AWSS3Backend)(nil)
