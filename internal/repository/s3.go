// Package repository provides the generic S3-compatible repository backend.
//
// The S3 backend stores each repository object as one object in a single
// bucket, keyed by its generated UUID-v4 key. It works against any
// S3-API-compatible provider reachable through an explicit endpoint URL
// (MinIO, Ceph RGW, etc.), not just AWS. Credentials are the static access
// key pair supplied at construction; each backend instance owns its own
// private client.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/flowstore/flowstore/internal/logging"
	"github.com/flowstore/flowstore/internal/metrics"
	"github.com/flowstore/flowstore/internal/uid"
)

// S3API defines the subset of the AWS S3 client interface that the repository
// backend uses. This allows mocking in tests.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds the construction parameters for the generic S3 backend.
type S3Config struct {
	// EndpointURL is the endpoint URL of the S3-compatible server.
	EndpointURL string
	// AccessKeyID is the access key ID used to authenticate.
	AccessKeyID string
	// SecretAccessKey is the secret access key used to authenticate.
	SecretAccessKey string
	// BucketName is the name of the bucket backing this instance.
	BucketName string
	// UsePathStyle forces path-style addressing, which most non-AWS
	// providers require.
	UsePathStyle bool
}

// S3Backend implements the Backend contract against any S3-API-compatible
// object store.
//
// It is possible to construct an instance for a bucket that doesn't exist
// yet. To use the backend, however, the bucket needs to exist; call
// Initialise, which creates it if it doesn't already.
type S3Backend struct {
	bucketName string
	client     S3API
	// kind labels log lines and metrics; the AWS specialization overrides it.
	kind string
}

// NewS3Backend creates an S3Backend for the given bucket on an arbitrary
// S3-compatible endpoint. Configuration problems that are detectable
// synchronously (missing fields, unloadable SDK config) surface here rather
// than on first use.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("s3 backend configuration: bucket_name must not be empty")
	}
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("s3 backend configuration: endpoint_url must not be empty")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		// Non-AWS endpoints still need a signing region.
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading S3 client configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.EndpointURL)
		o.UsePathStyle = cfg.UsePathStyle
	})

	logging.ForBackend("s3", cfg.BucketName).Debug("S3 repository backend constructed", "endpoint", cfg.EndpointURL)
	return &S3Backend{bucketName: cfg.BucketName, client: client, kind: "s3"}, nil
}

// NewS3BackendWithClient creates an S3Backend with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewS3BackendWithClient(bucketName string, client S3API) *S3Backend {
	return &S3Backend{bucketName: bucketName, client: client, kind: "s3"}
}

// String returns the string representation of this repository backend.
func (b *S3Backend) String() string {
	return fmt.Sprintf("S3Backend: <%s>", b.bucketName)
}

// UUID returns the bucket name as the backend's stable identifier.
func (b *S3Backend) UUID() string {
	return b.bucketName
}

// KeyFormat returns the format of keys generated by this backend.
func (b *S3Backend) KeyFormat() string {
	return KeyFormatUUID4
}

// IsInitialised reports whether the configured bucket exists. A missing
// bucket is a normal false result; other failure classes (auth, network)
// propagate.
func (b *S3Backend) IsInitialised(ctx context.Context) (bool, error) {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("probing bucket %q: %w", b.bucketName, err)
	}
	return true, nil
}

// Initialise creates the bucket if it doesn't already exist. Calling it on
// an already-initialised backend is a no-op. Options are passed through to
// the CreateBucket call.
func (b *S3Backend) Initialise(ctx context.Context, opts ...InitialiseOption) error {
	initialised, err := b.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if initialised {
		return nil
	}

	var options InitialiseOptions
	for _, opt := range opts {
		opt(&options)
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucketName),
	}
	if options.LocationConstraint != "" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(options.LocationConstraint),
		}
	}

	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("creating bucket %q: %w", b.bucketName, err)
	}

	logging.ForBackend(b.kind, b.bucketName).Info("repository initialised")
	return nil
}

// Erase deletes the bucket configured for this instance and all its
// contents. S3 refuses to delete a non-empty bucket, so the objects are
// drained first. No-op when the bucket does not exist.
func (b *S3Backend) Erase(ctx context.Context) error {
	initialised, err := b.IsInitialised(ctx)
	if err != nil {
		return err
	}
	if !initialised {
		return nil
	}

	keys, err := b.ListObjects(ctx)
	if err != nil {
		return err
	}
	if err := b.DeleteObjects(ctx, keys); err != nil {
		return err
	}

	if _, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(b.bucketName),
	}); err != nil {
		return fmt.Errorf("deleting bucket %q: %w", b.bucketName, err)
	}

	logging.ForBackend(b.kind, b.bucketName).Info("repository erased", "objects_drained", len(keys))
	return nil
}

// PutObjectFromFilelike uploads the full content of the byte stream under a
// freshly generated UUID-v4 key and returns the key.
func (b *S3Backend) PutObjectFromFilelike(ctx context.Context, handle io.Reader) (key string, err error) {
	if err := validateHandle(handle); err != nil {
		return "", err
	}
	defer func() { metrics.ObserveOperation(b.kind, "put_object", err) }()

	// Buffer the content so the SDK can sign with a known length. Bounded
	// memory streaming is out of scope for this layer.
	data, err := io.ReadAll(handle)
	if err != nil {
		return "", fmt.Errorf("reading object content: %w", err)
	}

	key = uid.NewKey()
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("uploading object to bucket %q: %w", b.bucketName, err)
	}

	metrics.ObjectSize.WithLabelValues(b.kind).Observe(float64(len(data)))
	return key, nil
}

// HasObjects reports, for each key, whether an object with that key exists.
// The answer is computed against the complete (paginated) listing, so it is
// correct past the provider's single-page limit.
func (b *S3Backend) HasObjects(ctx context.Context, keys []string) (result []bool, err error) {
	defer func() { metrics.ObserveOperation(b.kind, "has_objects", err) }()

	existing, err := b.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	return membership(keys, existing), nil
}

// Open returns a seekable reader over the object's full content, buffered in
// a local temporary file that is released on Close. A missing key yields a
// *NotFoundError.
func (b *S3Backend) Open(ctx context.Context, key string) (reader ObjectReader, err error) {
	defer func() { metrics.ObserveOperation(b.kind, "open", err) }()

	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, &NotFoundError{Key: key, Err: err}
		}
		return nil, fmt.Errorf("downloading object %q from bucket %q: %w", key, b.bucketName, err)
	}
	defer resp.Body.Close()

	return newTempObjectReader(func(w io.Writer) error {
		_, copyErr := io.Copy(w, resp.Body)
		return copyErr
	})
}

// IterObjectStreams invokes fn once per requested key, in order, with a
// scoped reader over that object's content.
func (b *S3Backend) IterObjectStreams(ctx context.Context, keys []string, fn func(key string, r io.ReadSeeker) error) error {
	return iterObjectStreams(ctx, b, keys, fn)
}

// DeleteObjects deletes the listed objects in batches of at most 1000, the
// S3 batch-delete limit. Empty input is a no-op with no network call;
// missing keys are not an error.
func (b *S3Backend) DeleteObjects(ctx context.Context, keys []string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	defer func() { metrics.ObserveOperation(b.kind, "delete_objects", err) }()

	for _, batch := range batchKeys(keys, deleteBatchSize) {
		identifiers := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			identifiers[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}
		_, err = b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucketName),
			Delete: &types.Delete{
				Objects: identifiers,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("batch-deleting objects from bucket %q: %w", b.bucketName, err)
		}
	}
	return nil
}

// ListObjects returns every key currently stored. It follows continuation
// tokens until the listing is exhausted, so the result is complete past the
// provider's 1000-entry page cap. An empty bucket yields an empty slice.
func (b *S3Backend) ListObjects(ctx context.Context) (keys []string, err error) {
	defer func() { metrics.ObserveOperation(b.kind, "list_objects", err) }()

	keys = []string{}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucketName),
	}
	for {
		resp, listErr := b.client.ListObjectsV2(ctx, input)
		if listErr != nil {
			err = fmt.Errorf("listing objects in bucket %q: %w", b.bucketName, listErr)
			return nil, err
		}
		for _, obj := range resp.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(resp.IsTruncated) {
			return keys, nil
		}
		input.ContinuationToken = resp.NextContinuationToken
	}
}

// Maintain performs maintenance operations. The S3 backend has nothing to
// maintain; it returns an empty report.
func (b *S3Backend) Maintain(ctx context.Context, opts MaintainOptions) (MaintenanceReport, error) {
	return MaintenanceReport{}, nil
}

// GetInfo returns information on configuration and content of the
// repository. The S3 backend currently returns an empty report.
func (b *S3Backend) GetInfo(ctx context.Context, detailed bool) (InfoReport, error) {
	return InfoReport{}, nil
}

// isS3NotFound checks if an S3 error signals a missing bucket or key. Only
// those error classes are translated; auth and transport failures are left
// for the caller.
func isS3NotFound(err error) bool {
	if isContextError(err) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NoSuchBucket" || code == "NotFound" || code == "404" {
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}

// Ensure S3Backend implements Backend at compile time.
var _ Backend = (*S3Backend)(nil)
