package objstore

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// S3Config configures an S3Store.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint is optional; set it for MinIO or LocalStack.
	Endpoint string
}

// s3API is the subset of *s3.Client used here.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store stores artifacts in an S3 bucket.
type S3Store struct {
	client s3API
	bucket string
	log    *zap.Logger
}

// NewS3Store loads the default AWS credential chain and builds a client.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("objstore: s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, eris.Wrap(err, "objstore: load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg.Bucket), nil
}

func newS3Store(client s3API, bucket string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		log:    zap.L().With(zap.String("component", "objstore.s3"), zap.String("bucket", bucket)),
	}
}

// Location returns the target bucket name.
func (s *S3Store) Location() string { return s.bucket }

// Exists issues a HEAD for key. A not-found response is (false, nil); any
// other failure is returned so the caller does not mistake it for absence.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, eris.Wrapf(err, "objstore: head %s", key)
}

// Put uploads localPath to key.
func (s *S3Store) Put(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath) //nolint:gosec // path comes from the pipeline's temp dir
	if err != nil {
		return eris.Wrapf(err, "objstore: open %s", localPath)
	}
	defer f.Close() //nolint:errcheck

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return eris.Wrapf(err, "objstore: put %s", key)
	}
	s.log.Debug("object uploaded", zap.String("key", key), zap.String("content_type", contentType))
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
