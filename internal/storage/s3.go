package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds connection settings for S3 or an S3-compatible store.
type S3Config struct {
	Endpoint string // host or URL; empty means AWS
	Region   string
	KeyID    string // empty means the default AWS credential chain
	Secret   string
	URLStyle string // "path" (default) or "vhost"
}

// S3Reader reads objects from S3 ("s3://bucket/key").
type S3Reader struct {
	client *s3.Client
}

// NewS3Reader creates an S3 reader. Static keys are used when KeyID is set;
// otherwise credentials come from the environment, shared config, or the
// instance role.
func NewS3Reader(ctx context.Context, cfg S3Config) (*S3Reader, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	usePathStyle := cfg.URLStyle != "vhost"

	if cfg.KeyID != "" {
		opts := s3.Options{
			Region:       cfg.Region,
			Credentials:  credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, ""),
			UsePathStyle: usePathStyle,
		}
		if endpoint != "" {
			opts.BaseEndpoint = aws.String(endpoint)
		}
		return &S3Reader{client: s3.New(opts)}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = usePathStyle
	})
	return &S3Reader{client: client}, nil
}

// Open implements domain.ObjectReader.
func (r *S3Reader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := parseSchemeURI(uri, "s3")
	if err != nil {
		return nil, err
	}
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("object %s does not exist: %w", uri, err)
		}
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	return out.Body, nil
}
