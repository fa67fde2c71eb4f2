package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"frameworks/pkg/logging"
)

// S3Config holds configuration for the S3 artifact store.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // S3-compatible storage (MinIO, etc.)
	AccessKey string // optional, default credential chain when empty
	SecretKey string
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store keeps artifacts at <prefix>/<session>/<name>. A single PutObject
// publishes an artifact whole.
type S3Store struct {
	client s3API
	config S3Config
	logger logging.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	logger.WithFields(logging.Fields{
		"bucket":   cfg.Bucket,
		"prefix":   cfg.Prefix,
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Info("S3 artifact store initialized")

	return newS3Store(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger), nil
}

func newS3Store(client s3API, cfg S3Config, logger logging.Logger) *S3Store {
	return &S3Store{client: client, config: cfg, logger: logger}
}

func (s *S3Store) sessionPrefix(sessionID string) string {
	if s.config.Prefix == "" {
		return sessionID + "/"
	}
	return strings.TrimSuffix(s.config.Prefix, "/") + "/" + sessionID + "/"
}

func (s *S3Store) Put(ctx context.Context, sessionID, name string, data []byte) error {
	rel, err := cleanName(sessionID, name)
	if err != nil {
		return err
	}
	key := s.sessionPrefix(sessionID) + rel
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(rel)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, sessionID, name string) ([]byte, error) {
	rel, err := cleanName(sessionID, name)
	if err != nil {
		return nil, err
	}
	key := s.sessionPrefix(sessionID) + rel
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) List(ctx context.Context, sessionID string) ([]Info, error) {
	if _, err := cleanName(sessionID, "x"); err != nil {
		return nil, err
	}
	prefix := s.sessionPrefix(sessionID)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	})

	var out []Info
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if rel == "" {
				continue
			}
			name := rel
			if i := strings.LastIndex(rel, "/"); i >= 0 {
				name = rel[i+1:]
			}
			out = append(out, Info{Name: name, Path: rel, Size: aws.ToInt64(obj.Size), Type: typeOf(rel)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.config.Bucket)})
	return err
}

func isNotFoundError(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "NoSuchKey")
}

func contentType(name string) string {
	switch typeOf(name) {
	case "markdown":
		return "text/markdown; charset=utf-8"
	case "json":
		return "application/json"
	case "image":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
