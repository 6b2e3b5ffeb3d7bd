package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// S3Config holds object storage connection settings.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client. Without static keys the default
// credential chain is used.
func NewS3Client(cfg S3Config) (s3iface.S3API, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	return s3.New(sess), nil
}

// S3Provider reads exported datasets stored under an s3://bucket/prefix.
type S3Provider struct {
	client s3iface.S3API
	logger *slog.Logger
}

func NewS3Provider(client s3iface.S3API, logger *slog.Logger) *S3Provider {
	return &S3Provider{client: client, logger: logger}
}

// parseS3Path splits s3://bucket/prefix. The prefix is treated as a directory.
func parseS3Path(p string) (string, string, error) {
	rest, ok := strings.CutPrefix(p, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedPath, p)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: missing bucket in %s", ErrUnsupportedPath, p)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

func (p *S3Provider) Fetch(ctx context.Context, loc Locator) (*quality.Table, error) {
	bucket, prefix, err := parseS3Path(loc.Path)
	if err != nil {
		return nil, err
	}

	var files []string
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(prefix)}
	err = p.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			rel := strings.TrimPrefix(key, prefix)
			if rel == "" || strings.HasSuffix(key, "/") {
				continue
			}
			if !loc.IncludeSubfolders && strings.Contains(rel, "/") {
				continue
			}
			if matches(loc, rel) {
				files = append(files, rel)
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
	}
	sort.Strings(files)

	open := func(ctx context.Context, rel string) (io.ReadCloser, error) {
		out, err := p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(prefix + rel),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to download object: %w", err)
		}
		return out.Body, nil
	}
	return readDataset(ctx, p.logger, loc.Path, files, open, loc)
}
