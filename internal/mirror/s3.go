package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"doclife/internal/config"
	"doclife/internal/doc"
)

// defaultS3Timeout bounds every S3 call made through the doc.Mirror interface.
const defaultS3Timeout = 2 * time.Minute

// s3API is the subset of the S3 client the mirror uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// uploader is satisfied by *manager.Uploader.
type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Mirror publishes copies as objects under bucket/prefix. Object keys are
// the prefix joined with the document's relative path.
type S3Mirror struct {
	client   s3API
	uploader uploader
	bucket   string
	prefix   string
	timeout  time.Duration
}

// NewS3Mirror builds an S3 client from the mirror config. Static credentials
// are used when configured, otherwise the default AWS credential chain.
func NewS3Mirror(ctx context.Context, cfg config.MirrorConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Mirror(client, manager.NewUploader(client), cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Mirror(client s3API, up uploader, bucket, prefix string) *S3Mirror {
	return &S3Mirror{
		client:   client,
		uploader: up,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		timeout:  defaultS3Timeout,
	}
}

func (m *S3Mirror) key(relPath string) string {
	if m.prefix == "" {
		return relPath
	}
	return path.Join(m.prefix, relPath)
}

func (m *S3Mirror) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

// Put uploads the content of r to the object for relPath.
func (m *S3Mirror) Put(relPath string, r io.Reader) error {
	ctx, cancel := m.callContext()
	defer cancel()
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.key(relPath)),
		Body:        r,
		ContentType: aws.String(contentType(relPath)),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", relPath, err)
	}
	return nil
}

// Open streams the object for relPath. A missing object yields an error
// wrapping fs.ErrNotExist.
func (m *S3Mirror) Open(relPath string) (io.ReadCloser, error) {
	ctx, cancel := m.callContext()
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(relPath)),
	})
	if err != nil {
		cancel()
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &fs.PathError{Op: "open", Path: relPath, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("getting %s: %w", relPath, err)
	}
	return &cancelOnClose{ReadCloser: out.Body, cancel: cancel}, nil
}

// Delete removes the object for relPath. S3 treats a missing key as success.
func (m *S3Mirror) Delete(relPath string) error {
	ctx, cancel := m.callContext()
	defer cancel()
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(relPath)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", relPath, err)
	}
	return nil
}

// List pages through every object under the prefix and returns the relative
// paths, sorted.
func (m *S3Mirror) List() ([]string, error) {
	ctx, cancel := m.callContext()
	defer cancel()

	in := &s3.ListObjectsV2Input{Bucket: aws.String(m.bucket)}
	if m.prefix != "" {
		in.Prefix = aws.String(m.prefix + "/")
	}
	var paths []string
	p := s3.NewListObjectsV2Paginator(m.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing bucket %s: %w", m.bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if m.prefix != "" {
				key = strings.TrimPrefix(key, m.prefix+"/")
			}
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			paths = append(paths, key)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ValidateSetup checks that the bucket exists and is reachable with the
// configured credentials.
func (m *S3Mirror) ValidateSetup() error {
	ctx, cancel := m.callContext()
	defer cancel()
	if _, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", m.bucket, err)
	}
	return nil
}

func contentType(relPath string) string {
	switch path.Ext(relPath) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	return "application/octet-stream"
}

// cancelOnClose releases the request context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Compile-time check that S3Mirror implements doc.Mirror
var _ doc.Mirror = (*S3Mirror)(nil)
