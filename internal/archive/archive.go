// Package archive uploads review reports to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Prefix is the object key prefix for archived reports.
const Prefix = "reviews"

// Options configures the object store connection.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Report is one review to archive.
type Report struct {
	ID       string
	JSON     []byte
	Markdown string
}

// Uploader is the subset of the minio client used by Store.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, reader *bytes.Reader, size int64, contentType string) error
}

// Store writes reports under reviews/<id>.json and reviews/<id>.md.
type Store struct {
	uploader Uploader
	bucket   string
	endpoint string
}

// New connects to the object store and creates the bucket if needed.
func New(ctx context.Context, opts Options) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	return NewWithUploader(minioUploader{cli}, opts.Bucket, cli.EndpointURL().Host), nil
}

// NewWithUploader builds a Store on top of an existing uploader.
func NewWithUploader(u Uploader, bucket, endpoint string) *Store {
	return &Store{uploader: u, bucket: bucket, endpoint: endpoint}
}

// Keys returns the object keys for a report ID.
func Keys(id string) (jsonKey, markdownKey string) {
	base := path.Join(Prefix, id)
	return base + ".json", base + ".md"
}

// Put uploads both renderings of a report and returns the URL of the JSON object.
func (s *Store) Put(ctx context.Context, r Report) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("archive: report has no ID")
	}
	jsonKey, mdKey := Keys(r.ID)

	if err := s.uploader.PutObject(ctx, s.bucket, jsonKey, bytes.NewReader(r.JSON), int64(len(r.JSON)), "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", jsonKey, err)
	}
	md := []byte(r.Markdown)
	if err := s.uploader.PutObject(ctx, s.bucket, mdKey, bytes.NewReader(md), int64(len(md)), "text/markdown; charset=utf-8"); err != nil {
		return "", fmt.Errorf("upload %s: %w", mdKey, err)
	}

	return fmt.Sprintf("http://%s/%s/%s", s.endpoint, s.bucket, jsonKey), nil
}

type minioUploader struct {
	client *minio.Client
}

func (m minioUploader) PutObject(ctx context.Context, bucket, key string, reader *bytes.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}
