// Package objectstore mirrors written artifacts into an S3-compatible bucket
// as gzip-encoded JSON objects.
package objectstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/civic-data-etl/internal/output"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// bucketClient is the subset of *minio.Client the mirror needs.
type bucketClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Options configures the bucket connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Mirror uploads artifacts under "<year>/<name>" and "latest/<name>".
type Mirror struct {
	client bucketClient
	bucket string
	logger *slog.Logger
}

// New creates a Mirror. The bucket is created on first upload if missing.
func New(opts Options, logger *slog.Logger) (*Mirror, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Mirror{client: cli, bucket: opts.Bucket, logger: logger}, nil
}

// Name identifies the mirror in logs and metrics.
func (m *Mirror) Name() string {
	return "objectstore"
}

// Upload stores every artifact. It stops at the first failure.
func (m *Mirror) Upload(ctx context.Context, runID string, year int, artifacts []output.Artifact) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	for _, a := range artifacts {
		key := ObjectKey(year, a.Name)
		meta := map[string]string{
			"run-id":   runID,
			"year":     strconv.Itoa(year),
			"raw-size": strconv.FormatInt(a.Size, 10),
		}
		if err := m.putJSONGZ(ctx, key, a.Data, meta); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		m.logger.Debug("artifact mirrored", "bucket", m.bucket, "key", key, "bytes", a.Size)
	}
	return nil
}

// ObjectKey places the rolling csb_latest.json under latest/ and everything
// else under the target year.
func ObjectKey(year int, name string) string {
	if name == output.LatestName {
		return "latest/" + name
	}
	return strconv.Itoa(year) + "/" + name
}

func (m *Mirror) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("bucket created", "bucket", m.bucket)
	return nil
}

func (m *Mirror) putJSONGZ(ctx context.Context, key string, raw []byte, meta map[string]string) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	reader := bytes.NewReader(buf.Bytes())
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		UserMetadata:    meta,
	})
	return err
}
