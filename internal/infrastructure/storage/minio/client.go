// Package minio adapts S3-compatible object storage to the pipeline's
// source.Opener contract, so population datasets can live in a bucket
// instead of on local disk.
package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/source"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// MinIOAPI is the slice of the minio-go client the pipeline touches.  Tests
// substitute a fake; production wires the real client through minioAPI.
// GetObject is declared against io.ReadCloser rather than *minio.Object so
// fakes can serve real bytes.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// minioAPI adapts *minio.Client to MinIOAPI.
type minioAPI struct {
	c *minio.Client
}

func (a minioAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.c.BucketExists(ctx, bucket)
}

func (a minioAPI) StatObject(ctx context.Context, bucket, name string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.c.StatObject(ctx, bucket, name, opts)
}

func (a minioAPI) GetObject(ctx context.Context, bucket, name string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.c.GetObject(ctx, bucket, name, opts)
}

func (a minioAPI) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.c.PutObject(ctx, bucket, name, r, size, opts)
}

// Config carries the connection settings for one bucket of pipeline data.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
}

// Client reads and writes pipeline objects in one bucket.  It satisfies
// source.Opener, so the loader treats it like any other input source.
type Client struct {
	api    MinIOAPI
	config *Config
	logger logging.Logger
}

// NewClient connects to the object store and verifies the configured bucket
// exists.  An unreachable endpoint or missing bucket fails fast with
// ErrCodeObjectStoreError so the run can abort before any work starts.
func NewClient(cfg *Config, log logging.Logger) (*Client, error) {
	applyDefaults(cfg)

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreError, "create object store client")
	}
	return newClient(minioAPI{c: mc}, cfg, log)
}

// newClient finishes construction against any MinIOAPI, real or fake.
func newClient(api MinIOAPI, cfg *Config, log logging.Logger) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreError, "connect to object store")
	}
	if !exists {
		return nil, errors.New(errors.ErrCodeObjectStoreError,
			fmt.Sprintf("bucket %s does not exist", cfg.Bucket))
	}

	log.Info("object store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return &Client{api: api, config: cfg, logger: log}, nil
}

// Open streams one object, decompressing ".gz" names.  Missing objects
// surface immediately rather than on first read.
func (c *Client) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := c.api.StatObject(ctx, c.config.Bucket, name, minio.StatObjectOptions{}); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreError,
			fmt.Sprintf("stat object %s/%s", c.config.Bucket, name))
	}
	obj, err := c.api.GetObject(ctx, c.config.Bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreError,
			fmt.Sprintf("get object %s/%s", c.config.Bucket, name))
	}
	return source.MaybeGzip(obj, name)
}

// Put uploads one object.  The index builder uses it to publish freshly
// built index and dataset files next to the population data.
func (c *Client) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	info, err := c.api.PutObject(ctx, c.config.Bucket, name, r, size, minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStoreError,
			fmt.Sprintf("put object %s/%s", c.config.Bucket, name))
	}
	c.logger.Debug("object uploaded",
		logging.String("object", name),
		logging.Int64("bytes", info.Size))
	return nil
}
