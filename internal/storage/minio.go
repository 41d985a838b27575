package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MinioConfig configures a MinioHost.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicBaseURL prefixes object keys in returned URLs.
	PublicBaseURL string
}

// MinioHost stores assets in an S3 compatible bucket.
type MinioHost struct {
	cfg    MinioConfig
	client *minio.Client
}

// NewMinioHost connects to the endpoint. Call EnsureBucket before serving.
func NewMinioHost(cfg MinioConfig) (*MinioHost, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, err
	}
	if cfg.PublicBaseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicBaseURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}
	return &MinioHost{cfg: cfg, client: cl}, nil
}

func (h *MinioHost) Name() string { return "minio" }

// EnsureBucket creates the bucket when it does not exist yet.
func (h *MinioHost) EnsureBucket(ctx context.Context) error {
	exists, err := h.client.BucketExists(ctx, h.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return h.client.MakeBucket(ctx, h.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (h *MinioHost) Upload(ctx context.Context, u Upload) (Asset, error) {
	id, err := newAssetID(u.Folder)
	if err != nil {
		return Asset{}, err
	}
	ext := extensionFor(u)
	_, err = h.client.PutObject(ctx, h.cfg.Bucket, id+"."+ext,
		bytes.NewReader(u.Data), int64(len(u.Data)),
		minio.PutObjectOptions{ContentType: u.ContentType})
	if err != nil {
		return Asset{}, fmt.Errorf("put object: %w", err)
	}
	return Asset{URL: publicURL(h.cfg.PublicBaseURL, id, ext), ID: id}, nil
}

// Delete removes every object stored under "<id>.".
func (h *MinioHost) Delete(ctx context.Context, id string) error {
	if err := ValidateAssetID(id); err != nil {
		return err
	}
	removed := 0
	for obj := range h.client.ListObjects(ctx, h.cfg.Bucket, minio.ListObjectsOptions{Prefix: id + ".", Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		if err := h.client.RemoveObject(ctx, h.cfg.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object: %w", err)
		}
		removed++
	}
	if removed == 0 {
		return ErrAssetNotFound
	}
	return nil
}
