package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioStorage implements MediaStore using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// MinioOptions configures NewMinioStorage.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/posts"
	UseSSL     bool
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a public-read
// policy, and returns a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, opts MinioOptions, log zerolog.Logger) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
		log.Info().Str("bucket", opts.Bucket).Msg("storage: created bucket")
	}

	if err := client.SetBucketPolicy(ctx, opts.Bucket, publicReadPolicy(opts.Bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucket:     opts.Bucket,
		publicBase: strings.TrimRight(opts.PublicBase, "/"),
	}, nil
}

// Provider implements MediaStore.
func (s *MinioStorage) Provider() string { return "minio" }

// Upload streams r to MinIO. opts.Size must be the exact byte count
// (-1 only if the size is genuinely unknown, MinIO will then buffer it).
func (s *MinioStorage) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	key := objectKey(opts)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, opts.Size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
		UserTags:    userTags(opts.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", key, err)
	}

	return &UploadResult{
		URL:  s.PublicURL(info.Key),
		Name: path.Base(info.Key),
	}, nil
}

// PublicURL returns the browser-accessible URL for the given key.
// For local MinIO: "http://localhost:9000/posts/cat_3f2a9c1b7d4e.png"
func (s *MinioStorage) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return s.publicBase + "/" + key
}

func objectKey(opts UploadOptions) string {
	name := path.Base(strings.ReplaceAll(opts.FileName, "\\", "/"))
	if opts.UniqueName || name == "." || name == "/" {
		return uniqueName(name)
	}
	return name
}

// userTags turns plain tags into S3 object tags (tag name -> "true").
func userTags(tags []string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[t] = "true"
	}
	return out
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
