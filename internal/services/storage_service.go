package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rxtech-lab/pharmalink/internal/config"
)

// StorageService stores document content under opaque keys. Keys are never
// exposed as public links; callers get short-lived presigned URLs instead.
type StorageService interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	GetUploadURL(ctx context.Context, key string) (string, error)
	GetDownloadURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	GenerateKey(submissionID uint, filename string) string
}

// GenerateDocumentKey returns submissions/<id>/documents/<uuid>-<filename>.
func GenerateDocumentKey(submissionID uint, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	name = strings.ReplaceAll(name, " ", "_")
	return fmt.Sprintf("submissions/%d/documents/%s-%s", submissionID, uuid.New().String(), name)
}

var _ StorageService = (*MinioStorageService)(nil)

// MinioStorageService implements StorageService on any S3 compatible store.
type MinioStorageService struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinioStorageService(cfg config.StorageConfig) (*MinioStorageService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStorageService{
		client: client,
		bucket: cfg.Bucket,
		expiry: cfg.URLExpiry(),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioStorageService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (s *MinioStorageService) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (s *MinioStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// GetUploadURL lets a client PUT the content directly.
func (s *MinioStorageService) GetUploadURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate upload URL: %w", err)
	}
	return u.String(), nil
}

func (s *MinioStorageService) GetDownloadURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return u.String(), nil
}

func (s *MinioStorageService) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *MinioStorageService) GenerateKey(submissionID uint, filename string) string {
	return GenerateDocumentKey(submissionID, filename)
}
