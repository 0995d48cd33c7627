// Package storage provides the MinIO-backed archive for reconciliation run
// reports.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"tutorcoach_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is the expiration time for presigned download URLs.
const PresignedURLTTL = 15 * time.Minute

// MinIOService wraps a MinIO client for report archiving.
type MinIOService struct {
	client *minio.Client
	bucket string
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg config.StorageConfig) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	return &MinIOService{
		client: client,
		bucket: cfg.GetMinioBucketReconReports(),
	}, nil
}

// EnsureBucketExists creates the report bucket if it does not exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// UploadReport stores a JSON report under the given key.
func (s *MinIOService) UploadReport(ctx context.Context, fileKey string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, fileKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload report %s: %w", fileKey, err)
	}
	return nil
}

// ReportDownloadURL creates a presigned GET URL for an archived report.
func (s *MinIOService) ReportDownloadURL(ctx context.Context, fileKey string) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, PresignedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign report %s: %w", fileKey, err)
	}
	return presigned.String(), nil
}
