// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/config"
)

const archiveURLTTL = 24 * time.Hour

// StorageService archives telemetry exports to S3. Without a bucket and credentials
// it is disabled and Enabled reports false.
type StorageService struct {
	s3Client s3iface.S3API
	config   config.AWSConfig
	now      func() time.Time
}

type UploadResult struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	MimeType    string    `json:"mime_type"`
	URLExpireAt time.Time `json:"url_expires_at"`
}

func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	if cfg.AccessKeyID == "" || cfg.S3Bucket == "" {
		// Archiving disabled for local development
		return &StorageService{config: cfg, now: time.Now}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
		now:      time.Now,
	}, nil
}

func (s *StorageService) Enabled() bool {
	return s.s3Client != nil
}

// UploadExport stores an export under exports/{date}/{scope}/ and returns a
// presigned download URL.
func (s *StorageService) UploadExport(ctx context.Context, scope, extension, contentType string, data []byte) (*UploadResult, error) {
	if !s.Enabled() {
		return nil, newError(KindInvalidState, "Export archiving is not configured.")
	}

	key := s.exportKey(scope, extension)
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	url, err := s.GeneratePresignedURL(key, archiveURLTTL)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		URL:         url,
		Key:         key,
		Size:        int64(len(data)),
		MimeType:    contentType,
		URLExpireAt: s.now().Add(archiveURLTTL),
	}, nil
}

func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

func (s *StorageService) exportKey(scope, extension string) string {
	now := s.now().UTC()
	scope = strings.Trim(strings.ReplaceAll(scope, "/", "-"), "-")
	if scope == "" {
		scope = "all"
	}
	filename := fmt.Sprintf("telemetry_%s_%s.%s", now.Format("150405"), uuid.New().String()[:8], strings.TrimPrefix(extension, "."))
	return path.Join("exports", now.Format("2006-01-02"), scope, filename)
}
