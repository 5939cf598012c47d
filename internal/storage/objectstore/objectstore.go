// Package objectstore uploads downloaded court documents to S3-compatible storage.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Document categories used in object keys
const (
	CategoryMinutes = "atas"
	CategoryNotices = "expedientes"
)

type UploadResult struct {
	Key string
	URL string
}

// Uploader stores one object and returns where it ended up
type Uploader interface {
	Upload(ctx context.Context, data []byte, key, contentType string) (UploadResult, error)
}

type ConnectionInfo struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
	// PublicURL, when set, prefixes the URLs returned by Upload
	PublicURL string
}

type MinioStore struct {
	Client    *minio.Client
	Bucket    string
	publicURL string
}

func NewMinioStore(info ConnectionInfo) (*MinioStore, error) {
	client, err := minio.New(info.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(info.AccessKey, info.SecretKey, ""),
		Secure: info.UseSSL,
		Region: info.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &MinioStore{Client: client, Bucket: info.Bucket, publicURL: strings.TrimRight(info.PublicURL, "/")}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, data []byte, key, contentType string) (UploadResult, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return UploadResult{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return UploadResult{Key: key, URL: objectURL(s.publicURL, s.Bucket, key)}, nil
}

func objectURL(publicURL, bucket, key string) string {
	if publicURL == "" {
		return fmt.Sprintf("s3://%s/%s", bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", publicURL, bucket, key)
}

// DocumentKey builds processos/{case number}/{category}/{file name} with every
// segment reduced to a safe character set
func DocumentKey(caseNumber, category, fileName string) string {
	return path.Join("processos", segment(caseNumber, "sem-numero"), segment(category, "outros"), segment(fileName, "documento.pdf"))
}

func segment(s, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return fallback
	}
	return out
}

// Memory keeps uploads in memory; used when no bucket is configured
type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewMemory() *Memory {
	return &Memory{Objects: map[string][]byte{}, Types: map[string]string{}}
}

func (m *Memory) Upload(ctx context.Context, data []byte, key, contentType string) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Objects[key] = append([]byte(nil), data...)
	m.Types[key] = contentType
	return UploadResult{Key: key, URL: "memory://" + key}, nil
}
