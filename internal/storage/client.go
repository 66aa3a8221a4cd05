// Package storage keeps rendered invoice documents in MinIO and hands out
// short-lived download links.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"invoicing_backend/platform/config"
)

// PresignedURLTTL is the expiration time for download links.
const PresignedURLTTL = 15 * time.Minute

// DocumentStore persists rendered invoice documents by key.
type DocumentStore interface {
	Store(ctx context.Context, key string, pdf []byte) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// MinIOStore implements DocumentStore on a MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

var _ DocumentStore = (*MinIOStore)(nil)

func NewMinIOStore(cfg config.StorageConfig) (*MinIOStore, error) {
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

	return &MinIOStore{client: client, bucket: cfg.GetMinioBucketInvoiceDocuments()}, nil
}

// EnsureBucketExists creates the document bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucketExists(ctx context.Context) error {
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

func (s *MinIOStore) Store(ctx context.Context, key string, pdf []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("upload document %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) DownloadURL(ctx context.Context, key string) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign download for %s: %w", key, err)
	}
	return presigned.String(), nil
}

// MemoryStore keeps documents in memory. Used in tests and when MinIO is
// not configured; download links are then not available.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ DocumentStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Store(_ context.Context, key string, pdf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), pdf...)
	return nil
}

func (s *MemoryStore) DownloadURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[key]; !ok {
		return "", fmt.Errorf("document %s not found", key)
	}
	return "", nil
}

// Get returns a stored document, for tests.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	return doc, ok
}
