package storage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/presentable/presentable/internal/storage"
)

func newTestStorage(t *testing.T, cfg storage.Config) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

func TestNewStorageRequiresConfig(t *testing.T) {
	newTestStorage(t, storage.Config{
		Endpoint:  "http://localhost:9000",
		Bucket:    "test",
		AccessKey: "test",
		SecretKey: "test",
	})
}

func TestGenerateDownloadURL_UsesPublicEndpoint(t *testing.T) {
	s := newTestStorage(t, storage.Config{
		Endpoint:       "http://garage:3900",
		PublicEndpoint: "https://storage.example.com",
		Bucket:         "presentations",
		AccessKey:      "test",
		SecretKey:      "test",
	})

	url, err := s.GenerateDownloadURL(context.Background(), "recordings/p-1.mp4", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "https://storage.example.com/presentations/recordings/p-1.mp4?") {
		t.Errorf("expected presigned url on public endpoint, got %s", url)
	}
	if !strings.Contains(url, "X-Amz-Signature=") {
		t.Errorf("expected signed url, got %s", url)
	}
}

func TestNilStorage(t *testing.T) {
	var s *storage.Storage
	if _, err := s.GenerateDownloadURL(context.Background(), "k", time.Minute); err == nil {
		t.Error("expected error from nil storage")
	}
	if _, err := s.ReadObject(context.Background(), "k"); err == nil {
		t.Error("expected error from nil storage")
	}
}
