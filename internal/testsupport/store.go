package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"reframe/internal/config"
	"reframe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue creates a pending 9:16 1080p mp4 job for source.
func Enqueue(t testing.TB, store *queue.Store, cfg *config.Config, source string) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), queue.Spec{
		SourcePath:  source,
		AspectRatio: "9:16",
		Resolution:  "1080p",
		Format:      "mp4",
		OutputDir:   cfg.Paths.OutputDir,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}

// UploadPath returns a path for name inside the config's upload dir.
func UploadPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Paths.UploadDir, name)
}
