package library

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestStoreSnapshotOrder verifies the snapshot preserves insertion order,
// which decides which candidate wins when several could match.
func TestStoreSnapshotOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	urls := []string{"https://videos.example/v1", "https://videos.example/v2", "https://videos.example/v3"}
	for i, url := range urls {
		if err := store.Save(ctx, url, "video", "upload", "transcript", 10+i); err != nil {
			t.Fatalf("save %s: %v", url, err)
		}
	}

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("len = %d, want 3", len(snapshot))
	}
	for i, url := range urls {
		if snapshot[i].VideoURL != url {
			t.Fatalf("snapshot[%d] = %s, want %s", i, snapshot[i].VideoURL, url)
		}
	}
}

// TestStoreToleratesDuplicateURLs verifies duplicates are stored as-is
func TestStoreToleratesDuplicateURLs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.Save(ctx, "https://videos.example/v1", "dup", "upload", "transcript", 5); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

// TestStoreEmptySnapshot verifies an empty library yields an empty slice
func TestStoreEmptySnapshot(t *testing.T) {
	store := newTestStore(t)

	snapshot, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("len = %d, want 0", len(snapshot))
	}
}

// TestStoreList verifies metadata listing returns saved fields
func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "https://videos.example/v1", "Osmosis lecture", "youtube", "explains osmosis", 120); err != nil {
		t.Fatalf("save: %v", err)
	}

	videos, err := store.List(ctx, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("len = %d, want 1", len(videos))
	}
	if videos[0]["title"] != "Osmosis lecture" || videos[0]["source_type"] != "youtube" {
		t.Fatalf("video = %+v", videos[0])
	}
}
