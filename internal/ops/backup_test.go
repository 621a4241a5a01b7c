package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotStoreSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	store := NewSnapshotStore(dir, "syncstr", Discard())

	path, err := store.Save("syncstr-backup-npub1abc-2024-01-02.json", []byte(`{"version":"1.0.0"}`))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected file in %s, got %s", dir, path)
	}

	data, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != `{"version":"1.0.0"}` {
		t.Errorf("unexpected content: %s", data)
	}

	// No leftover temp files
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 file, got %d", len(entries))
	}
}

func TestSnapshotStoreRejectsPaths(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), "syncstr", Discard())

	for _, name := range []string{"", "../escape.json", "a/b.json"} {
		if _, err := store.Save(name, []byte("{}")); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestSnapshotStoreLoadMissing(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), "syncstr", Discard())

	if _, err := store.Load("missing.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSnapshotStoreList(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, "syncstr", Discard())

	files := []string{
		"syncstr-backup-npub1aaa-2024-01-01.json",
		"syncstr-backup-npub1aaa-2024-01-02.json.zst",
		"notes.txt",
		"other-backup-npub1aaa-2024-01-01.json",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// The newer date in the name is the older file on disk
	older := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, files[1]), older, older); err != nil {
		t.Fatal(err)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != files[1] || names[1] != files[0] {
		t.Errorf("expected snapshots oldest first, got %v", names)
	}
}

func TestCleanOldSnapshots(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(dir, "syncstr", Discard())

	old := filepath.Join(dir, "syncstr-backup-npub1aaa-2020-01-01.json")
	fresh := filepath.Join(dir, "syncstr-backup-npub1aaa-2024-01-01.json")
	unrelated := filepath.Join(dir, "keep.json")

	for _, p := range []string{old, fresh, unrelated} {
		if err := os.WriteFile(p, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	past := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(unrelated, past, past); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.Clean(24 * time.Hour)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old snapshot should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh snapshot should remain")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file should remain")
	}
}

func TestIsSnapshotFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"syncstr-backup-npub1-2024-01-01.json", true},
		{"syncstr-backup-npub1-2024-01-01.json.zst", true},
		{"syncstr-backup-npub1-2024-01-01.db", false},
		{"other-backup-20240101.json", false},
		{"syncstr.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSnapshotFile("syncstr", tt.name); got != tt.want {
				t.Errorf("IsSnapshotFile(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
