package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotStore persists snapshot files in a directory
type SnapshotStore struct {
	dir     string
	product string
	logger  *Logger
}

// NewSnapshotStore creates a new snapshot store rooted at dir
func NewSnapshotStore(dir, product string, logger *Logger) *SnapshotStore {
	return &SnapshotStore{
		dir:     dir,
		product: product,
		logger:  logger.WithComponent("snapshots"),
	}
}

// Dir returns the snapshot directory
func (s *SnapshotStore) Dir() string {
	return s.dir
}

// Save writes data under name in the store directory. The file is written to a
// temporary name first and renamed into place.
func (s *SnapshotStore) Save(name string, data []byte) (string, error) {
	start := time.Now()

	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid snapshot name: %q", name)
	}

	// Create destination directory if it doesn't exist
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.LogBackupOperation("create directory", s.dir, 0, err)
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	destPath := filepath.Join(s.dir, name)
	size, err := writeFileSynced(destPath, data)
	if err != nil {
		s.logger.LogBackupOperation("save", destPath, size, err)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.logger.LogBackupOperation("save", destPath, size, nil)
	s.logger.Debug("snapshot saved",
		"destination", destPath,
		"duration_ms", time.Since(start).Milliseconds())

	return destPath, nil
}

// Load reads a snapshot file. Relative paths that do not exist are looked up
// in the store directory.
func (s *SnapshotStore) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil && os.IsNotExist(err) && !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		data, err = os.ReadFile(filepath.Join(s.dir, path))
	}
	if err != nil {
		s.logger.LogBackupOperation("load", path, 0, err)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	s.logger.LogBackupOperation("load", path, int64(len(data)), nil)
	return data, nil
}

// List returns the snapshot files in the store directory, oldest first by
// modification time
func (s *SnapshotStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	type snapshot struct {
		name    string
		modTime time.Time
	}

	var found []snapshot
	for _, entry := range entries {
		if entry.IsDir() || !s.isSnapshotFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, snapshot{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].modTime.Equal(found[j].modTime) {
			return found[i].modTime.Before(found[j].modTime)
		}
		return found[i].name < found[j].name
	})

	names := make([]string, 0, len(found))
	for _, f := range found {
		names = append(names, f.name)
	}
	return names, nil
}

// Clean removes snapshots older than maxAge
func (s *SnapshotStore) Clean(maxAge time.Duration) (int, error) {
	return CleanOldSnapshots(s.dir, maxAge, s.isSnapshotFile, s.logger)
}

func (s *SnapshotStore) isSnapshotFile(name string) bool {
	return IsSnapshotFile(s.product, name)
}

// writeFileSynced writes data to a temp file next to dst, syncs it and renames it
func writeFileSynced(dst string, data []byte) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := tmp.Write(data)
	if err != nil {
		tmp.Close()
		return int64(n), fmt.Errorf("failed to write file: %w", err)
	}

	// Sync to ensure data is written to disk
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return int64(n), fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return int64(n), fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return int64(n), fmt.Errorf("failed to move file into place: %w", err)
	}
	return int64(n), nil
}

// CleanOldSnapshots removes matching files older than the specified age
func CleanOldSnapshots(dir string, maxAge time.Duration, match func(string) bool, logger *Logger) (int, error) {
	logger.Info("cleaning old snapshots", "directory", dir, "max_age", maxAge)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var deleted int

	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get file info", "file", entry.Name(), "error", err)
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				logger.Warn("failed to delete old snapshot", "file", path, "error", err)
			} else {
				logger.Info("deleted old snapshot", "file", path, "age", time.Since(info.ModTime()))
				deleted++
			}
		}
	}

	logger.Info("old snapshot cleanup completed", "deleted", deleted)
	return deleted, nil
}

// IsSnapshotFile checks if a filename follows the <product>-backup- naming
func IsSnapshotFile(product, name string) bool {
	if !strings.HasPrefix(name, product+"-backup-") {
		return false
	}
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.zst")
}
