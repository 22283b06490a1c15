package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cinodeharvest/pkg/storage"
)

// DiskStore keeps one <key>.json file per entry in a directory
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed and returns a store over it
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Path returns the file backing key
func (s *DiskStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, body []byte) error {
	return storage.WriteFileAtomic(s.Path(key), body, 0644)
}
