// internal/blob/blob.go

// Package blob abstracts the addressable document store holding raw scraped
// pages and processed artifacts. The pipeline only needs text reads and
// writes keyed by (bucket, object).
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when the addressed object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store is the minimal blob interface the pipeline consumes.
type Store interface {
	ReadText(ctx context.Context, bucket, object string) (string, error)
	WriteText(ctx context.Context, bucket, object, content string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// FilesystemStore maps buckets to directories under a root path.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at the given directory.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) path(bucket, object string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(object))
}

// ReadText reads the object content as a string.
func (s *FilesystemStore) ReadText(ctx context.Context, bucket, object string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path(bucket, object))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, object)
		}
		return "", fmt.Errorf("blob: read %s/%s: %w", bucket, object, err)
	}
	return string(data), nil
}

// WriteText writes the object content, creating parent directories as needed.
func (s *FilesystemStore) WriteText(ctx context.Context, bucket, object, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(bucket, object)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blob: create directories for %s/%s: %w", bucket, object, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("blob: write %s/%s: %w", bucket, object, err)
	}
	return nil
}

// List returns object names under a prefix, sorted.
func (s *FilesystemStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, bucket)
	var objects []string
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			objects = append(objects, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob: list %s/%s: %w", bucket, prefix, err)
	}
	sort.Strings(objects)
	return objects, nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]string)}
}

func key(bucket, object string) string { return bucket + "/" + object }

// ReadText returns the stored content or ErrNotFound.
func (s *MemoryStore) ReadText(ctx context.Context, bucket, object string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[key(bucket, object)]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, object)
	}
	return content, nil
}

// WriteText stores the content.
func (s *MemoryStore) WriteText(ctx context.Context, bucket, object, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key(bucket, object)] = content
	return nil
}

// List returns object names under a prefix, sorted.
func (s *MemoryStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var objects []string
	for k := range s.objects {
		if strings.HasPrefix(k, bucket+"/") {
			name := strings.TrimPrefix(k, bucket+"/")
			if strings.HasPrefix(name, prefix) {
				objects = append(objects, name)
			}
		}
	}
	sort.Strings(objects)
	return objects, nil
}
