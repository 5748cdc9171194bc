// Package storage provides the byte stores the manager reads documents from
// and writes results to, plus the persistent job record store.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperr "github.com/docshield/redactor/internal/errors"
)

// Store reads and writes whole documents by key. Keys may contain slashes;
// implementations treat them as folder separators.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// FileStore keeps documents on the local filesystem under a root directory.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, apperr.Wrap(fmt.Errorf("root directory is required"), apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return data, nil
}

func (s *FileStore) Write(_ context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return nil
}

// resolve rejects keys that would escape the root.
func (s *FileStore) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", apperr.Wrap(fmt.Errorf("illegal key %q", key), apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Opener builds a Store from per-request location properties.
type Opener func(props map[string]string) (Store, error)

// Factory resolves a storage kind named in a request payload to an Opener.
type Factory struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

func NewFactory() *Factory {
	return &Factory{openers: make(map[string]Opener)}
}

func (f *Factory) Register(kind string, opener Opener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.openers[kind]; ok {
		return apperr.Wrap(fmt.Errorf("storage kind %q already registered", kind), apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	f.openers[kind] = opener
	return nil
}

func (f *Factory) Open(kind string, props map[string]string) (Store, error) {
	f.mu.RLock()
	opener, ok := f.openers[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, apperr.Wrap(fmt.Errorf("unknown storage kind %q", kind), apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return opener(props)
}

// NewDefaultFactory registers the built-in kinds. "file" expects a "root"
// property naming the directory that keys resolve against.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	_ = f.Register("file", func(props map[string]string) (Store, error) {
		return NewFileStore(props["root"])
	})
	return f
}
