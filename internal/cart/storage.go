package cart

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// MemStorage keeps the serialized cart in memory.
type MemStorage struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemStorage) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), nil
}

func (m *MemStorage) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemStorage) Update(_ context.Context, fn func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var old []byte
	if m.data != nil {
		old = append([]byte(nil), m.data...)
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	m.data = append([]byte(nil), next...)
	return nil
}

func (m *MemStorage) Erase(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// FileStorage keeps the cart of a single client installation in one file.
type FileStorage struct {
	Path string
}

func (f FileStorage) Load(context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Save writes through a temp file so a crash never leaves half a cart.
func (f FileStorage) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f FileStorage) Erase(context.Context) error {
	err := os.Remove(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
