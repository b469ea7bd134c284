package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// BlobStore holds the JSON row sets of each session. Refs have the form
// "<session key>/<name>". Write must replace a ref atomically: a concurrent
// Read sees either the old or the new content, never a mix.
type BlobStore interface {
	Write(ctx context.Context, ref string, data []byte) error
	Read(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	DeleteSession(ctx context.Context, key string) error
	// Sessions lists the session keys whose blobs were last written before cutoff.
	Sessions(ctx context.Context, cutoff time.Time) ([]string, error)
}

func splitRef(ref string) (key, name string, err error) {
	key, name, ok := strings.Cut(ref, "/")
	if !ok || !ValidKey(key) || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", "", fmt.Errorf("session: invalid blob ref %q", ref)
	}
	return key, name, nil
}

// FileBlobs stores blobs as files under root, one directory per session.
type FileBlobs struct {
	root string
}

// NewFileBlobs creates the root directory if needed.
func NewFileBlobs(root string) (*FileBlobs, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileBlobs{root: abs}, nil
}

// Root returns the absolute blob directory.
func (b *FileBlobs) Root() string {
	return b.root
}

// Write stores data via a temp file in the same directory followed by
// rename, which is atomic on POSIX filesystems.
func (b *FileBlobs) Write(_ context.Context, ref string, data []byte) error {
	key, name, err := splitRef(ref)
	if err != nil {
		return err
	}
	dir := filepath.Join(b.root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("publish blob: %w", err)
	}
	return nil
}

func (b *FileBlobs) Read(_ context.Context, ref string) ([]byte, error) {
	key, name, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(b.root, key, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (b *FileBlobs) Delete(_ context.Context, ref string) error {
	key, name, err := splitRef(ref)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(b.root, key, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (b *FileBlobs) DeleteSession(_ context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("session: invalid key %q", key)
	}
	if err := os.RemoveAll(filepath.Join(b.root, key)); err != nil {
		return fmt.Errorf("delete session blobs: %w", err)
	}
	return nil
}

func (b *FileBlobs) Sessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("list blob dir: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		if !e.IsDir() || !ValidKey(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		if info.ModTime().Before(cutoff) {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

type memoryBlob struct {
	data []byte
	at   time.Time
}

// MemoryBlobs keeps blobs in process memory. Used in tests and with the
// memory metadata store.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
	now   func() time.Time
}

// NewMemoryBlobs creates an empty MemoryBlobs.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string]memoryBlob), now: time.Now}
}

func (m *MemoryBlobs) Write(_ context.Context, ref string, data []byte) error {
	if _, _, err := splitRef(ref); err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.blobs[ref] = memoryBlob{data: cp, at: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobs) Read(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	b, ok := m.blobs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return b.data, nil
}

func (m *MemoryBlobs) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	delete(m.blobs, ref)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobs) DeleteSession(_ context.Context, key string) error {
	prefix := key + "/"
	m.mu.Lock()
	for ref := range m.blobs {
		if strings.HasPrefix(ref, prefix) {
			delete(m.blobs, ref)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobs) Sessions(_ context.Context, cutoff time.Time) ([]string, error) {
	latest := make(map[string]time.Time)
	m.mu.RLock()
	for ref, b := range m.blobs {
		key := path.Dir(ref)
		if b.at.After(latest[key]) {
			latest[key] = b.at
		}
	}
	m.mu.RUnlock()

	var keys []string
	for key, at := range latest {
		if at.Before(cutoff) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Len returns the number of stored blobs.
func (m *MemoryBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
