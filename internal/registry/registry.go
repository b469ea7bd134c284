// Package registry records stored import and export files.
//
// Postgres is used when a database is configured; Memory backs tests and
// database-less deployments. Both list newest first.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/dataport/internal/core"
)

var (
	_ core.FileRegistry = (*Memory)(nil)
	_ core.FileRegistry = (*Postgres)(nil)
)

// Memory is an in-process file registry.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]core.FileRecord
	now     func() time.Time
}

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[int64]core.FileRecord),
		now:     time.Now,
	}
}

func (m *Memory) Record(_ context.Context, rec core.FileRecord) (core.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := m.now()
	rec.ID = m.nextID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *Memory) Get(_ context.Context, id int64) (core.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return core.FileRecord{}, core.ErrFileNotFound
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context, ownerID string, ft core.FileType) ([]core.FileRecord, error) {
	m.mu.RLock()
	out := make([]core.FileRecord, 0)
	for _, rec := range m.records {
		if rec.OwnerID == ownerID && rec.Filetype == ft {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return core.ErrFileNotFound
	}
	delete(m.records, id)
	return nil
}
