package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataport/internal/core"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 2 * time.Hour

const originalBlob = "original.json"

var _ core.SessionCache = (*Cache)(nil)

// Cache implements core.SessionCache over a metadata Store and a BlobStore.
//
// Replacing the processed rows writes a new blob under a fresh ref and then
// swaps the metadata record. The metadata write is the commit point, so a
// reader always pairs a header row with the rows built from it.
//
// Replaces on one key are serialized within the process, so Version only
// moves forward and every superseded blob is removed. Replaces racing from
// other processes can still strand a blob; Destroy and Sweep collect it.
type Cache struct {
	store Store
	blobs BlobStore
	ttl   time.Duration
	now   func() time.Time

	locks [64]sync.Mutex
}

// NewCache creates a Cache. A non-positive ttl falls back to DefaultTTL.
func NewCache(store Store, blobs BlobStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, blobs: blobs, ttl: ttl, now: time.Now}
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.locks[h.Sum32()%uint32(len(c.locks))]
}

func processedRef(key string) string {
	return key + "/processed-" + uuid.NewString() + ".json"
}

// Create stores both row sets and the metadata under a new key.
func (c *Cache) Create(ctx context.Context, original []core.ParsedRow, processed []core.ProcessedRow, meta core.SessionMeta) (string, error) {
	now := c.now()
	key := NewKey(now)

	meta.Key = key
	meta.OriginalRef = key + "/" + originalBlob
	meta.ProcessedRef = processedRef(key)
	meta.Version = 1
	meta.CreatedAt = now
	meta.UpdatedAt = now

	if err := c.writeJSON(ctx, meta.OriginalRef, original); err != nil {
		return "", err
	}
	if err := c.writeJSON(ctx, meta.ProcessedRef, processed); err != nil {
		c.blobs.DeleteSession(ctx, key)
		return "", err
	}
	if err := c.putMeta(ctx, &meta); err != nil {
		c.blobs.DeleteSession(ctx, key)
		return "", err
	}
	return key, nil
}

// Get returns the metadata of a session, or core.ErrSessionNotFound.
func (c *Cache) Get(ctx context.Context, key string) (*core.SessionMeta, error) {
	if !ValidKey(key) {
		return nil, core.ErrSessionNotFound
	}
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	var meta core.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return &meta, nil
}

func (c *Cache) LoadOriginal(ctx context.Context, meta *core.SessionMeta) ([]core.ParsedRow, error) {
	var rows []core.ParsedRow
	if err := c.readJSON(ctx, meta.OriginalRef, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadProcessed reads the processed rows referenced by meta. If a concurrent
// replace removed that blob, the current metadata is fetched and the read
// retried; meta is updated to what was actually read.
func (c *Cache) LoadProcessed(ctx context.Context, meta *core.SessionMeta) ([]core.ProcessedRow, error) {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		var rows []core.ProcessedRow
		err = c.readJSON(ctx, meta.ProcessedRef, &rows)
		if !errors.Is(err, core.ErrSessionNotFound) {
			return rows, err
		}

		current, gerr := c.Get(ctx, meta.Key)
		if gerr != nil {
			return nil, gerr
		}
		if current.ProcessedRef == meta.ProcessedRef {
			return nil, err
		}
		*meta = *current
	}
	return nil, err
}

// ReplaceProcessed swaps in a new processed row set and header.
func (c *Cache) ReplaceProcessed(ctx context.Context, key string, processed []core.ProcessedRow, headerRow int, headers core.HeaderSet) error {
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	meta, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	oldRef := meta.ProcessedRef
	newRef := processedRef(key)
	if err := c.writeJSON(ctx, newRef, processed); err != nil {
		return err
	}

	meta.ProcessedRef = newRef
	meta.HeaderRow = &headerRow
	meta.TotalRows = len(processed)
	meta.TotalColumns = len(headers)
	meta.Columns = headers.Columns()
	meta.Version++
	meta.UpdatedAt = c.now()

	if err := c.putMeta(ctx, meta); err != nil {
		c.blobs.Delete(ctx, newRef)
		return err
	}

	if err := c.blobs.Delete(ctx, oldRef); err != nil {
		slog.Warn("stale processed blob left behind", "ref", oldRef, "error", err)
	}
	return nil
}

// Destroy removes the metadata and every blob of a session. Missing keys
// are not an error.
func (c *Cache) Destroy(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return nil
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return c.blobs.DeleteSession(ctx, key)
}

// Sweep destroys sessions whose blobs are older than olderThan and whose
// metadata has expired or was not updated in that window.
func (c *Cache) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := c.now().Add(-olderThan)
	keys, err := c.blobs.Sessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		meta, err := c.Get(ctx, key)
		switch {
		case errors.Is(err, core.ErrSessionNotFound):
		case err != nil:
			slog.Warn("skipping unreadable session during sweep", "session", key, "error", err)
			continue
		case meta.UpdatedAt.After(cutoff):
			continue
		}
		if err := c.Destroy(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (c *Cache) putMeta(ctx context.Context, meta *core.SessionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.store.Set(ctx, meta.Key, data, c.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", meta.Key, err)
	}
	return nil
}

func (c *Cache) writeJSON(ctx context.Context, ref string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref, err)
	}
	if err := c.blobs.Write(ctx, ref, data); err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	return nil
}

// readJSON maps a missing blob to core.ErrSessionNotFound.
func (c *Cache) readJSON(ctx context.Context, ref string, v any) error {
	data, err := c.blobs.Read(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return core.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", ref, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}
