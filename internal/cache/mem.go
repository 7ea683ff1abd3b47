package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/hpungsan/matsift/internal/errors"
	"github.com/hpungsan/matsift/internal/record"
)

// MemStore is an in-memory Store. Entries are kept encoded so Load goes
// through the same decoder as FileStore.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	data      []byte
	updatedAt time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]memEntry)}
}

// Put stores raw bytes under name, bypassing encoding.
func (m *MemStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = memEntry{data: append([]byte(nil), data...), updatedAt: time.Now().UTC()}
}

// Exists reports whether name has an entry.
func (m *MemStore) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[name]
	return ok, nil
}

// Load decodes the entry for name.
func (m *MemStore) Load(name string) (record.ResultSet, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	e, ok := m.entries[name]
	m.mu.Unlock()
	if !ok {
		return nil, errors.NewNotFound(name)
	}
	rs, err := record.Decode(e.data)
	if err != nil {
		return nil, errors.NewCacheCorrupt(name, err)
	}
	return rs, nil
}

// Save encodes rs and replaces the entry for name.
func (m *MemStore) Save(name string, rs record.ResultSet) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := record.Encode(rs)
	if err != nil {
		return errors.NewInternal(err)
	}
	m.Put(name, data)
	return nil
}

// List returns all entries sorted by name.
func (m *MemStore) List() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for name, e := range m.entries {
		out = append(out, Entry{Name: name, SizeBytes: int64(len(e.data)), UpdatedAt: e.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var _ Store = (*MemStore)(nil)
