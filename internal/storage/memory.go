package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB with an in-memory map. Update transactions are
// serialized under a write lock, so they are atomic and never conflict.
// Used in tests and for ephemeral tooling.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

// View runs fn against a read-locked snapshot.
func (m *MemoryDB) View(fn func(Txn) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTxn{db: m, readOnly: true})
}

// Update runs fn under the write lock, buffering writes and applying them
// only if fn succeeds.
func (m *MemoryDB) Update(fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memTxn{db: m, writes: make(map[string][]byte)}
	if err := fn(txn); err != nil {
		return err
	}
	for k, v := range txn.writes {
		if v == nil {
			delete(m.data, k)
		} else {
			m.data[k] = v
		}
	}
	return nil
}

// Close is a no-op.
func (m *MemoryDB) Close() error {
	return nil
}

// memTxn layers pending writes over the committed map. A nil write value
// marks a deletion.
type memTxn struct {
	db       *MemoryDB
	writes   map[string][]byte
	readOnly bool
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	k := string(key)
	if !t.readOnly {
		if v, ok := t.writes[k]; ok {
			if v == nil {
				return nil, ErrNotFound
			}
			return append([]byte(nil), v...), nil
		}
	}
	v, ok := t.db.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *memTxn) Set(key, value []byte) error {
	if t.readOnly {
		return ErrConflict
	}
	// Nil entries mark deletions, so an empty value must stay non-nil to
	// keep a present-but-empty key, matching the badger implementation.
	v := make([]byte, len(value))
	copy(v, value)
	t.writes[string(key)] = v
	return nil
}

func (t *memTxn) Delete(key []byte) error {
	if t.readOnly {
		return ErrConflict
	}
	t.writes[string(key)] = nil
	return nil
}

func (t *memTxn) Has(key []byte) (bool, error) {
	_, err := t.Get(key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *memTxn) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)

	merged := make(map[string][]byte)
	for k, v := range t.db.data {
		if strings.HasPrefix(k, p) {
			merged[k] = v
		}
	}
	if !t.readOnly {
		for k, v := range t.writes {
			if !strings.HasPrefix(k, p) {
				continue
			}
			if v == nil {
				delete(merged, k)
			} else {
				merged[k] = v
			}
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), append([]byte(nil), merged[k]...)); err != nil {
			return err
		}
	}
	return nil
}
