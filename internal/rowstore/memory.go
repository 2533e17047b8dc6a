package rowstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"persist/internal/record"
)

// row is one stored record ordered by its sequence key.
type row struct {
	key int64
	rec record.Record
}

type table struct {
	rows *btree.BTreeG[row]
	next int64
}

// Memory is an in-process row store. Every table keeps its rows in a B-tree
// ordered by an auto-increment key.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{tables: map[string]*table{}}
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{store: m}, nil
}

// Rows returns the committed rows of name in key order.
func (m *Memory) Rows(name string) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	out := make([]record.Record, 0, t.rows.Len())
	t.rows.Ascend(func(r row) bool {
		out = append(out, r.rec.Clone())
		return true
	})
	return out, nil
}

// Len returns the number of committed rows in name.
func (m *Memory) Len(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[name]; ok {
		return t.rows.Len()
	}
	return 0
}

// reserve hands out the next key of name, creating the table on first use.
// Keys of rolled back inserts are not reused.
func (m *Memory) reserve(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		t = &table{rows: btree.NewG(32, func(a, b row) bool { return a.key < b.key })}
		m.tables[name] = t
	}
	t.next++
	return t.next
}

type pendingRow struct {
	table string
	row   row
}

type memoryTx struct {
	store *Memory

	mu      sync.Mutex
	pending []pendingRow
	done    bool
}

func (t *memoryTx) Insert(ctx context.Context, name string, rec record.Record, key string) (int64, error) {
	if err := validRecord(name, rec); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return 0, ErrTxDone
	}

	id := t.store.reserve(name)
	stored := rec.Clone()
	if key != "" {
		stored.Put(key, record.Int(id))
	}
	t.pending = append(t.pending, pendingRow{table: name, row: row{key: id, rec: stored}})
	if key == "" {
		return 0, nil
	}
	return id, nil
}

func (t *memoryTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, p := range t.pending {
		t.store.tables[p.table].rows.ReplaceOrInsert(p.row)
	}
	t.pending = nil
	return nil
}

func (t *memoryTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.pending = nil
	return nil
}
