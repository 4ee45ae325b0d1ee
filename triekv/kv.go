// Package triekv defines the minimal read and read-write transaction
// contracts the congestion sink needs from the shard trie, plus an
// in-memory implementation for tests and the simulator.
//
// The shape mirrors the Tx / RwTx split erigon-lib/kv exposes to the rest
// of erigon (see eth/stagedsync, polygon/bor/finality, core/genesis_write.go
// for examples of code written against kv.Tx / kv.RwTx): a handful of table
// names, byte-keyed values, forward iteration from a prefix. The sink never
// needs dupsort cursors, temporal queries or any of erigon-lib/kv's other
// machinery, so we keep our own narrow contract rather than pulling in the
// full dependency.
package triekv

import (
	"bytes"
	"sort"
)

// Tx is a read-only view over the trie's byte-keyed columns.
type Tx interface {
	GetOne(table string, key []byte) ([]byte, error)
	Has(table string, key []byte) (bool, error)
	// ForEach walks table in ascending key order starting at the first key
	// >= from, calling walker for every entry until walker returns a
	// non-nil error or the table is exhausted. A nil from starts at the
	// beginning of the table.
	ForEach(table string, from []byte, walker func(k, v []byte) error) error
}

// RwTx is a Tx that also records pending mutations.
type RwTx interface {
	Tx
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
}

// MemTx is an in-memory Tx/RwTx used by tests and the simulator. It is not
// safe for concurrent use: callers own exactly one MemTx per chunk, matching
// the single active trie borrow the sink is specified to hold.
type MemTx struct {
	tables map[string]map[string][]byte
}

// NewMemTx returns an empty in-memory transaction.
func NewMemTx() *MemTx {
	return &MemTx{tables: make(map[string]map[string][]byte)}
}

// Clone returns a deep copy, used by tests that want to assert a failed
// operation left storage untouched.
func (m *MemTx) Clone() *MemTx {
	out := NewMemTx()
	for table, rows := range m.tables {
		cp := make(map[string][]byte, len(rows))
		for k, v := range rows {
			vv := make([]byte, len(v))
			copy(vv, v)
			cp[k] = vv
		}
		out.tables[table] = cp
	}
	return out
}

func (m *MemTx) table(name string) map[string][]byte {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string][]byte)
		m.tables[name] = t
	}
	return t
}

func (m *MemTx) GetOne(table string, key []byte) ([]byte, error) {
	v, ok := m.tables[table][string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *MemTx) Has(table string, key []byte) (bool, error) {
	_, ok := m.tables[table][string(key)]
	return ok, nil
}

func (m *MemTx) Put(table string, key, value []byte) error {
	vv := make([]byte, len(value))
	copy(vv, value)
	m.table(table)[string(key)] = vv
	return nil
}

func (m *MemTx) Delete(table string, key []byte) error {
	delete(m.table(table), string(key))
	return nil
}

func (m *MemTx) ForEach(table string, from []byte, walker func(k, v []byte) error) error {
	rows := m.tables[table]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if from != nil && bytes.Compare([]byte(k), from) < 0 {
			continue
		}
		if err := walker([]byte(k), rows[k]); err != nil {
			return err
		}
	}
	return nil
}
