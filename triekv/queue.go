package triekv

import (
	"encoding/binary"
	"fmt"
)

// Queue is a persistent FIFO over a trie column, keyed by an ascending
// big-endian uint64 position (the same key-by-index convention erigon uses
// for canonical chain data, e.g. dbutils.EncodeBlockNumber). Pushes append
// at Tail, pops remove from Head; the queue survives across Tx boundaries
// because Head/Tail live in metaTable under their own key.
//
// One Queue value is created fresh per chunk from the persisted head/tail
// counters (see Load); it never caches entries in memory beyond the current
// operation.
type Queue struct {
	table     string
	metaTable string
	metaKey   []byte

	head uint64
	tail uint64
}

func encodeIndex(i uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, i)
	return b
}

// Load reads the persisted head/tail counters for the queue identified by
// (table, metaTable, metaKey). A queue that has never been written to
// starts empty at head=tail=0.
func Load(tx Tx, table, metaTable string, metaKey []byte) (*Queue, error) {
	q := &Queue{table: table, metaTable: metaTable, metaKey: append([]byte(nil), metaKey...)}
	v, err := tx.GetOne(metaTable, metaKey)
	if err != nil {
		return nil, fmt.Errorf("triekv: load queue meta: %w", err)
	}
	if v == nil {
		return q, nil
	}
	if len(v) != 16 {
		return nil, fmt.Errorf("triekv: corrupt queue meta for key %x: want 16 bytes, got %d", metaKey, len(v))
	}
	q.head = binary.BigEndian.Uint64(v[:8])
	q.tail = binary.BigEndian.Uint64(v[8:])
	return q, nil
}

func (q *Queue) persistMeta(tx RwTx) error {
	v := make([]byte, 16)
	binary.BigEndian.PutUint64(v[:8], q.head)
	binary.BigEndian.PutUint64(v[8:], q.tail)
	return tx.Put(q.metaTable, q.metaKey, v)
}

func (q *Queue) positionKey(pos uint64) []byte {
	return append(append([]byte(nil), q.metaKey...), encodeIndex(pos)...)
}

// Len reports the number of entries currently in the queue.
func (q *Queue) Len() uint64 {
	return q.tail - q.head
}

// PushBack appends value at the tail and persists the new tail counter.
func (q *Queue) PushBack(tx RwTx, value []byte) error {
	if err := tx.Put(q.table, q.positionKey(q.tail), value); err != nil {
		return fmt.Errorf("triekv: push: %w", err)
	}
	q.tail++
	return q.persistMeta(tx)
}

// PopFront removes and returns the head entry, or (nil, nil) if empty.
func (q *Queue) PopFront(tx RwTx) ([]byte, error) {
	if q.head == q.tail {
		return nil, nil
	}
	key := q.positionKey(q.head)
	v, err := tx.GetOne(q.table, key)
	if err != nil {
		return nil, fmt.Errorf("triekv: pop get: %w", err)
	}
	if err := tx.Delete(q.table, key); err != nil {
		return nil, fmt.Errorf("triekv: pop delete: %w", err)
	}
	q.head++
	if err := q.persistMeta(tx); err != nil {
		return nil, err
	}
	return v, nil
}

// PopFrontN removes the n oldest entries in one batch, used by the sink to
// apply a drain's worth of pops after an iteration completes (see
// forward_from_buffer in the sink package: iteration must not mutate the
// trie while a cursor over it is still live).
func (q *Queue) PopFrontN(tx RwTx, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if _, err := q.PopFront(tx); err != nil {
			return err
		}
	}
	return nil
}

// Iter walks the queue head-to-tail without mutating it, calling walker
// with each stored value in FIFO order. Iteration stops early if walker
// returns a non-nil error.
func (q *Queue) Iter(tx Tx, walker func(value []byte) error) error {
	for pos := q.head; pos < q.tail; pos++ {
		v, err := tx.GetOne(q.table, q.positionKey(pos))
		if err != nil {
			return fmt.Errorf("triekv: iter: %w", err)
		}
		if v == nil {
			return fmt.Errorf("triekv: iter: missing entry at position %d (head=%d tail=%d)", pos, q.head, q.tail)
		}
		if err := walker(v); err != nil {
			return err
		}
	}
	return nil
}
