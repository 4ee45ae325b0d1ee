// Package outgoingmeta tracks, per destination shard, a bounded summary of
// the sizes of receipts still sitting in that shard's outgoing buffer. The
// summary is a small number of size-class buckets rather than the full list
// of receipts, so it stays cheap to keep up to date on every push and pop.
//
// It is grounded on the same trie-table-plus-counters shape as
// triekv.Queue: a value object loaded once per chunk from persisted bytes,
// mutated in memory, and written back through an RwTx.
package outgoingmeta

import (
	"encoding/binary"
	"fmt"

	"github.com/erigontech/xshard-receipts/triekv"
)

// ReceiptGroupsConfig defines the upper bound (exclusive) of every bucket
// except the last, which catches everything larger.
type ReceiptGroupsConfig struct {
	UpperBounds []uint64
}

// DefaultReceiptGroupsConfig buckets by order of magnitude: under 1KiB,
// under 10KiB, under 100KiB, under 1MiB, and everything above.
func DefaultReceiptGroupsConfig() ReceiptGroupsConfig {
	return ReceiptGroupsConfig{UpperBounds: []uint64{1024, 10 * 1024, 100 * 1024, 1024 * 1024}}
}

func (c ReceiptGroupsConfig) bucketOf(size uint64) int {
	for i, ub := range c.UpperBounds {
		if size < ub {
			return i
		}
	}
	return len(c.UpperBounds)
}

// representativeSize returns the size a bandwidth request should quote for
// a non-empty bucket: its upper bound, or for the open-ended last bucket,
// the largest size actually observed in it.
func (c ReceiptGroupsConfig) representativeSize(bucket int, observedMax uint64) uint64 {
	if bucket < len(c.UpperBounds) {
		return c.UpperBounds[bucket]
	}
	return observedMax
}

type bucket struct {
	count      uint64
	gas        uint64
	observedMax uint64
}

// Metadata is the per-destination working summary. A nil *Metadata (as
// returned by Load when nothing has ever been persisted) means "not ready":
// callers must fall back to a basic bandwidth request until the buffer has
// been fully re-summarised, exactly the legacy-upgrade window the spec
// describes.
type Metadata struct {
	cfg           ReceiptGroupsConfig
	buckets       []bucket
	totalReceipts uint64
}

// New returns an empty metadata tracker for cfg.
func New(cfg ReceiptGroupsConfig) *Metadata {
	return &Metadata{cfg: cfg, buckets: make([]bucket, len(cfg.UpperBounds)+1)}
}

// TotalReceipts is the number of receipts this metadata currently accounts
// for.
func (m *Metadata) TotalReceipts() uint64 {
	if m == nil {
		return 0
	}
	return m.totalReceipts
}

// OnPush records a receipt of the given size/gas entering the buffer.
func (m *Metadata) OnPush(size, gas uint64) {
	b := &m.buckets[m.cfg.bucketOf(size)]
	b.count++
	b.gas += gas
	if size > b.observedMax {
		b.observedMax = size
	}
	m.totalReceipts++
}

// OnPop records a receipt of the given size/gas leaving the buffer from the
// head. Popping from a bucket that metadata never tracked (because it was
// only partially populated) is a logic error from the caller's side.
func (m *Metadata) OnPop(size, gas uint64) error {
	idx := m.cfg.bucketOf(size)
	b := &m.buckets[idx]
	if b.count == 0 {
		return fmt.Errorf("outgoingmeta: pop from empty bucket %d (size=%d)", idx, size)
	}
	b.count--
	if b.gas < gas {
		return fmt.Errorf("outgoingmeta: pop gas %d exceeds bucket total %d", gas, b.gas)
	}
	b.gas -= gas
	m.totalReceipts--
	return nil
}

// GroupSizes returns one representative size per non-empty bucket, in
// ascending order, for use by a bandwidth request built from metadata.
func (m *Metadata) GroupSizes() []uint64 {
	if m == nil {
		return nil
	}
	var sizes []uint64
	for i, b := range m.buckets {
		if b.count == 0 {
			continue
		}
		sizes = append(sizes, m.cfg.representativeSize(i, b.observedMax))
	}
	return sizes
}

// Encode serialises metadata to bytes for persistence.
func (m *Metadata) Encode() []byte {
	buf := make([]byte, 8+len(m.buckets)*24)
	binary.BigEndian.PutUint64(buf[0:8], uint64(len(m.buckets)))
	off := 8
	for _, b := range m.buckets {
		binary.BigEndian.PutUint64(buf[off:off+8], b.count)
		binary.BigEndian.PutUint64(buf[off+8:off+16], b.gas)
		binary.BigEndian.PutUint64(buf[off+16:off+24], b.observedMax)
		off += 24
	}
	return buf
}

func decode(cfg ReceiptGroupsConfig, data []byte) (*Metadata, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("outgoingmeta: corrupt metadata: %d bytes", len(data))
	}
	n := binary.BigEndian.Uint64(data[0:8])
	want := len(cfg.UpperBounds) + 1
	if int(n) != want {
		return nil, fmt.Errorf("outgoingmeta: bucket count %d does not match config %d", n, want)
	}
	if len(data) != 8+int(n)*24 {
		return nil, fmt.Errorf("outgoingmeta: corrupt metadata length %d for %d buckets", len(data), n)
	}
	m := New(cfg)
	off := 8
	var total uint64
	for i := range m.buckets {
		m.buckets[i].count = binary.BigEndian.Uint64(data[off : off+8])
		m.buckets[i].gas = binary.BigEndian.Uint64(data[off+8 : off+16])
		m.buckets[i].observedMax = binary.BigEndian.Uint64(data[off+16 : off+24])
		total += m.buckets[i].count
		off += 24
	}
	m.totalReceipts = total
	return m, nil
}

// Load reads a destination's persisted metadata, or returns nil if none has
// ever been written for it (the "not ready" case).
func Load(tx triekv.Tx, table string, key []byte, cfg ReceiptGroupsConfig) (*Metadata, error) {
	v, err := tx.GetOne(table, key)
	if err != nil {
		return nil, fmt.Errorf("outgoingmeta: load: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	return decode(cfg, v)
}

// Persist writes metadata back for key.
func (m *Metadata) Persist(tx triekv.RwTx, table string, key []byte) error {
	if err := tx.Put(table, key, m.Encode()); err != nil {
		return fmt.Errorf("outgoingmeta: persist: %w", err)
	}
	return nil
}
