package congestion

import (
	"fmt"

	"github.com/erigontech/xshard-receipts/triekv"
)

const (
	// DelayedReceiptTable holds the delayed queue's entries, keyed by
	// position.
	DelayedReceiptTable = "DelayedReceipt"
	// DelayedReceiptMetaTable holds the delayed queue's head/tail counters.
	DelayedReceiptMetaTable = "DelayedReceiptMeta"
)

var delayedQueueKey = []byte("delayed")

// DelayedReceiptQueueWrapper accumulates gas/byte deltas across pushes and
// pops against the persistent delayed-receipt queue and commits them to a
// CongestionInfo exactly once, at the end of a chunk. Keeping the counters
// separate from the queue itself means the borrow of the trie an iterator
// holds never has to overlap with a mutable borrow of CongestionInfo - the
// same reason erigon's staged-sync stages defer state mutation until after
// a cursor is released (see triekv.Queue's PopFrontN).
type DelayedReceiptQueueWrapper struct {
	queue *triekv.Queue

	newGas       uint64
	newBytes     uint64
	removedGas   uint64
	removedBytes uint64
}

// LoadDelayedReceiptQueueWrapper loads the persisted delayed queue for this
// shard.
func LoadDelayedReceiptQueueWrapper(tx triekv.Tx) (*DelayedReceiptQueueWrapper, error) {
	q, err := triekv.Load(tx, DelayedReceiptTable, DelayedReceiptMetaTable, delayedQueueKey)
	if err != nil {
		return nil, fmt.Errorf("congestion: load delayed queue: %w", err)
	}
	return &DelayedReceiptQueueWrapper{queue: q}, nil
}

// Len returns the number of receipts currently delayed.
func (w *DelayedReceiptQueueWrapper) Len() uint64 {
	return w.queue.Len()
}

// Push appends receipt to the delayed queue, pricing it with apply's fee
// schedule and persisted-receipt-form setting.
func (w *DelayedReceiptQueueWrapper) Push(tx triekv.RwTx, receipt Receipt, apply *ApplyState) error {
	gas, err := Gas(receipt, apply.Config.Fees)
	if err != nil {
		return err
	}
	size, err := Size(receipt)
	if err != nil {
		return err
	}

	stored := Plain(receipt)
	if apply.Config.UseStateStoredReceipt {
		stored = WithMetadata(receipt, gas, size)
	}
	encoded, err := EncodeStored(stored)
	if err != nil {
		return fmt.Errorf("congestion: encode delayed receipt: %w", err)
	}

	if w.newGas, err = checkedAddU64(w.newGas, gas); err != nil {
		return err
	}
	if w.newBytes, err = checkedAddU64(w.newBytes, size); err != nil {
		return err
	}
	if err := w.queue.PushBack(tx, encoded); err != nil {
		return fmt.Errorf("congestion: push delayed receipt: %w", err)
	}
	return nil
}

// Pop removes and returns the oldest delayed receipt, or (nil, nil) if the
// queue is empty.
func (w *DelayedReceiptQueueWrapper) Pop(tx triekv.RwTx, fees FeeConfig) (*StoredReceipt, error) {
	raw, err := w.queue.PopFront(tx)
	if err != nil {
		return nil, fmt.Errorf("congestion: pop delayed receipt: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	stored, err := DecodeStored(raw)
	if err != nil {
		return nil, fmt.Errorf("congestion: decode delayed receipt: %w", err)
	}
	gas, err := stored.Gas(fees)
	if err != nil {
		return nil, err
	}
	size, err := stored.Size()
	if err != nil {
		return nil, err
	}
	if w.removedGas, err = checkedAddU64(w.removedGas, gas); err != nil {
		return nil, err
	}
	if w.removedBytes, err = checkedAddU64(w.removedBytes, size); err != nil {
		return nil, err
	}
	return &stored, nil
}

// PeekIter walks the delayed queue head-to-tail without mutating it.
func (w *DelayedReceiptQueueWrapper) PeekIter(tx triekv.Tx, walker func(StoredReceipt) error) error {
	return w.queue.Iter(tx, func(raw []byte) error {
		stored, err := DecodeStored(raw)
		if err != nil {
			return fmt.Errorf("congestion: decode delayed receipt: %w", err)
		}
		return walker(stored)
	})
}

// ApplyCongestionChanges commits the accumulated push/pop deltas to
// congestion in one shot. It consumes the wrapper: callers must not use it
// afterward, mirroring the Rust original's `self` (by value) receiver.
func (w *DelayedReceiptQueueWrapper) ApplyCongestionChanges(info *Info) error {
	if err := info.AddDelayedReceiptGas(w.newGas); err != nil {
		return err
	}
	if err := info.RemoveDelayedReceiptGas(w.removedGas); err != nil {
		return err
	}
	if err := info.AddReceiptBytes(w.newBytes); err != nil {
		return err
	}
	if err := info.RemoveReceiptBytes(w.removedBytes); err != nil {
		return err
	}
	return nil
}
