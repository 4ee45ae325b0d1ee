package congestion

import (
	"fmt"

	"github.com/erigontech/xshard-receipts/triekv"
)

// BootstrapCongestionInfo reconstructs a valid Info from the persisted
// delayed queue and every known outgoing buffer, for use when no prior
// chunk-header value is available (first congestion-aware chunk for a
// shard). It is I/O heavy by design and only meant for that one-time
// construction; steady state carries Info forward via chunk headers
// instead.
//
// destinations lists every shard this shard might have buffered receipts
// for; callers know this set from the shard layout (see the epoch
// package), not from the trie itself.
func BootstrapCongestionInfo(tx triekv.Tx, fees FeeConfig, ownShard ShardID, destinations []ShardID) (Info, error) {
	info := NewInfo(ownShard)

	delayed, err := triekv.Load(tx, DelayedReceiptTable, DelayedReceiptMetaTable, delayedQueueKey)
	if err != nil {
		return Info{}, fmt.Errorf("congestion: bootstrap: load delayed queue: %w", err)
	}
	if err := sumQueue(tx, delayed, fees, &info, true); err != nil {
		return Info{}, err
	}

	for _, to := range destinations {
		buf, err := triekv.Load(tx, OutgoingBufferTable, OutgoingBufferMetaTable, outgoingBufferMetaKey(to))
		if err != nil {
			return Info{}, fmt.Errorf("congestion: bootstrap: load outgoing buffer for shard %d: %w", to, err)
		}
		if err := sumQueue(tx, buf, fees, &info, false); err != nil {
			return Info{}, err
		}
	}

	return info, nil
}

// sumQueue accumulates one queue's gas and bytes into info. delayedQueue
// selects whether gas accrues to delayed_receipts_gas or
// buffered_receipts_gas; bytes always accrue to the combined receipt_bytes
// total regardless of source queue.
func sumQueue(tx triekv.Tx, q *triekv.Queue, fees FeeConfig, info *Info, delayedQueue bool) error {
	return q.Iter(tx, func(raw []byte) error {
		stored, err := DecodeStored(raw)
		if err != nil {
			return fmt.Errorf("congestion: bootstrap: decode stored receipt: %w", err)
		}
		gas, err := stored.Gas(fees)
		if err != nil {
			return err
		}
		size, err := stored.Size()
		if err != nil {
			return err
		}
		if delayedQueue {
			if err := info.AddDelayedReceiptGas(gas); err != nil {
				return err
			}
		} else {
			if err := info.AddBufferedReceiptGas(gas); err != nil {
				return err
			}
		}
		return info.AddReceiptBytes(size)
	})
}
