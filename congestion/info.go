package congestion

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Info is the running congestion accounting a shard publishes so peers can
// throttle traffic toward it (CongestionInfo in the spec). DelayedReceiptsGas
// and BufferedReceiptsGas accumulate a lot of per-receipt u64 gas values over
// the lifetime of a queue, so they are tracked as uint256 words (the same
// checked-arithmetic type erigon uses for EVM words, see
// eth/ethutils/receipt.go and core/genesis_write.go) even though any single
// receipt's contribution fits in a u64.
type Info struct {
	DelayedReceiptsGas  uint256.Int
	BufferedReceiptsGas uint256.Int
	ReceiptBytes        uint64
	AllowedShard        ShardID
}

// NewInfo returns a zeroed Info bootstrapped to ownShard, matching the
// bootstrap rule that allowed_shard starts out as the shard's own id.
func NewInfo(ownShard ShardID) Info {
	return Info{AllowedShard: ownShard}
}

func addU256U64(z *uint256.Int, delta uint64) error {
	var d uint256.Int
	d.SetUint64(delta)
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(z, &d); overflow {
		return fmt.Errorf("%w: congestion gas accumulator", ErrStorageInconsistent)
	}
	*z = sum
	return nil
}

func subU256U64(z *uint256.Int, delta uint64) error {
	var d uint256.Int
	d.SetUint64(delta)
	if z.Lt(&d) {
		return fmt.Errorf("%w: removing %d from congestion gas accumulator holding %s", ErrStorageInconsistent, delta, z.Dec())
	}
	var diff uint256.Int
	diff.Sub(z, &d)
	*z = diff
	return nil
}

// AddDelayedReceiptGas adds gas to the delayed-queue running total.
func (i *Info) AddDelayedReceiptGas(gas uint64) error {
	return addU256U64(&i.DelayedReceiptsGas, gas)
}

// RemoveDelayedReceiptGas removes gas from the delayed-queue running total.
// Underflow indicates corrupted state and is reported as StorageInconsistent.
func (i *Info) RemoveDelayedReceiptGas(gas uint64) error {
	return subU256U64(&i.DelayedReceiptsGas, gas)
}

// AddBufferedReceiptGas adds gas to the outgoing-buffers running total.
func (i *Info) AddBufferedReceiptGas(gas uint64) error {
	return addU256U64(&i.BufferedReceiptsGas, gas)
}

// RemoveBufferedReceiptGas removes gas from the outgoing-buffers running total.
func (i *Info) RemoveBufferedReceiptGas(gas uint64) error {
	return subU256U64(&i.BufferedReceiptsGas, gas)
}

// AddReceiptBytes adds n bytes to the combined delayed+buffered byte total.
func (i *Info) AddReceiptBytes(n uint64) error {
	sum := i.ReceiptBytes + n
	if sum < i.ReceiptBytes {
		return fmt.Errorf("%w: receipt_bytes accumulator", ErrStorageInconsistent)
	}
	i.ReceiptBytes = sum
	return nil
}

// RemoveReceiptBytes removes n bytes from the combined byte total.
func (i *Info) RemoveReceiptBytes(n uint64) error {
	if n > i.ReceiptBytes {
		return fmt.Errorf("%w: removing %d receipt_bytes from total %d", ErrStorageInconsistent, n, i.ReceiptBytes)
	}
	i.ReceiptBytes -= n
	return nil
}
