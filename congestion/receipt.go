// Package congestion implements the cross-shard receipt sink: per-receipt
// forward-or-buffer decisions driven by destination congestion state, the
// shard's own congestion accounting, and bandwidth-request synthesis.
//
// It is grounded on the way erigon structures a staged-sync execution stage
// (eth/stagedsync/stage_execute.go) operating against a kv transaction: a
// per-chunk value object is constructed, fed receipts one at a time, and
// consumed at the end for its outputs and pending writes.
package congestion

import (
	"encoding/binary"
	"fmt"
)

// ShardID identifies a shard. The zero value is a valid shard id; callers
// must not rely on it meaning "no shard".
type ShardID uint64

// ReceiptVariant tags the payload kind of a Receipt, mirroring the
// Action/Data/PromiseYield/PromiseResume union from the protocol.
type ReceiptVariant uint8

const (
	VariantAction ReceiptVariant = iota
	VariantData
	VariantPromiseYield
	VariantPromiseResume
)

func (v ReceiptVariant) String() string {
	switch v {
	case VariantAction:
		return "Action"
	case VariantData:
		return "Data"
	case VariantPromiseYield:
		return "PromiseYield"
	case VariantPromiseResume:
		return "PromiseResume"
	default:
		return fmt.Sprintf("ReceiptVariant(%d)", uint8(v))
	}
}

// Action is one action carried by an Action receipt. PrepaidExecGas and
// PrepaidSendGas come from the protocol fee schedule for the action kind;
// AttachedGas is only meaningful when IsFunctionCall is true.
type Action struct {
	PrepaidExecGas uint64
	PrepaidSendGas uint64
	AttachedGas    uint64
	IsFunctionCall bool
}

// Receipt is the sink's view of a protocol receipt: just enough to route it
// and price it. ExtraBytes stands in for the rest of the canonical
// serialization (arguments, signatures, and so on) that contributes to size
// but never to congestion_gas.
type Receipt struct {
	ID              string
	ReceiverAccount string
	Variant         ReceiptVariant
	Actions         []Action
	ExtraBytes      []byte
}

// FeeConfig carries the protocol fee-schedule constants congestion_gas
// needs. It is deliberately tiny: the sink does not run the fee schedule,
// it only needs the one fixed fee the protocol charges per new action
// receipt.
type FeeConfig struct {
	NewActionReceiptExecFee uint64
}

// Size returns the byte length of receipt's canonical serialization. It is
// part of the protocol: two conforming implementations must agree on this
// value bit for bit, so it is defined entirely in terms of Encode.
func Size(r Receipt) (uint64, error) {
	b, err := Encode(r)
	if err != nil {
		return 0, fmt.Errorf("congestion: size: %w", err)
	}
	return uint64(len(b)), nil
}

// Gas computes congestion_gas(receipt) per the protocol definition:
//
//   - Action: sum of prepaid execution fees for every action plus the fixed
//     new-action-receipt fee, plus prepaid send fees, plus gas explicitly
//     attached to function-call actions. Every addition is checked.
//   - Data, PromiseYield, PromiseResume: always 0 (a data receipt's cost
//     is charged to the action receipt
//     that spawned it, yielded promises never cross shards, and resumed
//     promises cannot be priced without a state lookup).
func Gas(r Receipt, fees FeeConfig) (uint64, error) {
	if r.Variant != VariantAction {
		return 0, nil
	}

	total := fees.NewActionReceiptExecFee
	for _, a := range r.Actions {
		var err error
		total, err = checkedAddU64(total, a.PrepaidExecGas)
		if err != nil {
			return 0, err
		}
	}
	for _, a := range r.Actions {
		var err error
		total, err = checkedAddU64(total, a.PrepaidSendGas)
		if err != nil {
			return 0, err
		}
	}
	for _, a := range r.Actions {
		if !a.IsFunctionCall {
			continue
		}
		var err error
		total, err = checkedAddU64(total, a.AttachedGas)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func checkedAddU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("congestion: %w: %d + %d overflows u64", ErrIntegerOverflow, a, b)
	}
	return sum, nil
}

// Encode produces the deterministic binary encoding of a receipt that Size
// is defined over. The format has no bearing on correctness beyond being
// stable: fixed-width big-endian integers, explicit length prefixes, fixed
// field order.
func Encode(r Receipt) ([]byte, error) {
	buf := make([]byte, 0, 64+len(r.ExtraBytes))
	buf = append(buf, byte(r.Variant))
	buf = appendUvarBytes(buf, []byte(r.ReceiverAccount))

	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], uint64(len(r.Actions)))
	buf = append(buf, countBuf[:]...)
	for _, a := range r.Actions {
		var flags byte
		if a.IsFunctionCall {
			flags = 1
		}
		buf = append(buf, flags)
		var word [8]byte
		binary.BigEndian.PutUint64(word[:], a.PrepaidExecGas)
		buf = append(buf, word[:]...)
		binary.BigEndian.PutUint64(word[:], a.PrepaidSendGas)
		buf = append(buf, word[:]...)
		binary.BigEndian.PutUint64(word[:], a.AttachedGas)
		buf = append(buf, word[:]...)
	}
	buf = appendUvarBytes(buf, r.ExtraBytes)
	return buf, nil
}

// Decode reverses Encode; empty Actions and ExtraBytes decode as nil. It is
// only used to read receipts back out of the trie (the delayed queue,
// outgoing buffers, bootstrap scan); for a Plain stored receipt, congestion
// gas and size are recomputed from the decoded receipt (see
// StoredReceipt.Gas and StoredReceipt.Size).
func Decode(data []byte) (Receipt, error) {
	var r Receipt
	rest, variant, err := takeByte(data)
	if err != nil {
		return r, err
	}
	r.Variant = ReceiptVariant(variant)

	rest, receiver, err := takeUvarBytes(rest)
	if err != nil {
		return r, err
	}
	r.ReceiverAccount = string(receiver)

	rest, count, err := takeUint64(rest)
	if err != nil {
		return r, err
	}
	if count > 0 {
		r.Actions = make([]Action, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		var flags byte
		rest, flags, err = takeByte(rest)
		if err != nil {
			return r, err
		}
		var a Action
		a.IsFunctionCall = flags&1 != 0
		rest, a.PrepaidExecGas, err = takeUint64(rest)
		if err != nil {
			return r, err
		}
		rest, a.PrepaidSendGas, err = takeUint64(rest)
		if err != nil {
			return r, err
		}
		rest, a.AttachedGas, err = takeUint64(rest)
		if err != nil {
			return r, err
		}
		r.Actions = append(r.Actions, a)
	}

	rest, extra, err := takeUvarBytes(rest)
	if err != nil {
		return r, err
	}
	if len(extra) > 0 {
		r.ExtraBytes = extra
	}
	if len(rest) != 0 {
		return r, fmt.Errorf("congestion: decode: %d trailing bytes", len(rest))
	}
	return r, nil
}

func takeByte(data []byte) ([]byte, byte, error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("congestion: decode: truncated (need 1 byte)")
	}
	return data[1:], data[0], nil
}

func takeUint64(data []byte) ([]byte, uint64, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("congestion: decode: truncated (need 8 bytes)")
	}
	return data[8:], binary.BigEndian.Uint64(data[:8]), nil
}

func takeUvarBytes(data []byte) ([]byte, []byte, error) {
	rest, n, err := takeUint64(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("congestion: decode: truncated (need %d bytes, have %d)", n, len(rest))
	}
	return rest[n:], rest[:n], nil
}

func appendUvarBytes(buf, data []byte) []byte {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, data...)
}
