package congestion

import (
	"encoding/binary"
	"fmt"
)

// Metadata is the precomputed (gas, size) pair a StateStoredReceipt carries
// alongside the receipt so a later reader does not need to recompute
// congestion_gas/size from scratch.
type Metadata struct {
	CongestionGas  uint64
	CongestionSize uint64
}

// StoredReceipt is either a Plain receipt or a receipt WithMetadata,
// mirroring ReceiptOrStateStoredReceipt: when use_state_stored_receipt is
// on, queues persist the metadata so later readers need not recompute it;
// reads consult metadata first when present, otherwise recompute.
type StoredReceipt struct {
	Receipt  Receipt
	Metadata *Metadata
}

// Plain wraps receipt with no precomputed metadata.
func Plain(r Receipt) StoredReceipt {
	return StoredReceipt{Receipt: r}
}

// WithMetadata wraps receipt with precomputed congestion gas/size.
func WithMetadata(r Receipt, gas, size uint64) StoredReceipt {
	return StoredReceipt{Receipt: r, Metadata: &Metadata{CongestionGas: gas, CongestionSize: size}}
}

// Gas returns the receipt's congestion_gas, from metadata when present,
// recomputed otherwise.
func (s StoredReceipt) Gas(fees FeeConfig) (uint64, error) {
	if s.Metadata != nil {
		return s.Metadata.CongestionGas, nil
	}
	return Gas(s.Receipt, fees)
}

// Size returns the receipt's congestion size, from metadata when present,
// recomputed otherwise.
func (s StoredReceipt) Size() (uint64, error) {
	if s.Metadata != nil {
		return s.Metadata.CongestionSize, nil
	}
	return Size(s.Receipt)
}

// HasMetadata reports whether this stored receipt carries precomputed
// metadata, i.e. whether it should participate in outgoing-metadata
// bucket accounting. A buffer may hold a mix of Plain and WithMetadata
// entries across a use_state_stored_receipt protocol upgrade boundary;
// Plain entries are the "legacy residue" the spec's bandwidth-request
// fallback accounts for.
func (s StoredReceipt) HasMetadata() bool {
	return s.Metadata != nil
}

// EncodeStored serialises a StoredReceipt for trie storage: a tag byte
// (0 = Plain, 1 = WithMetadata) followed by the metadata words when
// present, followed by the receipt's own canonical encoding.
func EncodeStored(s StoredReceipt) ([]byte, error) {
	receiptBytes, err := Encode(s.Receipt)
	if err != nil {
		return nil, err
	}
	if s.Metadata == nil {
		return append([]byte{0}, receiptBytes...), nil
	}
	buf := make([]byte, 17, 17+len(receiptBytes))
	buf[0] = 1
	binary.BigEndian.PutUint64(buf[1:9], s.Metadata.CongestionGas)
	binary.BigEndian.PutUint64(buf[9:17], s.Metadata.CongestionSize)
	return append(buf, receiptBytes...), nil
}

// DecodeStored reverses EncodeStored.
func DecodeStored(data []byte) (StoredReceipt, error) {
	if len(data) < 1 {
		return StoredReceipt{}, fmt.Errorf("congestion: decode stored receipt: empty")
	}
	tag := data[0]
	rest := data[1:]
	switch tag {
	case 0:
		r, err := Decode(rest)
		if err != nil {
			return StoredReceipt{}, err
		}
		return Plain(r), nil
	case 1:
		if len(rest) < 16 {
			return StoredReceipt{}, fmt.Errorf("congestion: decode stored receipt: truncated metadata")
		}
		gas := binary.BigEndian.Uint64(rest[0:8])
		size := binary.BigEndian.Uint64(rest[8:16])
		r, err := Decode(rest[16:])
		if err != nil {
			return StoredReceipt{}, err
		}
		return WithMetadata(r, gas, size), nil
	default:
		return StoredReceipt{}, fmt.Errorf("congestion: decode stored receipt: unknown tag %d", tag)
	}
}
