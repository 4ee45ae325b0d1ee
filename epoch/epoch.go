// Package epoch provides a deterministic stand-in for the protocol's real
// epoch manager, good enough for tests and the simulator: it maps an
// account id to a shard by a stable hash modulo the shard count, the same
// "good enough for now" approach the devnet tooling under cmd/devnet takes
// for account assignment.
package epoch

import (
	"fmt"
	"hash/fnv"

	"github.com/erigontech/xshard-receipts/congestion"
)

// StaticShardLayout assigns accounts to shards by hashing the account id,
// ignoring epoch id entirely: the layout never changes across epochs. Real
// shard layouts are versioned per epoch and reshape over time; that is out
// of scope here (see Non-goals in SPEC_FULL.md).
type StaticShardLayout struct {
	NumShards uint64
}

// NewStaticShardLayout returns a layout over numShards shards; numShards
// must be at least 1.
func NewStaticShardLayout(numShards uint64) (*StaticShardLayout, error) {
	if numShards == 0 {
		return nil, fmt.Errorf("epoch: numShards must be at least 1")
	}
	return &StaticShardLayout{NumShards: numShards}, nil
}

// AccountIDToShardID implements congestion.EpochInfoProvider.
func (l *StaticShardLayout) AccountIDToShardID(account string, _ string) (congestion.ShardID, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(account))
	return congestion.ShardID(h.Sum64() % l.NumShards), nil
}

var _ congestion.EpochInfoProvider = (*StaticShardLayout)(nil)
