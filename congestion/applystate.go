package congestion

// EpochInfoProvider resolves an account to the shard it lives on. Real
// implementations look this up against the epoch's shard layout; callers in
// tests and the simulator use a small deterministic stand-in (see the
// epoch package).
type EpochInfoProvider interface {
	AccountIDToShardID(account string, epochID string) (ShardID, error)
}

// PeerCongestion is what ApplyState knows about one other shard: its last
// published Info and how many chunks in a row it has failed to produce,
// both inputs to the CongestionControl curve.
type PeerCongestion struct {
	Info              Info
	MissedChunksCount uint64
}

// RuntimeConfig carries the protocol-config knobs the sink needs. It stands
// in for the much larger real runtime config (fees, wasm limits, storage
// costs, ...), which is out of scope here.
type RuntimeConfig struct {
	Fees                  FeeConfig
	CongestionControl     ControlConfig
	UseStateStoredReceipt bool
}

// ApplyState bundles the per-chunk context the sink is constructed from:
// which protocol version is active, the runtime config, this shard's own
// id and epoch, and what every other shard last published about its own
// congestion.
type ApplyState struct {
	ProtocolVersion uint32
	Config          RuntimeConfig
	ShardID         ShardID
	EpochID         string
	Epoch           EpochInfoProvider
	OtherShards     map[ShardID]PeerCongestion
}
