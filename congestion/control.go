package congestion

import "github.com/holiman/uint256"

// ControlConfig parameterises the backpressure curve: at what memory usage
// congestion begins and saturates, how many missed chunks before a peer is
// treated as fully congested on that basis alone, and the outgoing gas/size
// bounds a sender may use toward a peer at congestion level 0 and level 1.
//
// This lives entirely in its own file with its own tests; ReceiptSink only
// ever calls OutgoingGasLimit/OutgoingSizeLimit and treats the curve as a
// black box, matching section 6 of the spec ("CongestionControl policy...
// the sink treats them as black boxes").
type ControlConfig struct {
	RejectGas   uint64
	RejectBytes uint64

	MaxMissedChunks uint64

	MaxOutgoingGas  uint64
	MinOutgoingGas  uint64
	MaxOutgoingSize uint64
	MinOutgoingSize uint64

	OutgoingReceiptsUsualSizeLimit uint64
}

// DefaultControlConfig returns parameters in the same ballpark as the
// protocol's own MVP defaults: a few hundred Tgas of buffer headroom before
// backpressure kicks in, fully saturated by a few missed chunks.
func DefaultControlConfig() ControlConfig {
	const tgas = 1_000_000_000_000
	return ControlConfig{
		RejectGas:                      500 * tgas,
		RejectBytes:                    250_000_000,
		MaxMissedChunks:                5,
		MaxOutgoingGas:                 300 * tgas,
		MinOutgoingGas:                 1 * tgas,
		MaxOutgoingSize:                4_500_000,
		MinOutgoingSize:                ReceiptSizeUsualLimitFloor,
		OutgoingReceiptsUsualSizeLimit: 4_500_000,
	}
}

// ReceiptSizeUsualLimitFloor is the smallest size limit the curve will ever
// produce; it must stay above any single receipt's expected size or a fully
// congested peer could starve forever.
const ReceiptSizeUsualLimitFloor = 50_000

// Control evaluates the backpressure curve for one peer shard, given that
// peer's last-published Info and how many chunks in a row it has failed to
// produce (missedChunksCount in the spec's ApplyState mapping).
type Control struct {
	cfg          ControlConfig
	info         Info
	missedChunks uint64
}

// NewControl binds a peer's advertised congestion state to a policy
// configuration.
func NewControl(cfg ControlConfig, info Info, missedChunksCount uint64) *Control {
	return &Control{cfg: cfg, info: info, missedChunks: missedChunksCount}
}

// level returns the peer's congestion level in [0, 1], the max of a
// memory-pressure ramp (buffered+delayed gas and bytes, whichever is
// further along) and a missed-chunks ramp.
func (c *Control) level() float64 {
	gasTotal := c.info.BufferedReceiptsGas
	gasTotal.Add(&gasTotal, &c.info.DelayedReceiptsGas)

	gasLevel := 0.0
	if c.cfg.RejectGas > 0 {
		gasLevel = ratio(saturatingUint64(&gasTotal), c.cfg.RejectGas)
	}
	bytesLevel := 0.0
	if c.cfg.RejectBytes > 0 {
		bytesLevel = ratio(c.info.ReceiptBytes, c.cfg.RejectBytes)
	}
	missedLevel := 0.0
	if c.cfg.MaxMissedChunks > 0 {
		missedLevel = ratio(c.missedChunks, c.cfg.MaxMissedChunks)
	}

	level := gasLevel
	if bytesLevel > level {
		level = bytesLevel
	}
	if missedLevel > level {
		level = missedLevel
	}
	return level
}

// saturatingUint64 clamps a uint256 accumulator to u64 range so it can be
// compared against the u64-denominated reject threshold; the curve only
// needs to know "at or past the threshold", so saturating rather than
// erroring here is correct.
func saturatingUint64(v *uint256.Int) uint64 {
	if v.IsUint64() {
		return v.Uint64()
	}
	return ^uint64(0)
}

func ratio(value, max uint64) float64 {
	if value >= max {
		return 1
	}
	return float64(value) / float64(max)
}

func lerpDown(max, min uint64, level float64) uint64 {
	if level <= 0 {
		return max
	}
	if level >= 1 {
		return min
	}
	span := float64(max-min) * (1 - level)
	return min + uint64(span)
}

// OutgoingGasLimit is the gas budget a sender toward this peer may spend in
// one chunk. The peer's own allowed_shard is always granted the max
// regardless of congestion level: allowed_shard exists precisely so a
// congested shard can still guarantee throughput to the one shard it has
// chosen to prioritise draining toward.
func (c *Control) OutgoingGasLimit(fromShard ShardID) uint64 {
	if fromShard == c.info.AllowedShard {
		return c.cfg.MaxOutgoingGas
	}
	return lerpDown(c.cfg.MaxOutgoingGas, c.cfg.MinOutgoingGas, c.level())
}

// OutgoingSizeLimit is the byte budget a sender toward this peer may spend
// in one chunk. Same allowed_shard exception as OutgoingGasLimit.
func (c *Control) OutgoingSizeLimit(fromShard ShardID) uint64 {
	if fromShard == c.info.AllowedShard {
		return c.cfg.MaxOutgoingSize
	}
	return lerpDown(c.cfg.MaxOutgoingSize, c.cfg.MinOutgoingSize, c.level())
}
