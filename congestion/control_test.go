package congestion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControlNoCongestionGrantsMaxLimits(t *testing.T) {
	cfg := DefaultControlConfig()
	c := NewControl(cfg, NewInfo(9), 0)
	require.Equal(t, cfg.MaxOutgoingGas, c.OutgoingGasLimit(1))
	require.Equal(t, cfg.MaxOutgoingSize, c.OutgoingSizeLimit(1))
}

func TestControlFullCongestionGrantsMinLimits(t *testing.T) {
	cfg := DefaultControlConfig()
	info := NewInfo(9)
	require.NoError(t, info.AddBufferedReceiptGas(cfg.RejectGas))
	c := NewControl(cfg, info, 0)
	require.Equal(t, cfg.MinOutgoingGas, c.OutgoingGasLimit(1))
	require.Equal(t, cfg.MinOutgoingSize, c.OutgoingSizeLimit(1))
}

func TestControlMissedChunksAloneSaturates(t *testing.T) {
	cfg := DefaultControlConfig()
	c := NewControl(cfg, NewInfo(9), cfg.MaxMissedChunks)
	require.Equal(t, cfg.MinOutgoingGas, c.OutgoingGasLimit(1))
}

func TestControlAllowedShardBypassesCongestion(t *testing.T) {
	cfg := DefaultControlConfig()
	info := NewInfo(9)
	require.NoError(t, info.AddBufferedReceiptGas(cfg.RejectGas))
	c := NewControl(cfg, info, cfg.MaxMissedChunks)
	// fromShard == AllowedShard (9) always gets full bandwidth, regardless
	// of how congested the peer otherwise is.
	require.Equal(t, cfg.MaxOutgoingGas, c.OutgoingGasLimit(9))
	require.Equal(t, cfg.MaxOutgoingSize, c.OutgoingSizeLimit(9))
}

func TestControlPartialCongestionInterpolates(t *testing.T) {
	cfg := DefaultControlConfig()
	info := NewInfo(9)
	require.NoError(t, info.AddBufferedReceiptGas(cfg.RejectGas / 2))
	c := NewControl(cfg, info, 0)
	gasLimit := c.OutgoingGasLimit(1)
	require.Greater(t, gasLimit, cfg.MinOutgoingGas)
	require.Less(t, gasLimit, cfg.MaxOutgoingGas)
}
