package congestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoAddRemoveDelayedGas(t *testing.T) {
	i := NewInfo(3)
	require.NoError(t, i.AddDelayedReceiptGas(100))
	require.NoError(t, i.AddDelayedReceiptGas(50))
	require.Equal(t, uint64(150), i.DelayedReceiptsGas.Uint64())
	require.NoError(t, i.RemoveDelayedReceiptGas(150))
	require.True(t, i.DelayedReceiptsGas.IsZero())
}

func TestInfoRemoveMoreThanPresentIsStorageInconsistent(t *testing.T) {
	i := NewInfo(0)
	err := i.RemoveBufferedReceiptGas(1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStorageInconsistent))
}

func TestInfoReceiptBytesUnderflow(t *testing.T) {
	i := NewInfo(0)
	require.NoError(t, i.AddReceiptBytes(10))
	require.Error(t, i.RemoveReceiptBytes(11))
	require.NoError(t, i.RemoveReceiptBytes(10))
	require.Zero(t, i.ReceiptBytes)
}

func TestNewInfoBootstrapsAllowedShardToOwnShard(t *testing.T) {
	i := NewInfo(42)
	require.Equal(t, ShardID(42), i.AllowedShard)
}
