package outgoingmeta

import (
	"testing"

	"github.com/erigontech/xshard-receipts/triekv"
	"github.com/stretchr/testify/require"
)

func TestMetadataTracksTotalReceipts(t *testing.T) {
	m := New(DefaultReceiptGroupsConfig())
	require.Equal(t, uint64(0), m.TotalReceipts())
	m.OnPush(100, 5)
	m.OnPush(20_000, 7)
	require.Equal(t, uint64(2), m.TotalReceipts())
	require.NoError(t, m.OnPop(100, 5))
	require.Equal(t, uint64(1), m.TotalReceipts())
}

func TestMetadataPopFromEmptyBucketErrors(t *testing.T) {
	m := New(DefaultReceiptGroupsConfig())
	err := m.OnPop(100, 5)
	require.Error(t, err)
}

func TestMetadataGroupSizesAreAscendingBucketBounds(t *testing.T) {
	cfg := ReceiptGroupsConfig{UpperBounds: []uint64{100, 1000}}
	m := New(cfg)
	m.OnPush(2000, 1) // falls in the open-ended last bucket
	m.OnPush(50, 1)   // falls in the first bucket
	sizes := m.GroupSizes()
	require.Equal(t, []uint64{100, 2000}, sizes)
}

func TestMetadataEncodeDecodeRoundTrip(t *testing.T) {
	cfg := DefaultReceiptGroupsConfig()
	m := New(cfg)
	m.OnPush(500, 11)
	m.OnPush(50_000, 22)

	tx := triekv.NewMemTx()
	require.NoError(t, m.Persist(tx, "meta", []byte("shard-1")))

	loaded, err := Load(tx, "meta", []byte("shard-1"), cfg)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, m.TotalReceipts(), loaded.TotalReceipts())
	require.Equal(t, m.GroupSizes(), loaded.GroupSizes())
}

func TestMetadataLoadMissingReturnsNilNotReady(t *testing.T) {
	tx := triekv.NewMemTx()
	loaded, err := Load(tx, "meta", []byte("nope"), DefaultReceiptGroupsConfig())
	require.NoError(t, err)
	require.Nil(t, loaded)
	require.Zero(t, loaded.TotalReceipts())
	require.Nil(t, loaded.GroupSizes())
}
