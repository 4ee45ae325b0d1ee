package congestion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoredReceiptPlainRecomputes(t *testing.T) {
	fees := FeeConfig{NewActionReceiptExecFee: 100}
	r := Receipt{Variant: VariantAction, Actions: []Action{{PrepaidExecGas: 5}}}
	s := Plain(r)
	require.False(t, s.HasMetadata())
	gas, err := s.Gas(fees)
	require.NoError(t, err)
	require.Equal(t, uint64(105), gas)
}

func TestStoredReceiptWithMetadataUsesPrecomputedValues(t *testing.T) {
	r := Receipt{Variant: VariantAction, Actions: []Action{{PrepaidExecGas: 5}}}
	// Precomputed values deliberately differ from what recomputation would
	// give, so the assertion proves metadata - not recomputation - is used.
	s := WithMetadata(r, 999, 888)
	require.True(t, s.HasMetadata())
	gas, err := s.Gas(FeeConfig{NewActionReceiptExecFee: 1})
	require.NoError(t, err)
	require.Equal(t, uint64(999), gas)
	size, err := s.Size()
	require.NoError(t, err)
	require.Equal(t, uint64(888), size)
}

func TestEncodeDecodeStoredRoundTrip(t *testing.T) {
	r := Receipt{ReceiverAccount: "a", Variant: VariantAction, Actions: []Action{{PrepaidExecGas: 5}}}

	plain := Plain(r)
	encoded, err := EncodeStored(plain)
	require.NoError(t, err)
	decoded, err := DecodeStored(encoded)
	require.NoError(t, err)
	require.False(t, decoded.HasMetadata())
	require.Equal(t, r, decoded.Receipt)

	withMeta := WithMetadata(r, 42, 43)
	encoded, err = EncodeStored(withMeta)
	require.NoError(t, err)
	decoded, err = DecodeStored(encoded)
	require.NoError(t, err)
	require.True(t, decoded.HasMetadata())
	require.Equal(t, uint64(42), decoded.Metadata.CongestionGas)
	require.Equal(t, uint64(43), decoded.Metadata.CongestionSize)
	require.Equal(t, r, decoded.Receipt)
}
