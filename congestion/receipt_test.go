package congestion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGasActionSumsExecSendAndAttached(t *testing.T) {
	fees := FeeConfig{NewActionReceiptExecFee: 1000}
	r := Receipt{
		Variant: VariantAction,
		Actions: []Action{
			{PrepaidExecGas: 100, PrepaidSendGas: 10, AttachedGas: 5, IsFunctionCall: true},
			{PrepaidExecGas: 200, PrepaidSendGas: 20, AttachedGas: 999, IsFunctionCall: false},
		},
	}
	gas, err := Gas(r, fees)
	require.NoError(t, err)
	// new-action fee + (100+200) exec + (10+20) send + 5 attached (only the function-call action)
	require.Equal(t, uint64(1000+300+30+5), gas)
}

func TestGasNonActionVariantsAreZero(t *testing.T) {
	fees := FeeConfig{NewActionReceiptExecFee: 1000}
	for _, v := range []ReceiptVariant{VariantData, VariantPromiseYield, VariantPromiseResume} {
		gas, err := Gas(Receipt{Variant: v}, fees)
		require.NoError(t, err)
		require.Zero(t, gas)
	}
}

func TestGasOverflowFailsClosed(t *testing.T) {
	fees := FeeConfig{NewActionReceiptExecFee: 1}
	r := Receipt{
		Variant: VariantAction,
		Actions: []Action{
			{PrepaidExecGas: ^uint64(0)},
		},
	}
	_, err := Gas(r, fees)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrIntegerOverflow))
}

func TestSizeMatchesEncodedLength(t *testing.T) {
	r := Receipt{
		ReceiverAccount: "bob.near",
		Variant:         VariantAction,
		Actions:         []Action{{PrepaidExecGas: 1}},
		ExtraBytes:      []byte("hello"),
	}
	size, err := Size(r)
	require.NoError(t, err)
	encoded, err := Encode(r)
	require.NoError(t, err)
	require.Equal(t, uint64(len(encoded)), size)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := Receipt{
		ID:              "r1",
		ReceiverAccount: "alice.near",
		Variant:         VariantAction,
		Actions: []Action{
			{PrepaidExecGas: 7, PrepaidSendGas: 8, AttachedGas: 9, IsFunctionCall: true},
		},
		ExtraBytes: []byte{1, 2, 3},
	}
	encoded, err := Encode(r)
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	// ID is not part of the canonical encoding; it is a local correlation
	// handle, not protocol data.
	decoded.ID = r.ID
	require.Equal(t, r, decoded)
}
