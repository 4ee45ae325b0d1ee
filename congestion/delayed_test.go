package congestion

import (
	"testing"

	"github.com/erigontech/xshard-receipts/triekv"
	"github.com/stretchr/testify/require"
)

func TestDelayedWrapperPushPopAndApply(t *testing.T) {
	tx := triekv.NewMemTx()
	apply := &ApplyState{Config: RuntimeConfig{Fees: FeeConfig{NewActionReceiptExecFee: 10}}}

	w, err := LoadDelayedReceiptQueueWrapper(tx)
	require.NoError(t, err)
	r1 := Receipt{ReceiverAccount: "a", Variant: VariantAction, Actions: []Action{{PrepaidExecGas: 5}}}
	r2 := Receipt{ReceiverAccount: "b", Variant: VariantAction, Actions: []Action{{PrepaidExecGas: 7}}}
	require.NoError(t, w.Push(tx, r1, apply))
	require.NoError(t, w.Push(tx, r2, apply))
	require.Equal(t, uint64(2), w.Len())

	popped, err := w.Pop(tx, apply.Config.Fees)
	require.NoError(t, err)
	require.Equal(t, r1, popped.Receipt)
	require.Equal(t, uint64(1), w.Len())

	info := NewInfo(0)
	require.NoError(t, w.ApplyCongestionChanges(&info))
	// pushed gas: (10+5) + (10+7) = 32; popped gas: 15; net delayed = 17
	require.Equal(t, uint64(17), info.DelayedReceiptsGas.Uint64())
}

func TestDelayedWrapperPopEmptyReturnsNil(t *testing.T) {
	tx := triekv.NewMemTx()
	w, err := LoadDelayedReceiptQueueWrapper(tx)
	require.NoError(t, err)
	popped, err := w.Pop(tx, FeeConfig{})
	require.NoError(t, err)
	require.Nil(t, popped)
}

func TestDelayedWrapperPeekIterDoesNotMutate(t *testing.T) {
	tx := triekv.NewMemTx()
	apply := &ApplyState{Config: RuntimeConfig{Fees: FeeConfig{}}}
	w, err := LoadDelayedReceiptQueueWrapper(tx)
	require.NoError(t, err)
	r := Receipt{ReceiverAccount: "a", Variant: VariantAction}
	require.NoError(t, w.Push(tx, r, apply))

	var seen []StoredReceipt
	require.NoError(t, w.PeekIter(tx, func(s StoredReceipt) error {
		seen = append(seen, s)
		return nil
	}))
	require.Len(t, seen, 1)
	require.Equal(t, uint64(1), w.Len())
}
