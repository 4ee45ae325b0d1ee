package congestionconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/erigontech/xshard-receipts/congestion/outgoingmeta"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
fees:
  new_action_receipt_exec_fee: 2000000

control:
  reject_gas: 1000
  reject_bytes: 1MB
  max_missed_chunks: 5
  max_outgoing_gas: 900
  min_outgoing_gas: 100
  max_outgoing_size: 4.5MB
  min_outgoing_size: 50KB
  outgoing_receipts_usual_size_limit: 4.5MB

use_state_stored_receipt: true

bandwidth_scheduler:
  enabled: true
  max_receipt_size: 4MB

receipt_group_bounds:
  - 1KB
  - 10KB
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "congestion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadParsesByteSizesAndFlags(t *testing.T) {
	f, err := Load(writeSample(t))
	require.NoError(t, err)

	rc := f.RuntimeConfig()
	require.Equal(t, uint64(2_000_000), rc.Fees.NewActionReceiptExecFee)
	require.True(t, rc.UseStateStoredReceipt)

	cc := f.ControlConfig()
	require.Equal(t, uint64(1024*1024), cc.RejectBytes)
	require.Equal(t, uint64(900), cc.MaxOutgoingGas)
	require.Equal(t, uint64(50*1024), cc.MinOutgoingSize)

	params, ok := f.BandwidthSchedulerParams()
	require.True(t, ok)
	require.Equal(t, uint64(4*1024*1024), params.MaxReceiptSize)

	groups := f.ReceiptGroupsConfig()
	require.Equal(t, []uint64{1024, 10 * 1024}, groups.UpperBounds)
}

func TestBandwidthSchedulerParamsAbsentWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "off.yaml")
	require.NoError(t, os.WriteFile(p, []byte("bandwidth_scheduler:\n  enabled: false\n"), 0o644))
	f, err := Load(p)
	require.NoError(t, err)
	_, ok := f.BandwidthSchedulerParams()
	require.False(t, ok)
}

func TestReceiptGroupsConfigDefaultsWhenUnset(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(p, []byte("fees:\n  new_action_receipt_exec_fee: 0\n"), 0o644))
	f, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, outgoingmeta.DefaultReceiptGroupsConfig().UpperBounds, f.ReceiptGroupsConfig().UpperBounds)
}
