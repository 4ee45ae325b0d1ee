// Package congestionconfig loads the runtime-config knobs the congestion
// sink needs from a YAML file, the way erigon loads its own config structs
// (e.g. eth/ethconfig) but kept to the fields this module actually uses.
package congestionconfig

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/erigontech/xshard-receipts/congestion"
	"github.com/erigontech/xshard-receipts/congestion/outgoingmeta"
)

// File is the on-disk shape of a congestion runtime config. Byte-size
// fields are expressed with datasize.ByteSize so a config file can say
// "4.5MB" instead of a raw integer, the same convention
// eth/ethconfig.Config uses for its BatchSize field.
type File struct {
	Fees struct {
		NewActionReceiptExecFee uint64 `yaml:"new_action_receipt_exec_fee"`
	} `yaml:"fees"`

	Control struct {
		RejectGas                     uint64            `yaml:"reject_gas"`
		RejectBytes                   datasize.ByteSize  `yaml:"reject_bytes"`
		MaxMissedChunks                uint64            `yaml:"max_missed_chunks"`
		MaxOutgoingGas                 uint64            `yaml:"max_outgoing_gas"`
		MinOutgoingGas                 uint64            `yaml:"min_outgoing_gas"`
		MaxOutgoingSize                datasize.ByteSize  `yaml:"max_outgoing_size"`
		MinOutgoingSize                datasize.ByteSize  `yaml:"min_outgoing_size"`
		OutgoingReceiptsUsualSizeLimit datasize.ByteSize  `yaml:"outgoing_receipts_usual_size_limit"`
	} `yaml:"control"`

	UseStateStoredReceipt bool `yaml:"use_state_stored_receipt"`

	BandwidthScheduler struct {
		Enabled        bool              `yaml:"enabled"`
		MaxReceiptSize datasize.ByteSize `yaml:"max_receipt_size"`
	} `yaml:"bandwidth_scheduler"`

	ReceiptGroupBounds []datasize.ByteSize `yaml:"receipt_group_bounds"`
}

// Load reads and parses a congestion runtime config file.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("congestionconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("congestionconfig: parse %s: %w", path, err)
	}
	return f, nil
}

// RuntimeConfig converts the parsed file into the congestion package's
// RuntimeConfig.
func (f File) RuntimeConfig() congestion.RuntimeConfig {
	return congestion.RuntimeConfig{
		Fees:                  congestion.FeeConfig{NewActionReceiptExecFee: f.Fees.NewActionReceiptExecFee},
		CongestionControl:     f.ControlConfig(),
		UseStateStoredReceipt: f.UseStateStoredReceipt,
	}
}

// ControlConfig converts the parsed file's control section into the
// congestion package's ControlConfig.
func (f File) ControlConfig() congestion.ControlConfig {
	return congestion.ControlConfig{
		RejectGas:                      f.Control.RejectGas,
		RejectBytes:                    uint64(f.Control.RejectBytes),
		MaxMissedChunks:                f.Control.MaxMissedChunks,
		MaxOutgoingGas:                 f.Control.MaxOutgoingGas,
		MinOutgoingGas:                 f.Control.MinOutgoingGas,
		MaxOutgoingSize:                uint64(f.Control.MaxOutgoingSize),
		MinOutgoingSize:                uint64(f.Control.MinOutgoingSize),
		OutgoingReceiptsUsualSizeLimit: uint64(f.Control.OutgoingReceiptsUsualSizeLimit),
	}
}

// BandwidthSchedulerParams converts the parsed file's bandwidth-scheduler
// section, returning ok == false when the feature is disabled.
func (f File) BandwidthSchedulerParams() (congestion.BandwidthSchedulerParams, bool) {
	if !f.BandwidthScheduler.Enabled {
		return congestion.BandwidthSchedulerParams{}, false
	}
	return congestion.BandwidthSchedulerParams{MaxReceiptSize: uint64(f.BandwidthScheduler.MaxReceiptSize)}, true
}

// ReceiptGroupsConfig converts the parsed bucket bounds, or the package
// default if none were configured.
func (f File) ReceiptGroupsConfig() outgoingmeta.ReceiptGroupsConfig {
	if len(f.ReceiptGroupBounds) == 0 {
		return outgoingmeta.DefaultReceiptGroupsConfig()
	}
	bounds := make([]uint64, len(f.ReceiptGroupBounds))
	for i, b := range f.ReceiptGroupBounds {
		bounds[i] = uint64(b)
	}
	return outgoingmeta.ReceiptGroupsConfig{UpperBounds: bounds}
}
