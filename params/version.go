/*
   Copyright 2021 Erigon contributors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package params holds protocol version constants and the feature-gate
// rules derived from them: at which protocol version CongestionControl and
// BandwidthScheduler turn on.
package params

import (
	"fmt"

	"github.com/erigontech/xshard-receipts/triekv"
)

// see https://calver.org
const (
	VersionMajor    = 0  // Major version component of the current release
	VersionMinor    = 1  // Minor version component of the current release
	VersionMicro    = 0  // Patch version component of the current release
	VersionModifier = "" // Modifier component of the current release
)

// Protocol versions at which each congestion-related feature activates.
// A protocol version at or above CongestionControlVersion runs the
// congestion-aware sink; below it, the legacy always-forward sink is used.
const (
	CongestionControlVersion = 1
	BandwidthSchedulerVersion = 2
)

// CongestionControlEnabled reports whether protocolVersion runs the
// congestion-aware sink.
func CongestionControlEnabled(protocolVersion uint32) bool {
	return protocolVersion >= CongestionControlVersion
}

// BandwidthSchedulerEnabled reports whether protocolVersion runs the
// bandwidth-request synthesiser.
func BandwidthSchedulerEnabled(protocolVersion uint32) bool {
	return protocolVersion >= BandwidthSchedulerVersion
}

// Version holds the textual version string.
var Version = func() string {
	return fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionMicro)
}()

// VersionWithMeta holds the textual version string including the metadata.
var VersionWithMeta = func() string {
	v := Version
	if VersionModifier != "" {
		v += "-" + VersionModifier
	}
	return v
}()

// versionTable and versionKey mark which binary version last wrote a given
// shard's trie, the same one-time stamping idea as erigon's own
// SetErigonVersion, adapted from kv.RwTx/kv.DatabaseInfo to this module's
// own triekv.RwTx.
const (
	versionTable = "DatabaseInfo"
)

var versionKey = []byte("xshard-receipts-version")

// StampVersion records VersionWithMeta against tx exactly once; subsequent
// calls against an already-stamped trie are no-ops.
func StampVersion(tx triekv.RwTx) error {
	has, err := tx.Has(versionTable, versionKey)
	if err != nil {
		return fmt.Errorf("params: check version stamp: %w", err)
	}
	if has {
		return nil
	}
	if err := tx.Put(versionTable, versionKey, []byte(VersionWithMeta)); err != nil {
		return fmt.Errorf("params: stamp version: %w", err)
	}
	return nil
}
