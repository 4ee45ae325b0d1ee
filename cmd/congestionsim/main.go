// Command congestionsim drives a synthetic multi-shard scenario through
// the congestion sink and reports the resulting per-shard congestion
// metrics. It exists to exercise the sink end-to-end outside of a full
// node, the same role cmd/state's exec harness plays for EVM execution.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/xshard-receipts/congestion"
	"github.com/erigontech/xshard-receipts/congestion/outgoingmeta"
	"github.com/erigontech/xshard-receipts/congestionconfig"
	"github.com/erigontech/xshard-receipts/epoch"
	"github.com/erigontech/xshard-receipts/params"
	"github.com/erigontech/xshard-receipts/triekv"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a congestion runtime config YAML file",
	}
	shardsFlag = &cli.UintFlag{
		Name:  "shards",
		Usage: "number of shards to simulate",
		Value: 4,
	}
	receiptsFlag = &cli.UintFlag{
		Name:  "receipts-per-shard",
		Usage: "synthetic receipts generated per shard per chunk",
		Value: 200,
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log per-shard chunk summaries",
	}
	protocolVersionFlag = &cli.UintFlag{
		Name:  "protocol-version",
		Usage: "simulated protocol version, gating CongestionControl/BandwidthScheduler",
		Value: params.BandwidthSchedulerVersion,
	}
)

func main() {
	app := &cli.App{
		Name:   "congestionsim",
		Usage:  "run a synthetic cross-shard congestion scenario",
		Flags:  []cli.Flag{configFlag, shardsFlag, receiptsFlag, verboseFlag, protocolVersionFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("congestionsim failed", "err", err)
		os.Exit(1)
	}
}

type chunkResult struct {
	forwarded    int
	bufferedGas  uint64
	receiptBytes uint64
}

func run(c *cli.Context) error {
	logger := log.Root()
	if c.Bool(verboseFlag.Name) {
		logger.SetHandler(log.LvlFilterHandler(log.LvlDebug, log.StderrHandler))
	}

	runtimeCfg, groups, bwParams, err := loadConfig(c.String(configFlag.Name))
	if err != nil {
		return err
	}

	numShards := uint64(c.Uint(shardsFlag.Name))
	receiptsPerShard := int(c.Uint(receiptsFlag.Name))
	protocolVersion := uint32(c.Uint(protocolVersionFlag.Name))
	layout, err := epoch.NewStaticShardLayout(numShards)
	if err != nil {
		return err
	}
	if !params.BandwidthSchedulerEnabled(protocolVersion) {
		bwParams = nil
	}

	// Every shard owns its own trie; only the prior chunk's CongestionInfo
	// crosses the shard boundary, via OtherShards. All shards read one
	// snapshot taken before any of them runs; the infos map they write back
	// into and the results map are each guarded by their own mutex.
	var infosMu sync.Mutex
	infos := make(map[congestion.ShardID]congestion.Info, numShards)
	for s := uint64(0); s < numShards; s++ {
		infos[congestion.ShardID(s)] = congestion.NewInfo(congestion.ShardID(s))
	}
	snapshotInfos := func() map[congestion.ShardID]congestion.Info {
		infosMu.Lock()
		defer infosMu.Unlock()
		snap := make(map[congestion.ShardID]congestion.Info, len(infos))
		for k, v := range infos {
			snap[k] = v
		}
		return snap
	}
	prior := snapshotInfos()

	var resultsMu sync.Mutex
	results := make(map[congestion.ShardID]chunkResult, numShards)

	var g errgroup.Group
	for s := uint64(0); s < numShards; s++ {
		shard := congestion.ShardID(s)
		g.Go(func() error {
			tx := triekv.NewMemTx()
			if err := params.StampVersion(tx); err != nil {
				return fmt.Errorf("shard %d: %w", shard, err)
			}
			res, newInfo, err := runShardChunk(tx, shard, numShards, receiptsPerShard, protocolVersion, runtimeCfg, groups, bwParams, layout, prior, logger)
			if err != nil {
				return fmt.Errorf("shard %d: %w", shard, err)
			}

			resultsMu.Lock()
			results[shard] = res
			resultsMu.Unlock()

			infosMu.Lock()
			infos[shard] = newInfo
			infosMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for s := uint64(0); s < numShards; s++ {
		shard := congestion.ShardID(s)
		res := results[shard]
		logger.Info("chunk complete", "shard", shard, "forwarded", res.forwarded, "buffered_gas", res.bufferedGas, "receipt_bytes", res.receiptBytes)
	}
	return nil
}

// runShardChunk runs a single shard's single-chunk pass against its own
// in-memory trie.
func runShardChunk(
	tx triekv.RwTx,
	shard congestion.ShardID,
	numShards uint64,
	receiptCount int,
	protocolVersion uint32,
	runtimeCfg congestion.RuntimeConfig,
	groups outgoingmeta.ReceiptGroupsConfig,
	bwParams *congestion.BandwidthSchedulerParams,
	layout *epoch.StaticShardLayout,
	infos map[congestion.ShardID]congestion.Info,
	logger log.Logger,
) (chunkResult, congestion.Info, error) {
	apply := &congestion.ApplyState{
		ProtocolVersion: protocolVersion,
		Config:          runtimeCfg,
		ShardID:         shard,
		EpochID:         "genesis",
		Epoch:           layout,
		OtherShards:     make(map[congestion.ShardID]congestion.PeerCongestion, numShards-1),
	}
	for s := uint64(0); s < numShards; s++ {
		other := congestion.ShardID(s)
		if other == shard {
			continue
		}
		apply.OtherShards[other] = congestion.PeerCongestion{Info: infos[other]}
	}

	congestionAware := params.CongestionControlEnabled(protocolVersion)
	prevInfo := infos[shard]
	var prevInfoPtr *congestion.Info
	if congestionAware {
		prevInfoPtr = &prevInfo
	}
	bandwidthEnabled := params.BandwidthSchedulerEnabled(protocolVersion)
	var bwOut *congestion.BandwidthSchedulerOutput
	if bandwidthEnabled && bwParams != nil {
		bwOut = &congestion.BandwidthSchedulerOutput{Params: *bwParams}
	}

	sink, err := congestion.NewSink(tx, apply, congestionAware, prevInfoPtr, bandwidthEnabled, bwOut, groups, logger)
	if err != nil {
		return chunkResult{}, congestion.Info{}, err
	}

	for i := 0; i < receiptCount; i++ {
		receiver := fmt.Sprintf("account-%d.near", (uint64(i)+uint64(shard)*7919)%(numShards*101))
		r := congestion.Receipt{
			ID:              fmt.Sprintf("shard%d-receipt%d", shard, i),
			ReceiverAccount: receiver,
			Variant:         congestion.VariantAction,
			Actions: []congestion.Action{
				{PrepaidExecGas: 2_000_000, PrepaidSendGas: 100_000},
			},
		}
		if err := sink.ForwardOrBuffer(r); err != nil {
			return chunkResult{}, congestion.Info{}, err
		}
	}
	if err := sink.ForwardFromBuffer(); err != nil {
		return chunkResult{}, congestion.Info{}, err
	}
	if err := sink.Close(); err != nil {
		return chunkResult{}, congestion.Info{}, err
	}

	info, ok := sink.OwnCongestionInfo()
	if !ok {
		info = prevInfo
	}
	return chunkResult{
		forwarded:    len(sink.OutgoingReceipts()),
		bufferedGas:  info.BufferedReceiptsGas.Uint64(),
		receiptBytes: info.ReceiptBytes,
	}, info, nil
}

func loadConfig(path string) (congestion.RuntimeConfig, outgoingmeta.ReceiptGroupsConfig, *congestion.BandwidthSchedulerParams, error) {
	if path == "" {
		defaultBwParams := &congestion.BandwidthSchedulerParams{MaxReceiptSize: 4 * 1024 * 1024}
		return congestion.RuntimeConfig{CongestionControl: congestion.DefaultControlConfig()},
			outgoingmeta.DefaultReceiptGroupsConfig(), defaultBwParams, nil
	}
	f, err := congestionconfig.Load(path)
	if err != nil {
		return congestion.RuntimeConfig{}, outgoingmeta.ReceiptGroupsConfig{}, nil, err
	}
	var bwParams *congestion.BandwidthSchedulerParams
	if p, ok := f.BandwidthSchedulerParams(); ok {
		bwParams = &p
	}
	return f.RuntimeConfig(), f.ReceiptGroupsConfig(), bwParams, nil
}
