package congestion

import (
	"fmt"
	"sort"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/erigontech/xshard-receipts/congestion/outgoingmeta"
	"github.com/erigontech/xshard-receipts/triekv"
)

// OutgoingBufferTable and OutgoingMetaTable are the trie columns used for
// every destination shard's buffer and metadata; entries are namespaced by
// destination within the column (see outgoingBufferMetaKey).
const (
	OutgoingBufferTable     = "OutgoingBuffer"
	OutgoingBufferMetaTable = "OutgoingBufferMeta"
	OutgoingMetaTable       = "OutgoingMetadata"
)

// OutgoingLimit is the remaining gas/size budget toward one destination for
// the rest of the current chunk. A nil Gas (represented here as the
// unbounded sentinel) means "no gas ceiling", used for the same-shard
// destination.
type OutgoingLimit struct {
	Gas       uint64
	Size      uint64
	Unbounded bool
}

func unboundedLimit(size uint64) OutgoingLimit {
	return OutgoingLimit{Unbounded: true, Size: size}
}

// fits reports whether a receipt of the given (gas, size) still fits this
// limit, using the spec's strict inequality: equality counts as "does not
// fit" so the limit can never go negative.
func (l OutgoingLimit) fits(gas, size uint64) bool {
	if l.Size <= size {
		return false
	}
	if l.Unbounded {
		return true
	}
	return l.Gas > gas
}

func (l *OutgoingLimit) deduct(gas, size uint64) {
	l.Size -= size
	if !l.Unbounded {
		l.Gas -= gas
	}
}

func outgoingBufferMetaKey(shard ShardID) []byte {
	return []byte(fmt.Sprintf("shard-%020d", uint64(shard)))
}

// drainState is the per-destination, per-chunk state machine from section
// 4.7: once a receipt toward a destination fails to fit, that destination
// stops forwarding for the remainder of the chunk, whether the receipt came
// from the buffer or was newly produced.
type drainState struct {
	saturated bool
}

// Sink is the per-chunk ReceiptSink façade. A legacy-mode Sink has
// congestionAware == false and never touches a trie; congestion-aware mode
// is the variant described throughout section 4.
//
// Grounded on the way eth/stagedsync/stage_execute.go builds one stage
// value per block and consumes it for its outputs at the end: construct,
// feed, extract.
type Sink struct {
	congestionAware  bool
	bandwidthEnabled bool
	logger           log.Logger

	tx      triekv.RwTx
	apply   *ApplyState
	groups  outgoingmeta.ReceiptGroupsConfig
	bwOut   *BandwidthSchedulerOutput

	ownShard ShardID
	info     Info
	delayed  *DelayedReceiptQueueWrapper

	outgoingReceipts []Receipt
	limits           map[ShardID]*OutgoingLimit
	drains           map[ShardID]*drainState
	metaCache        map[ShardID]*outgoingmeta.Metadata
	bufCache         map[ShardID]*triekv.Queue
}

// NewSink constructs a Sink for one chunk. prevOwnInfo must be non-nil if
// and only if apply.Config has the congestion-control feature enabled for
// apply.ProtocolVersion (congestionEnabled); violating the biconditional is
// a feature-gate error, not a panic, because it can be reached by a
// misconfigured caller rather than only a programming bug.
//
// bandwidthEnabled must reflect the BandwidthScheduler feature gate for
// apply.ProtocolVersion independently of whether bwOut happens to be
// non-nil: if the feature is enabled, the caller is required to supply
// bwOut, and failing to do so is a programmer error
// (ErrBandwidthSchedulerParamsMissing), not silently treated as "feature
// off".
func NewSink(tx triekv.RwTx, apply *ApplyState, congestionEnabled bool, prevOwnInfo *Info, bandwidthEnabled bool, bwOut *BandwidthSchedulerOutput, groups outgoingmeta.ReceiptGroupsConfig, logger log.Logger) (*Sink, error) {
	if congestionEnabled != (prevOwnInfo != nil) {
		return nil, fmt.Errorf("%w: congestionEnabled=%v but prevOwnInfo present=%v", ErrFeatureMismatch, congestionEnabled, prevOwnInfo != nil)
	}
	if bandwidthEnabled && bwOut == nil {
		return nil, fmt.Errorf("%w: bandwidthEnabled=true", ErrBandwidthSchedulerParamsMissing)
	}
	if logger == nil {
		logger = log.Root()
	}

	s := &Sink{
		congestionAware:  congestionEnabled,
		bandwidthEnabled: bandwidthEnabled,
		logger:           logger,
		tx:               tx,
		apply:            apply,
		groups:           groups,
		bwOut:            bwOut,
		ownShard:         apply.ShardID,
		limits:           make(map[ShardID]*OutgoingLimit),
		drains:           make(map[ShardID]*drainState),
		metaCache:        make(map[ShardID]*outgoingmeta.Metadata),
		bufCache:         make(map[ShardID]*triekv.Queue),
	}
	if !congestionEnabled {
		return s, nil
	}

	s.info = *prevOwnInfo
	delayed, err := LoadDelayedReceiptQueueWrapper(tx)
	if err != nil {
		return nil, err
	}
	s.delayed = delayed
	return s, nil
}

func (s *Sink) buffer(to ShardID) (*triekv.Queue, error) {
	if q, ok := s.bufCache[to]; ok {
		return q, nil
	}
	key := outgoingBufferMetaKey(to)
	q, err := triekv.Load(s.tx, OutgoingBufferTable, OutgoingBufferMetaTable, key)
	if err != nil {
		return nil, fmt.Errorf("congestion: load outgoing buffer for shard %d: %w", to, err)
	}
	s.bufCache[to] = q
	return q, nil
}

func (s *Sink) metadata(to ShardID) (*outgoingmeta.Metadata, error) {
	if m, ok := s.metaCache[to]; ok {
		return m, nil
	}
	m, err := outgoingmeta.Load(s.tx, OutgoingMetaTable, outgoingBufferMetaKey(to), s.groups)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = outgoingmeta.New(s.groups)
	}
	s.metaCache[to] = m
	return m, nil
}

func (s *Sink) limitFor(to ShardID) *OutgoingLimit {
	if l, ok := s.limits[to]; ok {
		return l
	}
	var l OutgoingLimit
	if to == s.ownShard {
		l = unboundedLimit(s.apply.Config.CongestionControl.MaxOutgoingSize)
	} else if peer, ok := s.apply.OtherShards[to]; ok {
		ctrl := NewControl(s.apply.Config.CongestionControl, peer.Info, peer.MissedChunksCount)
		l = OutgoingLimit{Gas: ctrl.OutgoingGasLimit(s.ownShard), Size: ctrl.OutgoingSizeLimit(s.ownShard)}
	} else {
		l = unboundedLimit(s.apply.Config.CongestionControl.OutgoingReceiptsUsualSizeLimit)
	}
	s.limits[to] = &l
	return &l
}

func (s *Sink) drainStateFor(to ShardID) *drainState {
	d, ok := s.drains[to]
	if !ok {
		d = &drainState{}
		s.drains[to] = d
	}
	return d
}

// ForwardOrBuffer is forward_or_buffer_receipt from section 4.2. In legacy
// mode it always forwards. In congestion-aware mode it resolves the
// destination, prices the receipt, and either forwards it (deducting the
// destination's remaining limit) or buffers it (updating CongestionInfo and
// metadata). A receipt whose gas overflows leaves all sink state untouched:
// the error is returned before any mutation happens (scenario S6).
func (s *Sink) ForwardOrBuffer(receipt Receipt) error {
	if !s.congestionAware {
		s.outgoingReceipts = append(s.outgoingReceipts, receipt)
		return nil
	}

	to, err := s.apply.Epoch.AccountIDToShardID(receipt.ReceiverAccount, s.apply.EpochID)
	if err != nil {
		return fmt.Errorf("congestion: resolve destination shard: %w", err)
	}

	gas, err := Gas(receipt, s.apply.Config.Fees)
	if err != nil {
		return err
	}
	size, err := Size(receipt)
	if err != nil {
		return err
	}

	ds := s.drainStateFor(to)
	limit := s.limitFor(to)
	if !ds.saturated && limit.fits(gas, size) {
		limit.deduct(gas, size)
		s.outgoingReceipts = append(s.outgoingReceipts, receipt)
		return nil
	}
	ds.saturated = true

	stored := Plain(receipt)
	if s.apply.Config.UseStateStoredReceipt {
		stored = WithMetadata(receipt, gas, size)
	}
	encoded, err := EncodeStored(stored)
	if err != nil {
		return fmt.Errorf("congestion: encode buffered receipt: %w", err)
	}

	buf, err := s.buffer(to)
	if err != nil {
		return err
	}
	if err := buf.PushBack(s.tx, encoded); err != nil {
		return fmt.Errorf("congestion: push outgoing buffer for shard %d: %w", to, err)
	}
	if err := s.info.AddBufferedReceiptGas(gas); err != nil {
		return err
	}
	if err := s.info.AddReceiptBytes(size); err != nil {
		return err
	}
	if stored.HasMetadata() {
		m, err := s.metadata(to)
		if err != nil {
			return err
		}
		m.OnPush(size, gas)
	}
	return nil
}

// ForwardFromBuffer is forward_from_buffer from section 4.3: it walks every
// destination's buffer head-to-tail without mutating it, stops at the
// first receipt that does not fit (head-of-line blocking), then applies
// the deferred pop once per destination. Destinations are visited in
// ascending shard id for reproducibility.
func (s *Sink) ForwardFromBuffer() error {
	if !s.congestionAware {
		return nil
	}
	for _, to := range s.bufferedDestinations() {
		if err := s.drainOne(to); err != nil {
			return err
		}
	}
	return nil
}

// bufferedDestinations returns every destination this chunk has an
// OutgoingLimit for (own shard included, once limitFor has been called for
// it) or a peer Info for. A same-shard buffer left over from a prior chunk
// that no receipt this chunk routed through limitFor(ownShard) is not
// visited by a ForwardFromBuffer call made before any ForwardOrBuffer call;
// it drains on the next chunk that does touch the own-shard limit.
func (s *Sink) bufferedDestinations() []ShardID {
	seen := make(map[ShardID]struct{})
	for to := range s.limits {
		seen[to] = struct{}{}
	}
	for to := range s.apply.OtherShards {
		seen[to] = struct{}{}
	}
	out := make([]ShardID, 0, len(seen))
	for to := range seen {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Sink) drainOne(to ShardID) error {
	ds := s.drainStateFor(to)
	if ds.saturated {
		return nil
	}
	buf, err := s.buffer(to)
	if err != nil {
		return err
	}
	if buf.Len() == 0 {
		return nil
	}
	limit := s.limitFor(to)

	type popped struct {
		gas, size   uint64
		hadMetadata bool
	}
	var toPop []popped
	var forwarded []Receipt

	err = buf.Iter(s.tx, func(raw []byte) error {
		stored, err := DecodeStored(raw)
		if err != nil {
			return fmt.Errorf("congestion: decode buffered receipt for shard %d: %w", to, err)
		}
		gas, err := stored.Gas(s.apply.Config.Fees)
		if err != nil {
			return err
		}
		size, err := stored.Size()
		if err != nil {
			return err
		}
		if !limit.fits(gas, size) {
			return errStopIteration
		}
		limit.deduct(gas, size)
		forwarded = append(forwarded, stored.Receipt)
		toPop = append(toPop, popped{gas: gas, size: size, hadMetadata: stored.HasMetadata()})
		return nil
	})
	if err != nil && err != errStopIteration {
		return err
	}
	if len(forwarded) < int(buf.Len()) {
		ds.saturated = true
	}

	if len(toPop) == 0 {
		return nil
	}
	if err := buf.PopFrontN(s.tx, uint64(len(toPop))); err != nil {
		return fmt.Errorf("congestion: drain pop for shard %d: %w", to, err)
	}
	var meta *outgoingmeta.Metadata
	for _, p := range toPop {
		if err := s.info.RemoveBufferedReceiptGas(p.gas); err != nil {
			return err
		}
		if err := s.info.RemoveReceiptBytes(p.size); err != nil {
			return err
		}
		if p.hadMetadata {
			if meta == nil {
				meta, err = s.metadata(to)
				if err != nil {
					return err
				}
			}
			if err := meta.OnPop(p.size, p.gas); err != nil {
				return fmt.Errorf("congestion: metadata pop for shard %d: %w", to, err)
			}
		}
	}
	s.outgoingReceipts = append(s.outgoingReceipts, forwarded...)
	return nil
}

var errStopIteration = fmt.Errorf("congestion: stop iteration")

// OutgoingReceipts returns the receipts accumulated for this chunk, in
// combined forward/drain order.
func (s *Sink) OutgoingReceipts() []Receipt {
	return s.outgoingReceipts
}

// OwnCongestionInfo returns the sink's updated CongestionInfo, or false in
// legacy mode where no congestion info is produced.
func (s *Sink) OwnCongestionInfo() (Info, bool) {
	if !s.congestionAware {
		return Info{}, false
	}
	return s.info, true
}

// Close applies the delayed wrapper's accumulated deltas and persists every
// destination's working metadata copy. It must be called exactly once, at
// chunk end, after all ForwardOrBuffer/ForwardFromBuffer calls.
func (s *Sink) Close() error {
	if !s.congestionAware {
		return nil
	}
	if s.delayed != nil {
		if err := s.delayed.ApplyCongestionChanges(&s.info); err != nil {
			return err
		}
	}
	for to, m := range s.metaCache {
		if err := m.Persist(s.tx, OutgoingMetaTable, outgoingBufferMetaKey(to)); err != nil {
			return fmt.Errorf("congestion: persist metadata for shard %d: %w", to, err)
		}
	}
	s.logger.Debug("congestion sink closed", "shard", s.ownShard, "forwarded", len(s.outgoingReceipts))
	return nil
}

// GenerateBandwidthRequests is the synthesiser from section 4.6. It is a
// no-op (returns ok == false) when the bandwidth-scheduler feature is off
// for this chunk. bwOut == nil while the feature is enabled was already
// rejected by NewSink, so reaching here with bandwidthEnabled true implies
// bwOut is non-nil.
func (s *Sink) GenerateBandwidthRequests() (BandwidthRequests, bool, error) {
	if !s.congestionAware || !s.bandwidthEnabled {
		return BandwidthRequests{}, false, nil
	}
	var reqs []BandwidthRequest
	for _, to := range s.bufferedDestinations() {
		buf, err := s.buffer(to)
		if err != nil {
			return BandwidthRequests{}, false, err
		}
		bufLen := buf.Len()
		if bufLen == 0 {
			continue
		}
		meta, err := s.metadata(to)
		if err != nil {
			return BandwidthRequests{}, false, err
		}
		if meta != nil && meta.TotalReceipts() == bufLen {
			if req, ok := MakeFromReceiptSizes(to, meta.GroupSizes()); ok {
				reqs = append(reqs, req)
				continue
			}
		}
		reqs = append(reqs, MakeMaxReceiptSizeRequest(to, s.bwOut.Params))
	}
	return BandwidthRequests{V1: reqs}, true, nil
}
