package congestion

// BandwidthSchedulerParams is the per-chunk output a separate bandwidth
// scheduler hands the sink; the sink treats it as an opaque black box (see
// spec section 6) beyond the one field it needs to build a basic request.
type BandwidthSchedulerParams struct {
	MaxReceiptSize uint64
}

// BandwidthSchedulerOutput is what ApplyState/the caller threads into
// NewSink when the BandwidthScheduler feature is enabled for this chunk.
type BandwidthSchedulerOutput struct {
	Params BandwidthSchedulerParams
}

// BandwidthRequest summarises, for one destination shard, the size classes
// of receipts this shard wants to send but currently cannot.
type BandwidthRequest struct {
	ToShard        ShardID
	RequestedSizes []uint64
}

// MakeMaxReceiptSizeRequest is the basic request made while a destination's
// outgoing-metadata is not yet fully populated (the legacy-upgrade window):
// requesting just max_receipt_size preserves liveness, since no single
// receipt can exceed it.
func MakeMaxReceiptSizeRequest(to ShardID, params BandwidthSchedulerParams) BandwidthRequest {
	return BandwidthRequest{ToShard: to, RequestedSizes: []uint64{params.MaxReceiptSize}}
}

// MakeFromReceiptSizes builds a proper request from a destination's
// metadata-derived size classes. It returns false if there is nothing to
// request (an empty buffer should never reach here, but callers are
// defensive).
func MakeFromReceiptSizes(to ShardID, sizes []uint64) (BandwidthRequest, bool) {
	if len(sizes) == 0 {
		return BandwidthRequest{}, false
	}
	return BandwidthRequest{ToShard: to, RequestedSizes: sizes}, true
}

// BandwidthRequests is the versioned envelope the sink reports as a chunk
// output. Only V1 exists today; the version tag is kept explicit so a
// future wire format change does not silently reinterpret old requests.
type BandwidthRequests struct {
	V1 []BandwidthRequest
}
