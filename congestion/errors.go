package congestion

import "errors"

// Error taxonomy for the sink. Sentinel errors are wrapped with fmt.Errorf
// and %w throughout the package so callers can classify failures with
// errors.Is without depending on error message text, matching the
// fmt.Errorf("%w: ...")/errors.Is convention used across
// eth/stagedsync/stage_execute.go.
var (
	// ErrIntegerOverflow is raised by checked arithmetic on gas or size.
	// Saturating or wrapping here would change consensus, so every
	// addition on the hot path is checked and fails closed.
	ErrIntegerOverflow = errors.New("congestion: integer overflow")

	// ErrStorageInconsistent marks state that should be provably
	// impossible to reach: an overflow while summing across the
	// persistent queues during bootstrap, or an underflow while removing
	// from CongestionInfo. Either indicates corrupted trie state.
	ErrStorageInconsistent = errors.New("congestion: storage inconsistent")

	// ErrFeatureMismatch is returned by NewSink when the caller's
	// arguments contradict the protocol-version feature gate (see
	// section 4.7 of the spec): a previous own CongestionInfo must be
	// supplied if and only if CongestionControl is enabled for the given
	// protocol version.
	ErrFeatureMismatch = errors.New("congestion: feature gate mismatch")

	// ErrBandwidthSchedulerParamsMissing is a programmer error: the
	// bandwidth scheduler feature was enabled but the caller did not
	// supply scheduler output for this chunk.
	ErrBandwidthSchedulerParamsMissing = errors.New("congestion: bandwidth scheduler enabled but no params supplied")
)
