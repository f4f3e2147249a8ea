package rtpjitterbuf

import "github.com/streamwell/rtpjitterbuf/rtp"

// FlowResult reports the coordinator's own acceptance state for a Push
// call, distinct from a hard error: it mirrors the original element's
// GST_FLOW_OK / GST_FLOW_WRONG_STATE / GST_FLOW_UNEXPECTED distinction
// (spec.md's SUPPLEMENTED FEATURES), rather than collapsing "currently
// flushing" and "already at EOS" into one generic error.
type FlowResult int

const (
	// FlowOK means the packet was accepted (inserted, or dropped as a
	// harmless duplicate/late arrival - see Stats for counters).
	FlowOK FlowResult = iota
	// FlowFlushing means the buffer is between FlushStart and FlushStop
	// and is rejecting all data.
	FlowFlushing
	// FlowEOS means SignalEOS was already called; no further data is
	// accepted.
	FlowEOS
)

// Egress is the downstream consumer contract (spec.md §6's egress
// contract): the coordinator's dedicated goroutine calls WritePacket for
// each released packet in sequence order, and WriteEOS exactly once after
// the store has fully drained following SignalEOS.
type Egress interface {
	WritePacket(p rtp.Packet) error
	WriteEOS() error
}
