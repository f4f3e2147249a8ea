// Package scheduler implements the release scheduler (component C): it
// converts RTP timestamps into wall-clock deadlines via a segment (the
// running-time <-> media-time mapping supplied by upstream), extends
// 32-bit RTP timestamps across wraparound, and composes this element's own
// latency with a downstream peer's reported latency. Grounded on
// gst_rtp_jitter_buffer_loop's deadline math and gst_segment_to_running_time
// in the original C source, ported to Go idiom.
package scheduler

import (
	"time"

	"github.com/streamwell/rtpjitterbuf/seq"
)

// Segment maps an extended RTP timestamp to a wall-clock running time. It is
// established by the upstream segment event (spec.md §6): BaseTime is the
// running time corresponding to BaseExtTS, and ClockRate is the RTP media
// clock rate in Hz (e.g. 90000 for video, 8000/16000/48000 for common audio
// codecs).
type Segment struct {
	BaseTime  time.Time
	BaseExtTS int64
	ClockRate uint32
}

// ToRunningTime converts extTS to a wall-clock time under this segment.
// ComputeDeadline uses it to compute release deadlines; nothing in this
// module logs its result.
func (s Segment) ToRunningTime(extTS int64) time.Time {
	if s.ClockRate == 0 {
		return s.BaseTime
	}
	deltaUnits := extTS - s.BaseExtTS
	deltaSeconds := float64(deltaUnits) / float64(s.ClockRate)
	return s.BaseTime.Add(time.Duration(deltaSeconds * float64(time.Second)))
}

// ExtendTimestamp unwraps a raw 32-bit RTP timestamp into a monotonically
// meaningful 64-bit extended timestamp, given the extended timestamp last
// computed (whose low 32 bits are assumed to be the last raw timestamp
// seen). It uses seq.DiffTS, the 32-bit analogue of the 16-bit sequence
// wrap-aware difference, so a single wrap between consecutive calls is
// resolved correctly regardless of direction.
func ExtendTimestamp(prevExt int64, rawTS uint32) int64 {
	delta := seq.DiffTS(uint32(prevExt), rawTS)
	return prevExt + delta
}

// DeadlineInput bundles what ComputeDeadline needs to turn one stored
// packet into a release deadline.
type DeadlineInput struct {
	ExtTS   int64
	Segment *Segment // nil if no segment has been received yet
	Latency time.Duration
}

// DeadlineResult is the outcome of ComputeDeadline: either a concrete
// deadline, or Unscheduled, meaning the scheduler cannot yet compute one
// (spec.md §9's "unschedulable wait" - the buffer must wait for cancel or
// shutdown only, not a timer).
type DeadlineResult struct {
	Deadline    time.Time
	Unscheduled bool
}

// ComputeDeadline returns the wall-clock deadline at which the packet
// described by in should be released: its running time (per in.Segment)
// plus the configured latency. If in.Segment is nil, the result is
// Unscheduled.
func ComputeDeadline(in DeadlineInput) DeadlineResult {
	if in.Segment == nil {
		return DeadlineResult{Unscheduled: true}
	}
	rt := in.Segment.ToRunningTime(in.ExtTS)
	return DeadlineResult{Deadline: rt.Add(in.Latency)}
}

// Unbounded is the sentinel Latency.Max value meaning "no upper bound",
// i.e. a peer that reported GST_CLOCK_TIME_NONE for its maximum latency in
// the original.
const Unbounded time.Duration = -1

// Latency is a min/max latency range, as queried from and reported to
// neighbouring elements (spec.md §4.5's latency query).
type Latency struct {
	Min time.Duration
	Max time.Duration // Unbounded if there is no upper bound
}

// ComposeLatency adds this element's own latency contribution to a peer's
// reported latency range, implementing the corrected version of the
// original's max-latency composition: the original doubled the unit
// conversion at `max_latency += our_latency * GST_MSECOND;` after
// our_latency had already been converted to nanoseconds; here ourLatency is
// added exactly once to both Min and Max, with Unbounded absorbing the
// addition (an unbounded peer composed with any further latency is still
// unbounded).
func ComposeLatency(ourLatency time.Duration, peer Latency) Latency {
	result := Latency{Min: peer.Min + ourLatency}
	if peer.Max == Unbounded {
		result.Max = Unbounded
	} else {
		result.Max = peer.Max + ourLatency
	}
	return result
}
