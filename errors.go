package rtpjitterbuf

import "errors"

// Sentinel errors, matching spec.md §7's error-kind taxonomy: decode and
// not_negotiated are fatal for the one packet that triggered them; flushing
// and eos are state-rejection errors a caller can expect and handle. An
// error returned by Egress.WritePacket is only logged as a warning: it is
// not stored, the egress goroutine keeps releasing packets, and Push does
// not report it.
var (
	// ErrNotNegotiated means a packet's payload type could not be resolved
	// to a clock rate (no resolver configured, or the resolver does not
	// recognise the payload type), so the RTP timestamp cannot be
	// converted to a running time.
	ErrNotNegotiated = errors.New(`rtpjitterbuf: payload type not negotiated`)

	// ErrFlushing means the buffer is currently flushing (between
	// FlushStart and FlushStop) and is rejecting new data.
	ErrFlushing = errors.New(`rtpjitterbuf: buffer is flushing`)

	// ErrEOS means SignalEOS has already been called and the buffer is
	// draining; no further packets are accepted.
	ErrEOS = errors.New(`rtpjitterbuf: end of stream already signalled`)

	// ErrBadSegment means OnSegment was called with a format other than
	// "TIME". Per spec.md §9's recommended resolution (confirmed against
	// the original's goto newseg_wrong_format), the segment is rejected
	// and not propagated in any form.
	ErrBadSegment = errors.New(`rtpjitterbuf: segment format is not TIME`)

	// ErrAlreadyStarted and ErrNotStarted guard the egress goroutine
	// lifecycle against double Start/Stop calls.
	ErrAlreadyStarted = errors.New(`rtpjitterbuf: already started`)
	ErrNotStarted     = errors.New(`rtpjitterbuf: not started`)
)
