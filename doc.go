// Package rtpjitterbuf implements a real-time jitter buffer for RTP packet
// streams: it absorbs network-induced reordering and arrival-time variance,
// then releases packets to a downstream consumer at their scheduled
// presentation times, at most once each, in strictly ascending sequence
// order. It intentionally introduces a bounded, configurable latency so
// that late-arriving but still-usable packets can be reinserted into their
// correct position before release.
//
// The ordered packet store (package store), release scheduler (package
// scheduler), and this package's Buffer coordinator work together under a
// single mutex: Push (the ingress path) and the dedicated egress goroutine
// started by Start never touch the store, segment, or counters without
// holding it, matching the single-suspension-point design used throughout
// this module's concurrency primitives.
package rtpjitterbuf
