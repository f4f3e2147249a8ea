package rtpjitterbuf

import (
	"sync"
	"time"

	"github.com/streamwell/rtpjitterbuf/format"
	"github.com/streamwell/rtpjitterbuf/internal/clockwait"
	"github.com/streamwell/rtpjitterbuf/internal/logging"
	"github.com/streamwell/rtpjitterbuf/rtp"
	"github.com/streamwell/rtpjitterbuf/scheduler"
	"github.com/streamwell/rtpjitterbuf/store"
)

// Config configures a Buffer. The zero value is valid: Latency defaults to
// 200ms, Resolver defaults to format.DefaultStaticTable(), and Logger
// defaults to a no-op, matching microbatch.NewBatcher's nil-safe
// *BatcherConfig pattern - every field has a documented default applied in
// New, nothing panics on a zero Config.
type Config struct {
	// Latency is the target buffering latency: packets are released
	// Latency after their computed running time. Defaults to 200ms.
	Latency time.Duration

	// Resolver maps a payload type to its clock rate. Defaults to
	// format.DefaultStaticTable().
	Resolver format.Resolver

	// Logger receives structured warnings for every drop (too-late,
	// duplicate, drop-on-latency eviction), for a rejected non-TIME segment
	// and for a packet that downstream rejects. No debug-level traces of
	// deadline scheduling are emitted. A nil Logger is a no-op.
	Logger *logging.Logger

	// InitialCapacity hints the ordered store's initial backing capacity.
	// Defaults to 16.

	InitialCapacity int

	// DropOnLatency enables evicting the oldest buffered packet whenever the
	// store's timestamp span reaches Latency. Defaults to false: by
	// default the buffer simply accumulates up to Latency worth of media
	// before releasing, which is the whole point of buffering it.
	DropOnLatency bool

	// TsOffsetNs is added to every released packet's RTP timestamp, after
	// conversion to RTP clock units (TsOffsetNs * clock_rate / 1e9,
	// sign-preserving, rounded toward zero). Defaults to 0 (no offset).
	TsOffsetNs int64

	// clock is only set by tests, to substitute clockwait.FakeClock for
	// clockwait.SystemClock{}.
	clock clockwait.Clock
}

const defaultLatency = 200 * time.Millisecond
const defaultInitialCapacity = 16

// Buffer is the coordinator (components D+E): the ordered packet store,
// segment, format cache, and all bookkeeping counters live behind a single
// sync.Mutex, guarded consistently by both the ingress path (Push and the
// other control methods) and the dedicated egress goroutine started by
// Start, per spec.md §5's single-lock discipline.
type Buffer struct {
	mu sync.Mutex

	store    *store.Store
	segment  *scheduler.Segment
	resolver format.Resolver
	fmtCache map[uint8]format.Descriptor

	latency       time.Duration
	dropOnLatency bool
	tsOffsetNs    int64
	prevTsOffset  int64
	currentClock  uint32
	lastPoppedSeq uint16
	havePopped    bool
	lastExtTS     int64
	haveExtTS     bool

	lateCount      uint64
	duplicateCount uint64
	droppedCount   uint64

	flushing  bool
	eosQueued bool

	started  bool
	egress   Egress
	shutdown chan struct{}
	cancel   chan struct{}
	wg       sync.WaitGroup

	clock clockwait.Clock
	log   *logging.Logger
}

// New constructs a Buffer from cfg, applying documented defaults for any
// zero-valued field.
func New(cfg Config) *Buffer {
	latency := cfg.Latency
	if latency <= 0 {
		latency = defaultLatency
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = format.DefaultStaticTable()
	}
	capHint := cfg.InitialCapacity
	if capHint <= 0 {
		capHint = defaultInitialCapacity
	}
	clock := cfg.clock
	if clock == nil {
		clock = clockwait.SystemClock{}
	}

	return &Buffer{
		store:         store.New(capHint),
		resolver:      resolver,
		latency:       latency,
		dropOnLatency: cfg.DropOnLatency,
		tsOffsetNs:    cfg.TsOffsetNs,
		prevTsOffset:  cfg.TsOffsetNs,
		clock:         clock,
		log:           cfg.Logger,
		cancel:        make(chan struct{}),
	}
}

// Stats is a read-only snapshot of the buffer's observable counters
// (spec.md §6 lists these as "exposed for observation").
type Stats struct {
	Len            int
	LateCount      uint64
	DuplicateCount uint64
	DroppedCount   uint64
}

// Stats returns a snapshot of the buffer's current counters and store
// length.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Len:            b.store.Len(),
		LateCount:      b.lateCount,
		DuplicateCount: b.duplicateCount,
		DroppedCount:   b.droppedCount,
	}
}

// SetLatency updates the target buffering latency. Taking effect
// immediately re-evaluates the pending release deadline.
func (b *Buffer) SetLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = d
	b.wake()
}

// SetDropOnLatency updates whether the oldest buffered packet is evicted
// once the store's span reaches Latency.
func (b *Buffer) SetDropOnLatency(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropOnLatency = enabled
	b.wake()
}

// SetTsOffset updates the RTP timestamp offset applied to released packets.
// A change takes effect on the next release, which is also marked
// discontinuous, matching the original element's ts-offset property
// (gstrtpjitterbuffer.c:1112-1134).
func (b *Buffer) SetTsOffset(ns int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tsOffsetNs = ns
	b.wake()
}

// Latency composes this buffer's own latency with a downstream peer's
// reported latency range, per spec.md §4.5 / §9's corrected composition
// rule (scheduler.ComposeLatency).
func (b *Buffer) Latency(peer scheduler.Latency) scheduler.Latency {
	b.mu.Lock()
	defer b.mu.Unlock()
	return scheduler.ComposeLatency(b.latency, peer)
}

// OnFormat replaces the payload-type resolver (the original's
// request-pt-map collaborator) and invalidates the cache.
func (b *Buffer) OnFormat(r format.Resolver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolver = r
	b.fmtCache = nil
}

// ClearFormatCache invalidates the cached payload-type resolutions (the
// original's clear-pt-map signal), without changing the resolver itself -
// the next Push for each payload type will call Resolver.Resolve again.
func (b *Buffer) ClearFormatCache() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fmtCache = nil
}

func (b *Buffer) resolveFormat(pt uint8) (format.Descriptor, bool) {
	if d, ok := b.fmtCache[pt]; ok {
		return d, true
	}
	if b.resolver == nil {
		return format.Descriptor{}, false
	}
	d, ok := b.resolver.Resolve(pt)
	if !ok {
		return format.Descriptor{}, false
	}
	if b.fmtCache == nil {
		b.fmtCache = make(map[uint8]format.Descriptor)
	}
	b.fmtCache[pt] = d
	return d, true
}

// OnSegment installs the running-time <-> media-time mapping for subsequent
// packets. Only a TIME-format segment is accepted; per spec.md §9's
// recommended resolution (confirmed against the original's
// goto newseg_wrong_format), any other format is rejected outright and not
// propagated in any form - an error is returned and nothing else happens.
func (b *Buffer) OnSegment(seg scheduler.Segment, segFormat string) error {
	if segFormat != `TIME` {
		if b.log != nil {
			b.log.Warning().Str(`format`, segFormat).Log(`rejected non-TIME segment`)
		}
		return ErrBadSegment
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segment = &seg
	b.wake()
	return nil
}

// Push parses payload as an RTP packet and ingests it: duplicate and
// too-late arrivals are silently dropped (counted, not errors); a decode
// failure or unresolvable payload type is returned as an error; otherwise
// the packet is inserted into the ordered store in sequence order and the
// egress goroutine is woken in case this changes the next release deadline.
func (b *Buffer) Push(payload []byte) (FlowResult, error) {
	p, err := rtp.Parse(payload)
	if err != nil {
		return FlowOK, err
	}
	return b.ingest(p)
}

func (b *Buffer) ingest(p rtp.Packet) (FlowResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flushing {
		return FlowFlushing, nil
	}
	if b.eosQueued {
		return FlowEOS, nil
	}

	if b.havePopped && store.TooLate(b.lastPoppedSeq, p.Seq) {
		b.lateCount++
		if b.log != nil {
			b.log.Warning().Int(`seq`, int(p.Seq)).Log(`dropped: arrived too late`)
		}
		return FlowOK, nil
	}
	if b.store.Contains(p.Seq) {
		b.duplicateCount++
		if b.log != nil {
			b.log.Warning().Int(`seq`, int(p.Seq)).Log(`dropped: duplicate`)
		}
		return FlowOK, nil
	}

	desc, ok := b.resolveFormat(p.PT)
	if !ok {
		return FlowOK, ErrNotNegotiated
	}
	b.currentClock = desc.ClockRate

	var extTS int64
	if b.haveExtTS {
		extTS = scheduler.ExtendTimestamp(b.lastExtTS, p.RTPTime)
	} else {
		extTS = int64(p.RTPTime)
		b.haveExtTS = true
	}
	b.lastExtTS = extTS

	if !b.store.Insert(p, extTS) {
		b.duplicateCount++
		return FlowOK, nil
	}

	b.evictPastLatency()
	b.wake()
	return FlowOK, nil
}

// evictPastLatency implements drop-on-latency: while DropOnLatency is
// enabled and the store's extended-timestamp span is at least the
// configured latency, the oldest packet is discarded. Disabled by default
// (spec.md §6): without it, the buffer simply accumulates up to Latency
// worth of media before releasing, which is the point of buffering it. Per
// spec.md §9's Open Question decision (recorded in DESIGN.md),
// last_popped_seq IS updated on eviction, diverging from the original, so a
// stale retransmit for an evicted seqnum cannot silently re-enter the
// store.
func (b *Buffer) evictPastLatency() {
	if !b.dropOnLatency || b.latency <= 0 || b.currentClock == 0 {
		return
	}
	for {
		span, ok := b.store.TsSpan()
		if !ok {
			return
		}
		spanDur := time.Duration(float64(span) / float64(b.currentClock) * float64(time.Second))
		if spanDur < b.latency {
			return
		}
		seqNo, ok := b.store.DropFront()
		if !ok {
			return
		}
		b.lastPoppedSeq = seqNo
		b.havePopped = true
		b.droppedCount++
		if b.log != nil {
			b.log.Warning().Int(`seq`, int(seqNo)).Log(`dropped: evicted past latency window`)
		}
	}
}

// FlushStart discards all currently stored packets and rejects further
// data until FlushStop is called.
func (b *Buffer) FlushStart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = true
	b.store.Flush()
	b.eosQueued = false
	b.wake()
}

// FlushStop resumes normal operation after a FlushStart, resetting the
// sequence-continuity state so the next arrival is accepted regardless of
// what was popped before the flush.
func (b *Buffer) FlushStop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushing = false
	b.havePopped = false
	b.haveExtTS = false
	b.wake()
}

// SignalEOS marks the stream as ended: no further Push calls are accepted,
// and once the store fully drains the egress goroutine calls
// Egress.WriteEOS exactly once.
func (b *Buffer) SignalEOS() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushing {
		return ErrFlushing
	}
	b.eosQueued = true
	b.wake()
	return nil
}

// wake cancels any pending clock wait in the egress goroutine so it
// recomputes its deadline against the current store/segment/latency state.
// Must be called with b.mu held. Grounded on spec.md §5's cancellation
// design: a dedicated cancel channel per wait epoch, replaced (not closed
// again) each time, so a Push racing an already-completed wait cannot
// double-close a channel.
func (b *Buffer) wake() {
	close(b.cancel)
	b.cancel = make(chan struct{})
}
