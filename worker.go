package rtpjitterbuf

import (
	"time"

	"github.com/streamwell/rtpjitterbuf/internal/clockwait"
	"github.com/streamwell/rtpjitterbuf/scheduler"
	"github.com/streamwell/rtpjitterbuf/seq"
)

// Start launches the dedicated egress goroutine, which releases stored
// packets to egress in sequence order at their scheduled deadlines. It
// mirrors the original element's pad task thread
// (gst_pad_start_task/gst_pad_stop_task), joined on Stop via a
// sync.WaitGroup, the same lifecycle microbatch.Batcher uses for its
// worker goroutine.
func (b *Buffer) Start(egress Egress) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.egress = egress
	b.shutdown = make(chan struct{})
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run()
	return nil
}

// Stop signals the egress goroutine to exit and blocks until it has. It is
// safe to call FlushStart/FlushStop or Push concurrently with the shutdown
// sequence; once Stop returns, the goroutine has fully exited and
// Start may be called again.
func (b *Buffer) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return ErrNotStarted
	}
	b.started = false
	close(b.shutdown)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// run is the egress goroutine body. Each iteration recomputes what to wait
// for under the lock, releases the lock for the actual wait (so Push,
// FlushStart/Stop, and SignalEOS are never blocked behind a pending
// release), then re-acquires it to act on the outcome.
func (b *Buffer) run() {
	defer b.wg.Done()

	for {
		b.mu.Lock()

		if b.flushing {
			cancel, shutdown, clock := b.cancel, b.shutdown, b.clock
			b.mu.Unlock()
			if clockwait.Wait(clock, clockwait.Unscheduled, cancel, shutdown) == clockwait.Shutdown {
				return
			}
			continue
		}

		_, havePacket := b.store.PeekSeq()
		if !havePacket {
			if b.eosQueued {
				egress := b.egress
				b.mu.Unlock()
				if egress != nil {
					_ = egress.WriteEOS()
				}
				return
			}
			cancel, shutdown, clock := b.cancel, b.shutdown, b.clock
			b.mu.Unlock()
			if clockwait.Wait(clock, clockwait.Unscheduled, cancel, shutdown) == clockwait.Shutdown {
				return
			}
			continue
		}

		extTS, _ := b.store.PeekExtTS()
		result := scheduler.ComputeDeadline(scheduler.DeadlineInput{
			ExtTS:   extTS,
			Segment: b.segment,
			Latency: b.latency,
		})
		cancel, shutdown, clock := b.cancel, b.shutdown, b.clock
		b.mu.Unlock()

		deadline := result.Deadline
		if result.Unscheduled {
			deadline = clockwait.Unscheduled
		}

		switch clockwait.Wait(clock, deadline, cancel, shutdown) {
		case clockwait.Shutdown:
			return
		case clockwait.Cancelled:
			continue
		case clockwait.Deadline:
			b.release()
		}
	}
}

// release pops and delivers exactly one packet, updating the sequence-
// continuity bookkeeping before calling out to egress (so a duplicate or
// too-late arrival racing the release is correctly judged against the new
// state, not the pre-release state). Gap accounting (a missing seqnum
// between the last release and this one) and the ts-offset adjustment are
// both applied here, since both are properties of the release itself, not
// of ingest.
func (b *Buffer) release() {
	b.mu.Lock()
	p, _, ok := b.store.Pop()
	if !ok {
		b.mu.Unlock()
		return
	}

	var discontinuous bool
	if b.havePopped {
		expected := seq.Next(b.lastPoppedSeq)
		if p.Seq != expected {
			discontinuous = true
			b.lateCount += uint64(seq.GapCount(expected, p.Seq))
		}
	}
	b.lastPoppedSeq = p.Seq
	b.havePopped = true

	if b.tsOffsetNs != b.prevTsOffset {
		discontinuous = true
		b.prevTsOffset = b.tsOffsetNs
	}
	if b.tsOffsetNs != 0 && b.currentClock != 0 {
		offsetUnits := b.tsOffsetNs * int64(b.currentClock) / int64(time.Second)
		p.RTPTime = uint32(int64(p.RTPTime) + offsetUnits)
	}
	p.Discontinuity = discontinuous

	egress := b.egress
	log := b.log
	b.mu.Unlock()

	if egress == nil {
		return
	}
	if err := egress.WritePacket(p); err != nil && log != nil {
		log.Warning().Int(`seq`, int(p.Seq)).Err(err).Log(`downstream rejected packet`)
	}
}
