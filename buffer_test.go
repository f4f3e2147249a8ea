package rtpjitterbuf

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwell/rtpjitterbuf/format"
	"github.com/streamwell/rtpjitterbuf/internal/clockwait"
	"github.com/streamwell/rtpjitterbuf/rtp"
	"github.com/streamwell/rtpjitterbuf/scheduler"
)

// recordingEgress is a test double implementing Egress, recording every
// packet and EOS delivery in arrival order.
type recordingEgress struct {
	mu      sync.Mutex
	packets []rtp.Packet
	eos     bool
	eosCh   chan struct{}
}

func newRecordingEgress() *recordingEgress {
	return &recordingEgress{eosCh: make(chan struct{})}
}

func (r *recordingEgress) WritePacket(p rtp.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, p)
	return nil
}

func (r *recordingEgress) WriteEOS() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eos = true
	close(r.eosCh)
	return nil
}

func (r *recordingEgress) seqs() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint16, len(r.packets))
	for i, p := range r.packets {
		out[i] = p.Seq
	}
	return out
}

func buildPacket(t *testing.T, seqNo uint16, rtpTime uint32, pt byte) []byte {
	t.Helper()
	b := make([]byte, 12)
	b[0] = 0x80
	b[1] = pt
	binary.BigEndian.PutUint16(b[2:4], seqNo)
	binary.BigEndian.PutUint32(b[4:8], rtpTime)
	return b
}

// testHarness wires a Buffer to a FakeClock and a 1:1 clock-rate segment
// (RTP timestamp units == milliseconds) so deadline math is trivial to
// reason about in tests.
type testHarness struct {
	t      *testing.T
	buf    *Buffer
	clock  *clockwait.FakeClock
	egress *recordingEgress
}

// newHarnessWithConfig wires a Buffer built from cfg (clock substituted) to a
// FakeClock and a 1:1 clock-rate segment (RTP timestamp units ==
// milliseconds) so deadline math is trivial to reason about in tests.
func newHarnessWithConfig(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	clock := clockwait.NewFakeClock(time.Unix(1000, 0))
	cfg.clock = clock
	buf := New(cfg)
	// A fixed 1000Hz resolver for payload type 0 keeps the segment's clock
	// rate and the eviction math's clock rate consistent and easy to
	// reason about in milliseconds.
	buf.OnFormat(format.StaticTable{0: {Name: `test`, ClockRate: 1000}})
	require.NoError(t, buf.OnSegment(scheduler.Segment{
		BaseTime:  clock.Now(),
		BaseExtTS: 0,
		ClockRate: 1000,
	}, `TIME`))
	egress := newRecordingEgress()
	require.NoError(t, buf.Start(egress))
	t.Cleanup(func() { _ = buf.Stop() })
	return &testHarness{t: t, buf: buf, clock: clock, egress: egress}
}

func newHarness(t *testing.T, latency time.Duration) *testHarness {
	return newHarnessWithConfig(t, Config{Latency: latency})
}

func (h *testHarness) push(seqNo uint16, rtpTime uint32) FlowResult {
	h.t.Helper()
	fr, err := h.buf.Push(buildPacket(h.t, seqNo, rtpTime, 0))
	require.NoError(h.t, err)
	return fr
}

// settle advances the fake clock in small steps, giving the egress
// goroutine time to observe each advance, used to deliver everything whose
// deadline falls within d.
func (h *testHarness) settle(d time.Duration) {
	const step = 5 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		time.Sleep(time.Millisecond)
		h.clock.Advance(step)
	}
	time.Sleep(5 * time.Millisecond)
}

func TestPushReleasesInOrderDespiteReordering(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)

	assert.Equal(t, FlowOK, h.push(2, 20))
	assert.Equal(t, FlowOK, h.push(0, 0))
	assert.Equal(t, FlowOK, h.push(1, 10))

	h.settle(200 * time.Millisecond)

	assert.Equal(t, []uint16{0, 1, 2}, h.egress.seqs())
}

func TestDuplicatePacketDropped(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)

	assert.Equal(t, FlowOK, h.push(5, 50))
	assert.Equal(t, FlowOK, h.push(5, 50))

	stats := h.buf.Stats()
	assert.Equal(t, uint64(1), stats.DuplicateCount)
	assert.Equal(t, 1, stats.Len)
}

func TestTooLatePacketDroppedAfterPop(t *testing.T) {
	h := newHarness(t, 10*time.Millisecond)

	h.push(1, 10)
	h.settle(100 * time.Millisecond)
	require.Equal(t, []uint16{1}, h.egress.seqs())

	// seq 0 now arrives after seq 1 has already been released
	fr := h.push(0, 0)
	assert.Equal(t, FlowOK, fr)

	stats := h.buf.Stats()
	assert.Equal(t, uint64(1), stats.LateCount)
	assert.Equal(t, 0, stats.Len)
}

func TestNotNegotiatedPayloadType(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	h.buf.OnFormat(nil)

	_, err := h.buf.Push(buildPacket(t, 1, 10, 0))
	assert.ErrorIs(t, err, ErrNotNegotiated)
}

func TestOnSegmentRejectsNonTime(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	err := h.buf.OnSegment(scheduler.Segment{}, `BYTES`)
	assert.ErrorIs(t, err, ErrBadSegment)
}

func TestFlushStartDropsDataAndRejectsNew(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	h.push(1, 10)

	h.buf.FlushStart()
	assert.Equal(t, 0, h.buf.Stats().Len)

	fr, err := h.buf.Push(buildPacket(t, 2, 20, 0))
	require.NoError(t, err)
	assert.Equal(t, FlowFlushing, fr)

	h.buf.FlushStop()
	fr, err = h.buf.Push(buildPacket(t, 3, 30, 0))
	require.NoError(t, err)
	assert.Equal(t, FlowOK, fr)
}

func TestSignalEOSDeliversAfterDrain(t *testing.T) {
	h := newHarness(t, 10*time.Millisecond)
	h.push(1, 10)
	h.settle(100 * time.Millisecond)
	require.Equal(t, []uint16{1}, h.egress.seqs())

	require.NoError(t, h.buf.SignalEOS())

	select {
	case <-h.egress.eosCh:
	case <-time.After(2 * time.Second):
		t.Fatal(`timed out waiting for WriteEOS`)
	}

	h.egress.mu.Lock()
	assert.True(t, h.egress.eos)
	h.egress.mu.Unlock()

	fr, err := h.buf.Push(buildPacket(t, 2, 20, 0))
	require.NoError(t, err)
	assert.Equal(t, FlowEOS, fr)
}

func TestDropOnLatencyEvicts(t *testing.T) {
	h := newHarnessWithConfig(t, Config{Latency: 30 * time.Millisecond, DropOnLatency: true})

	// Insert packets spanning well beyond the 30ms latency window before
	// any of them can be released, so eviction triggers on insert.
	h.push(0, 0)
	h.push(1, 10)
	h.push(2, 20)
	h.push(3, 100) // span now 100ms > 30ms latency: seq 0, 1, 2 evicted in turn

	stats := h.buf.Stats()
	assert.Equal(t, uint64(3), stats.DroppedCount)
	assert.Equal(t, 1, stats.Len)
}

func TestStatsLenTracksStore(t *testing.T) {
	h := newHarness(t, 500*time.Millisecond)
	h.push(1, 10)
	h.push(2, 20)
	assert.Equal(t, 2, h.buf.Stats().Len)
}

func TestLatencyComposition(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	got := h.buf.Latency(scheduler.Latency{Min: 10 * time.Millisecond, Max: 100 * time.Millisecond})
	assert.Equal(t, 60*time.Millisecond, got.Min)
	assert.Equal(t, 150*time.Millisecond, got.Max)
}

func TestStartTwiceErrors(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	err := h.buf.Start(h.egress)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStopTwiceErrors(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	require.NoError(t, h.buf.Stop())
	assert.ErrorIs(t, h.buf.Stop(), ErrNotStarted)
}
