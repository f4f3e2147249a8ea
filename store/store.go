// Package store implements the ordered packet store (component B): a
// sequence-ordered collection of not-yet-released packets, backed by
// package ring, with duplicate rejection and timestamp-span queries for
// latency-eviction decisions.
package store

import (
	"github.com/streamwell/rtpjitterbuf/internal/ring"
	"github.com/streamwell/rtpjitterbuf/rtp"
	"github.com/streamwell/rtpjitterbuf/seq"
)

// payload is what ring.Entry carries per slot: the received packet plus its
// extended (unwrapped) RTP timestamp, computed by the coordinator at ingress
// time (spec.md §3's "Extended timestamp").
type payload struct {
	Packet rtp.Packet
	ExtTS  int64
}

// Store is the ordered packet store. It is not safe for concurrent use; the
// Buffer coordinator in package rtpjitterbuf guards every call with its own
// mutex, matching spec.md §5's single-lock discipline.
type Store struct {
	r *ring.Buffer[payload]
}

// New returns an empty Store with the given initial capacity hint.
func New(initialCapacity int) *Store {
	return &Store{r: ring.New[payload](initialCapacity)}
}

// Insert places p into the store in sequence order. It returns false without
// modifying the store if a packet with the same sequence number is already
// present (spec.md invariant: "at most once each" is enforced here, before a
// duplicate ever reaches the scheduler).
func (s *Store) Insert(p rtp.Packet, extTS int64) (inserted bool) {
	idx := s.r.Search(p.Seq)
	if idx < s.r.Len() && s.r.Get(idx).Seq == p.Seq {
		return false
	}
	s.r.Insert(idx, ring.Entry[payload]{Seq: p.Seq, Payload: payload{Packet: p, ExtTS: extTS}})
	return true
}

// Len returns the number of packets currently stored.
func (s *Store) Len() int {
	return s.r.Len()
}

// PeekSeq returns the sequence number of the oldest (lowest in wrap-aware
// order) stored packet, and whether the store is non-empty.
func (s *Store) PeekSeq() (uint16, bool) {
	if s.r.Len() == 0 {
		return 0, false
	}
	return s.r.Get(0).Seq, true
}

// PeekExtTS returns the extended timestamp of the oldest stored packet.
func (s *Store) PeekExtTS() (int64, bool) {
	if s.r.Len() == 0 {
		return 0, false
	}
	return s.r.Get(0).Payload.ExtTS, true
}

// Pop removes and returns the oldest (lowest in wrap-aware sequence order)
// packet in the store.
func (s *Store) Pop() (rtp.Packet, int64, bool) {
	if s.r.Len() == 0 {
		return rtp.Packet{}, 0, false
	}
	e := s.r.Get(0)
	s.r.RemoveBefore(1)
	return e.Payload.Packet, e.Payload.ExtTS, true
}

// DropFront removes the oldest packet without returning it, used by
// drop-on-latency eviction (spec.md §9).
func (s *Store) DropFront() (seqNo uint16, ok bool) {
	if s.r.Len() == 0 {
		return 0, false
	}
	seqNo = s.r.Get(0).Seq
	s.r.RemoveBefore(1)
	return seqNo, true
}

// TsSpan returns the extended-timestamp distance between the oldest and
// newest stored entries: newest - oldest. Used to decide whether the store
// has accumulated more than the configured latency window of media and
// should start evicting (drop-on-latency).
func (s *Store) TsSpan() (span int64, ok bool) {
	n := s.r.Len()
	if n == 0 {
		return 0, false
	}
	oldest := s.r.Get(0).Payload.ExtTS
	newest := s.r.Get(n - 1).Payload.ExtTS
	return newest - oldest, true
}

// Contains reports whether seqNo identifies a packet already in the store,
// used to reject a duplicate before computing its extended timestamp.
func (s *Store) Contains(seqNo uint16) bool {
	idx := s.r.Search(seqNo)
	return idx < s.r.Len() && s.r.Get(idx).Seq == seqNo
}

// TooLate reports whether candidate is at or before last in wrap-aware
// sequence order - not strictly after it - the test the coordinator applies
// to an arrival against the last popped sequence number. Equality is
// included deliberately: a second copy of an already-released sequence
// number must be dropped here too, since it can no longer be found as a
// duplicate in the (by-then-empty) store. It consults no store state.
func TooLate(last, candidate uint16) bool {
	return !seq.After(last, candidate)
}

// Flush drains and returns every stored packet, oldest first, clearing the
// store. Used by Buffer.FlushStart, which discards the returned packets.
func (s *Store) Flush() []rtp.Packet {
	entries := s.r.Slice()
	out := make([]rtp.Packet, len(entries))
	for i, e := range entries {
		out[i] = e.Payload.Packet
	}
	s.r = ring.New[payload](4)
	return out
}
