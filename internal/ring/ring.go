// Package ring implements a growable, power-of-two-sized ring buffer of
// sequence-keyed entries, kept sorted in wrap-aware sequence-number order at
// all times via a binary-search insert. It is the backing store for the
// ordered packet store (package store); ring itself knows nothing about RTP,
// only how to keep entries ordered by a uint16 key that wraps.
package ring

import (
	"sort"

	"github.com/streamwell/rtpjitterbuf/seq"
)

// Entry is one slot in the ring: a sequence number and an opaque payload.
type Entry[P any] struct {
	Seq     uint16
	Payload P
}

// Buffer is a sorted, wrap-aware ring buffer of Entry[P], adapted from
// catrate's ringBuffer[E constraints.Ordered]: same mask/bounds/shift-on-
// insert mechanics, but ordered by seq.Diff instead of a plain >=, since
// sequence numbers wrap at 16 bits and constraints.Ordered comparison would
// be wrong across the wrap boundary.
type Buffer[P any] struct {
	s    []Entry[P]
	r, w uint
}

// New returns an empty Buffer with the given initial capacity, rounded up to
// a power of 2 (minimum 1).
func New[P any](initialCapacity int) *Buffer[P] {
	size := 1
	for size < initialCapacity {
		size <<= 1
	}
	return &Buffer[P]{s: make([]Entry[P], size)}
}

func (x *Buffer[P]) mask(val uint) uint {
	return val & (uint(len(x.s)) - 1)
}

func (x *Buffer[P]) bounds() (i1, l1, l2 int) {
	if x.r == x.w {
		return
	}
	i1 = int(x.mask(x.r))
	l1 = int(x.mask(x.w))
	if l1 <= i1 {
		l2 = l1
		l1 = len(x.s)
	}
	return
}

// Len returns the number of entries currently stored.
func (x *Buffer[P]) Len() int {
	return int(x.w - x.r)
}

// Cap returns the current backing array capacity.
func (x *Buffer[P]) Cap() int {
	return len(x.s)
}

// Get returns the entry at the given logical index, 0 being the oldest
// (lowest in wrap-aware sequence order) entry currently stored.
func (x *Buffer[P]) Get(i int) Entry[P] {
	if i < 0 || i >= x.Len() {
		panic(`ring: get: index out of range`)
	}
	return x.s[x.mask(x.r+uint(i))]
}

// Slice returns a newly allocated copy of all entries, oldest first.
func (x *Buffer[P]) Slice() []Entry[P] {
	var b []Entry[P]
	if l := x.Len(); l != 0 {
		b = make([]Entry[P], l)
		i1, l1, l2 := x.bounds()
		copy(b, x.s[i1:l1])
		copy(b[l1-i1:], x.s[:l2])
	}
	return b
}

// RemoveBefore drops the first index entries (the oldest ones).
func (x *Buffer[P]) RemoveBefore(index int) {
	if index < 0 || index > x.Len() {
		panic(`ring: remove before: index out of range`)
	}
	x.r += uint(index)
}

// Search returns the index of the first entry whose Seq is at-or-after
// value in wrap-aware order, i.e. the insertion point that keeps the buffer
// sorted. If value already exists, Search returns its index.
func (x *Buffer[P]) Search(value uint16) int {
	return sort.Search(x.Len(), func(i int) bool {
		return !seq.Before(value, x.Get(i).Seq)
	})
}

// Insert places e at the given logical index, growing the backing array if
// necessary. Callers are responsible for finding the correct index (via
// Search) to preserve sort order; Insert itself does not reorder.
func (x *Buffer[P]) Insert(index int, e Entry[P]) {
	l := x.Len()
	if index < 0 || index > l {
		panic(`ring: insert: index out of range`)
	}

	if l == len(x.s) {
		s := make([]Entry[P], uint(len(x.s))<<1)
		if len(s) == 0 {
			panic(`ring: insert: overflow`)
		}

		i1, l1, l2 := x.bounds()
		l = l1 - i1
		if index < l {
			copy(s, x.s[i1:i1+index])
			s[index] = e
			copy(s[index+1:], x.s[i1+index:l1])
			l++
			copy(s[l:], x.s[:l2])
			l += l2
		} else {
			copy(s, x.s[i1:l1])
			copy(s[l:], x.s[:index-l])
			s[index] = e
			copy(s[index+1:], x.s[index-l:l2])
			l += l2 + 1
		}

		x.r = 0
		x.w = uint(l)
		x.s = s
		return
	}

	var i, j int
	if l == 0 {
		x.r = 0
		x.w = 0
	} else {
		i = int(x.mask(x.r))
		j = int(x.mask(x.w))
	}

	if l == 0 || i < j {
		copy(x.s[i+index+1:], x.s[i+index:j])
		x.s[i+index] = e
		x.w++
		return
	}

	if index >= len(x.s)-i {
		index -= len(x.s) - i
		copy(x.s[index+1:], x.s[index:j])
		x.s[index] = e
		x.w++
		return
	}

	copy(x.s[1:], x.s[:j])
	x.s[0] = x.s[len(x.s)-1]
	copy(x.s[i+index+1:], x.s[i+index:])
	x.s[i+index] = e
	x.w++
}
