// Package format provides the payload-type resolution contract (spec.md §6)
// and a default static table implementation, grounded on the original C
// element's request-pt-map signal and RFC 3551's static payload type
// assignments.
package format

// Descriptor describes what a payload type identifies: its RTP clock rate
// (needed by package scheduler to convert RTP timestamps to running time)
// and a human-readable name for logging.
type Descriptor struct {
	Name      string
	ClockRate uint32
	Channels  uint8
}

// Resolver maps a payload type to its Descriptor. The coordinator calls
// Resolve once per payload type seen and caches the result, invalidating
// the cache via ClearFormatCache (spec.md §6's clear-pt-map control signal).
type Resolver interface {
	Resolve(pt uint8) (Descriptor, bool)
}

// StaticTable is a Resolver backed by a fixed map, suitable for streams
// whose payload types are all static RFC 3551 assignments (no out-of-band
// SDP/RTSP negotiation). It is nil-safe: a nil StaticTable resolves
// nothing.
type StaticTable map[uint8]Descriptor

// Resolve implements Resolver.
func (t StaticTable) Resolve(pt uint8) (Descriptor, bool) {
	d, ok := t[pt]
	return d, ok
}

// DefaultStaticTable returns the well-known RFC 3551 static payload type
// assignments in common use (audio and video).
func DefaultStaticTable() StaticTable {
	return StaticTable{
		0:  {Name: `PCMU`, ClockRate: 8000, Channels: 1},
		3:  {Name: `GSM`, ClockRate: 8000, Channels: 1},
		4:  {Name: `G723`, ClockRate: 8000, Channels: 1},
		5:  {Name: `DVI4`, ClockRate: 8000, Channels: 1},
		6:  {Name: `DVI4`, ClockRate: 16000, Channels: 1},
		7:  {Name: `LPC`, ClockRate: 8000, Channels: 1},
		8:  {Name: `PCMA`, ClockRate: 8000, Channels: 1},
		9:  {Name: `G722`, ClockRate: 8000, Channels: 1},
		10: {Name: `L16`, ClockRate: 44100, Channels: 2},
		11: {Name: `L16`, ClockRate: 44100, Channels: 1},
		12: {Name: `QCELP`, ClockRate: 8000, Channels: 1},
		13: {Name: `CN`, ClockRate: 8000, Channels: 1},
		14: {Name: `MPA`, ClockRate: 90000, Channels: 0},
		15: {Name: `G728`, ClockRate: 8000, Channels: 1},
		16: {Name: `DVI4`, ClockRate: 11025, Channels: 1},
		17: {Name: `DVI4`, ClockRate: 22050, Channels: 1},
		18: {Name: `G729`, ClockRate: 8000, Channels: 1},
		25: {Name: `CelB`, ClockRate: 90000},
		26: {Name: `JPEG`, ClockRate: 90000},
		28: {Name: `nv`, ClockRate: 90000},
		31: {Name: `H261`, ClockRate: 90000},
		32: {Name: `MPV`, ClockRate: 90000},
		33: {Name: `MP2T`, ClockRate: 90000},
		34: {Name: `H263`, ClockRate: 90000},
	}
}
