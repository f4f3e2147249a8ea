// Package logging wires the coordinator's structured logging, using the
// teacher monorepo's own logging facade (github.com/joeycumines/logiface,
// published standalone at v0.5.0) backed by its zerolog adapter
// (github.com/joeycumines/izerolog, the published counterpart of the
// monorepo's logiface/zerolog subpackage), matching the WithZerolog
// construction pattern.
package logging

import (
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the type every package in this module logs through.
type Logger = logiface.Logger[*izerolog.Event]

// New returns a Logger writing structured JSON to w at the given level. A
// nil Logger (the zero value of *Logger, i.e. not calling New) is a no-op,
// matching logiface's own LevelDisabled convention - callers that don't
// want logging simply never construct one and guard every call site with a
// nil check, exactly as the coordinator does in rtpjitterbuf.
func New(w zerolog.Logger, level logiface.Level) *Logger {
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(w),
		logiface.WithLevel[*izerolog.Event](level),
	)
}

// Default returns a Logger writing to stderr at the informational level,
// suitable as a construction default for Buffer when the caller supplies no
// logger of its own.
func Default() *Logger {
	return New(zerolog.New(os.Stderr).With().Timestamp().Logger(), logiface.LevelInformational)
}
