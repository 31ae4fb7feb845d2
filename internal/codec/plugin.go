package codec

import (
	"context"
	"fmt"
	"strings"
)

// Decision is the outcome of the error policy for one failed unit.
type Decision int

const (
	// Ignore skips the failed unit and keeps going.
	Ignore Decision = iota
	// IgnoreAll skips this and every later failure without asking again.
	IgnoreAll
	// StopDiscard stops the run and deletes everything written so far.
	StopDiscard
	// StopKeep stops the run and keeps everything written so far.
	StopKeep
)

var decisionNames = map[Decision]string{
	Ignore:      "ignore",
	IgnoreAll:   "ignore_all",
	StopDiscard: "stop_discard",
	StopKeep:    "stop_keep",
}

func (d Decision) String() string {
	if s, ok := decisionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Stops reports whether d ends the run.
func (d Decision) Stops() bool { return d == StopDiscard || d == StopKeep }

// ParseDecision parses the names returned by Decision.String.
func ParseDecision(s string) (Decision, error) {
	for d, name := range decisionNames {
		if strings.EqualFold(s, name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown error decision %q", s)
}

// ErrorHandler decides what to do about a failed unit. It may block until a
// decision is available.
type ErrorHandler func(ctx context.Context, err error) Decision

// Reader produces the units of a source save.
//
// CountUnits and LoadUnits run concurrently: CountUnits builds the worklist
// and LoadUnits waits for it. Stop may be called from any goroutine and makes
// LoadUnits return promptly without an error.
type Reader[T any] interface {
	// CountUnits scans the source and calls inc once per discovered unit.
	// If ctx is canceled mid-scan the worklist is dropped and LoadUnits
	// produces nothing.
	CountUnits(ctx context.Context, inc func()) error
	// LoadUnits hands every unit of the worklist to consume, which may block.
	// Per-unit failures go to onError; a stop decision ends loading.
	LoadUnits(ctx context.Context, consume func(T) error, onError ErrorHandler) error
	Stop()
	Close() error
}

// Converter maps one input unit to zero or more output units. It must not
// keep state between calls.
type Converter[IN, OUT any] interface {
	Convert(in IN) ([]OUT, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc[IN, OUT any] func(IN) ([]OUT, error)

// Convert implements Converter.
func (f ConverterFunc[IN, OUT]) Convert(in IN) ([]OUT, error) { return f(in) }

// Writer persists output units. Accept is called concurrently and serializes
// writes to the same destination internally.
type Writer[T any] interface {
	Accept(ctx context.Context, unit T) error
	// DiscardData removes everything written, after closing the stores.
	DiscardData() error
	Close() error
}
