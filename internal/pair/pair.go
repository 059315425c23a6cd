// Package pair enumerates the index pairs of a two-axis combination space
// without materializing it.
//
// An Enumerator walks the n1*n2 linearized indices either in row-major order
// (Sequential) or along a fixed-step arithmetic progression modulo the total
// (Scrambled). Both orders are fully determined by the Config, so re-running
// with the same Config reproduces the same sequence. Memory use is constant
// regardless of how many pairs are requested.
package pair

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"
)

// DefaultStep is the stride used by Scrambled mode when Config.Step is zero.
// It is prime, so it is coprime with any total it doesn't divide.
const DefaultStep uint64 = 15485863

var (
	// ErrEmptyVocabulary is returned when either axis has no entries.
	ErrEmptyVocabulary = errors.New("vocabulary is empty")
	// ErrCountExceedsCapacity is matched by every *CapacityError.
	ErrCountExceedsCapacity = errors.New("count exceeds capacity")
	// ErrSpaceTooLarge is returned when n1*n2 doesn't fit in a uint64.
	ErrSpaceTooLarge = errors.New("combination space overflows uint64")
)

// CapacityError reports a request for more pairs than the combination space
// holds.
type CapacityError struct {
	Requested uint64
	Available uint64
}

// Error implements error.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d pairs but only %d unique combinations possible", e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrCountExceedsCapacity) hold.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCountExceedsCapacity
}

// A Mode selects the traversal order.
type Mode int

const (
	Sequential Mode = iota
	Scrambled
)

// String implements Stringer.
func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Scrambled:
		return "scrambled"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// A State is a point in an Enumerator's lifecycle. Rejected is never held by
// an Enumerator; New reports it by returning an error instead.
type State int

const (
	Initialized State = iota
	Emitting
	Done
	Rejected
)

// String implements Stringer.
func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Emitting:
		return "emitting"
	case Done:
		return "done"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pair indexes one word on each axis.
type Pair struct {
	I uint64
	J uint64
}

// Join formats p as an identifier: a[p.I], an underscore, then b[p.J]. Line
// termination is left to the sink.
func Join(a, b []string, p Pair) string {
	return a[p.I] + "_" + b[p.J]
}

// Config parameterizes an Enumerator.
type Config struct {
	N1    uint64
	N2    uint64
	Count uint64
	Seed  int64
	Mode  Mode

	// Step is the Scrambled stride. Zero selects DefaultStep.
	Step uint64
	// LegacyStep disables the coprime adjustment of Step. Output then matches
	// older releases exactly, but pairs repeat whenever Step shares a factor
	// with N1*N2.
	LegacyStep bool
}

// Enumerator produces the pairs described by a Config. Enumerators are not
// safe for concurrent use.
type Enumerator struct {
	n2    uint64
	total uint64
	count uint64
	mode  Mode
	start uint64
	step  uint64

	emitted uint64
	cursor  uint64 // linear index of the next pair
}

// New validates cfg and returns an Enumerator positioned before the first
// pair.
func New(cfg Config) (*Enumerator, error) {
	hi, total := bits.Mul64(cfg.N1, cfg.N2)
	if total == 0 && hi == 0 {
		return nil, ErrEmptyVocabulary
	}
	if hi != 0 {
		return nil, ErrSpaceTooLarge
	}
	if cfg.Count > total {
		return nil, &CapacityError{Requested: cfg.Count, Available: total}
	}
	e := &Enumerator{
		n2:    cfg.N2,
		total: total,
		count: cfg.Count,
		mode:  cfg.Mode,
	}
	switch cfg.Mode {
	case Sequential:
		e.step = 1
	case Scrambled:
		step := cfg.Step
		if step == 0 {
			step = DefaultStep
		}
		e.start = floorMod(cfg.Seed, total)
		if cfg.LegacyStep {
			e.step = step % total
		} else {
			e.step = CoprimeStep(step, total)
		}
	default:
		return nil, fmt.Errorf("unknown mode %v", cfg.Mode)
	}
	e.cursor = e.start
	return e, nil
}

// Next returns the next pair, or false once Count pairs have been produced.
func (e *Enumerator) Next() (Pair, bool) {
	if e.emitted >= e.count {
		return Pair{}, false
	}
	idx := e.cursor
	e.cursor = addMod(e.cursor, e.step, e.total)
	e.emitted++
	return Pair{I: idx / e.n2, J: idx % e.n2}, true
}

// All returns the remaining pairs as a sequence. Breaking out of the range
// loop leaves the Enumerator positioned after the last pair yielded.
func (e *Enumerator) All() iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		for {
			p, ok := e.Next()
			if !ok || !yield(p) {
				return
			}
		}
	}
}

// Reset rewinds the Enumerator to its initial position. The pairs produced
// afterwards are identical to those produced the first time.
func (e *Enumerator) Reset() {
	e.emitted = 0
	e.cursor = e.start
}

// State reports where the Enumerator is in its lifecycle.
func (e *Enumerator) State() State {
	switch {
	case e.emitted >= e.count:
		return Done
	case e.emitted == 0:
		return Initialized
	default:
		return Emitting
	}
}

// Total is the size of the combination space, n1*n2.
func (e *Enumerator) Total() uint64 { return e.total }

// Step is the effective stride after reduction modulo Total.
func (e *Enumerator) Step() uint64 { return e.step }

// Start is the linear index of the first pair.
func (e *Enumerator) Start() uint64 { return e.start }

// Mode is the traversal order.
func (e *Enumerator) Mode() Mode { return e.mode }

// Count is the number of pairs the Enumerator produces in total.
func (e *Enumerator) Count() uint64 { return e.count }

// Emitted is the number of pairs produced since creation or the last Reset.
func (e *Enumerator) Emitted() uint64 { return e.emitted }

// Remaining is Count minus Emitted.
func (e *Enumerator) Remaining() uint64 { return e.count - e.emitted }

// Coprime reports whether the stride visits every index of the space before
// repeating.
func (e *Enumerator) Coprime() bool { return gcd(e.step, e.total) == 1 }
