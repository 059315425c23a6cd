package proptest

import (
	"maps"
	"slices"
	"strings"
)

// state is the model's view of a server: the identifiers issued since the
// last reset, plus the number of NEXT calls whose outcome is unknown. States
// are immutable.
type state struct {
	issued map[string]struct{}
	lost   int
}

func newState() *state {
	return &state{issued: map[string]struct{}{}}
}

func (s *state) issue(name string) *state {
	m := maps.Clone(s.issued)
	m[name] = struct{}{}
	return &state{issued: m, lost: s.lost}
}

func (s *state) maybeIssued() *state {
	return &state{issued: s.issued, lost: s.lost + 1}
}

// maybeReset over-approximates a reset that may not have happened: earlier
// identifiers may be issued again, and they still count towards exhaustion.
func (s *state) maybeReset() *state {
	return &state{issued: map[string]struct{}{}, lost: len(s.issued) + s.lost}
}

func (s *state) has(name string) bool {
	_, ok := s.issued[name]
	return ok
}

// mayBeExhausted reports whether a server with the given capacity could have
// run out in this state.
func (s *state) mayBeExhausted(capacity uint64) bool {
	return uint64(len(s.issued)+s.lost) >= capacity
}

func (s *state) equal(o *state) bool {
	return s.lost == o.lost && maps.Equal(s.issued, o.issued)
}

func (s *state) String() string {
	names := slices.Sorted(maps.Keys(s.issued))
	var b strings.Builder
	b.WriteRune('{')
	b.WriteString(strings.Join(names, ", "))
	b.WriteRune('}')
	if s.lost > 0 {
		b.WriteString(" +")
		b.WriteString(strings.Repeat("?", s.lost))
	}
	return b.String()
}
