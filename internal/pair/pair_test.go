package pair

import (
	"errors"
	"math"
	"slices"
	"testing"

	"go.akshayshah.org/attest"
	"pgregory.net/rapid"
)

func collect(tb testing.TB, cfg Config) []Pair {
	tb.Helper()
	e, err := New(cfg)
	attest.Ok(tb, err)
	return slices.Collect(e.All())
}

func lines(a, b []string, pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = Join(a, b, p)
	}
	return out
}

func TestSequentialExamples(t *testing.T) {
	t.Run("two by two", func(t *testing.T) {
		a, b := []string{"a", "b"}, []string{"x", "y"}
		pairs := collect(t, Config{N1: 2, N2: 2, Count: 3})
		attest.Equal(t, pairs, []Pair{{0, 0}, {0, 1}, {1, 0}})
		attest.Equal(t, lines(a, b, pairs), []string{"a_x", "a_y", "b_x"})
	})
	t.Run("single row", func(t *testing.T) {
		a, b := []string{"solo"}, []string{"p", "q", "r"}
		pairs := collect(t, Config{N1: 1, N2: 3, Count: 3})
		attest.Equal(t, lines(a, b, pairs), []string{"solo_p", "solo_q", "solo_r"})
	})
	t.Run("single pair", func(t *testing.T) {
		attest.Equal(t, collect(t, Config{N1: 1, N2: 1, Count: 1}), []Pair{{0, 0}})
		attest.Equal(t, collect(t, Config{N1: 1, N2: 1, Count: 1, Mode: Scrambled, Seed: 99}), []Pair{{0, 0}})
	})
}

func TestScrambledProgression(t *testing.T) {
	// 7 is coprime with 10, so it's kept as is.
	e, err := New(Config{N1: 2, N2: 5, Count: 10, Seed: 5, Step: 7, Mode: Scrambled})
	attest.Ok(t, err)
	attest.Equal(t, e.Start(), uint64(5))
	attest.Equal(t, e.Step(), uint64(7))
	attest.True(t, e.Coprime())

	var got []uint64
	for p := range e.All() {
		got = append(got, p.I*5+p.J)
	}
	attest.Equal(t, got, []uint64{5, 2, 9, 6, 3, 0, 7, 4, 1, 8})
}

func TestZeroCount(t *testing.T) {
	for _, mode := range []Mode{Sequential, Scrambled} {
		e, err := New(Config{N1: 3, N2: 3, Mode: mode})
		attest.Ok(t, err)
		attest.Equal(t, e.State(), Done)
		_, ok := e.Next()
		attest.False(t, ok)
	}
}

func TestRejected(t *testing.T) {
	_, err := New(Config{N1: 0, N2: 4, Count: 0})
	attest.ErrorIs(t, err, ErrEmptyVocabulary)
	_, err = New(Config{N1: 4, N2: 0})
	attest.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = New(Config{N1: 2, N2: 3, Count: 7})
	attest.ErrorIs(t, err, ErrCountExceedsCapacity)
	var cerr *CapacityError
	attest.True(t, errors.As(err, &cerr))
	attest.Equal(t, *cerr, CapacityError{Requested: 7, Available: 6})
	attest.Equal(t, err.Error(), "requested 7 pairs but only 6 unique combinations possible")

	_, err = New(Config{N1: 1, N2: 1, Count: 2, Mode: Scrambled})
	attest.ErrorIs(t, err, ErrCountExceedsCapacity)

	_, err = New(Config{N1: math.MaxUint64, N2: 2})
	attest.ErrorIs(t, err, ErrSpaceTooLarge)
}

func TestStateTransitions(t *testing.T) {
	e, err := New(Config{N1: 2, N2: 1, Count: 2})
	attest.Ok(t, err)
	attest.Equal(t, e.State(), Initialized)
	e.Next()
	attest.Equal(t, e.State(), Emitting)
	attest.Equal(t, e.Remaining(), uint64(1))
	e.Next()
	attest.Equal(t, e.State(), Done)
	_, ok := e.Next()
	attest.False(t, ok, attest.Sprint("no wraparound after Done"))
	attest.Equal(t, e.Emitted(), uint64(2))
}

func TestEarlyBreakAndReset(t *testing.T) {
	cfg := Config{N1: 7, N2: 11, Count: 50, Seed: -3, Mode: Scrambled}
	want := collect(t, cfg)

	e, err := New(cfg)
	attest.Ok(t, err)
	var first []Pair
	for p := range e.All() {
		first = append(first, p)
		if len(first) == 10 {
			break
		}
	}
	attest.Equal(t, first, want[:10])
	attest.Equal(t, e.Emitted(), uint64(10))
	rest := slices.Collect(e.All())
	attest.Equal(t, append(first, rest...), want)

	e.Reset()
	attest.Equal(t, e.State(), Initialized)
	attest.Equal(t, slices.Collect(e.All()), want)
}

func TestLegacyStepRepeats(t *testing.T) {
	// 4 shares a factor with 10, so the unadjusted progression only visits
	// the even indices and repeats after five pairs.
	legacy := collect(t, Config{N1: 2, N2: 5, Count: 10, Seed: 0, Step: 4, Mode: Scrambled, LegacyStep: true})
	attest.False(t, distinct(legacy))

	fixed, err := New(Config{N1: 2, N2: 5, Count: 10, Seed: 0, Step: 4, Mode: Scrambled})
	attest.Ok(t, err)
	attest.Equal(t, fixed.Step(), uint64(3))
	attest.True(t, fixed.Coprime())
	attest.True(t, distinct(slices.Collect(fixed.All())))
}

func TestLegacyDefaultStepMatchesPrior(t *testing.T) {
	// Prior releases advanced by 15485863 mod total starting at seed mod total.
	const total = 12 * 9
	e, err := New(Config{N1: 12, N2: 9, Count: total, Seed: 123456789, Mode: Scrambled, LegacyStep: true})
	attest.Ok(t, err)
	idx := uint64(123456789 % total)
	for p := range e.All() {
		attest.Equal(t, p, Pair{I: idx / 9, J: idx % 9})
		idx = (idx + DefaultStep) % total
	}
}

func TestCoprimeStep(t *testing.T) {
	tests := []struct {
		step, total, want uint64
	}{
		{step: 7, total: 10, want: 7},
		{step: 4, total: 10, want: 3},
		{step: 6, total: 10, want: 7},
		{step: 10, total: 10, want: 1},
		{step: 0, total: 1, want: 0},
		{step: DefaultStep, total: DefaultStep * 2, want: DefaultStep + 2},
		{step: DefaultStep, total: DefaultStep, want: 1},
	}
	for _, tt := range tests {
		attest.Equal(t, CoprimeStep(tt.step, tt.total), tt.want, attest.Sprintf("step %d total %d", tt.step, tt.total))
	}
}

func TestFloorMod(t *testing.T) {
	attest.Equal(t, floorMod(5, 10), uint64(5))
	attest.Equal(t, floorMod(-1, 10), uint64(9))
	attest.Equal(t, floorMod(-10, 10), uint64(0))
	attest.Equal(t, floorMod(math.MinInt64, 7), uint64(6)) // matches Python's -2**63 % 7
	attest.Equal(t, addMod(math.MaxUint64-1, math.MaxUint64-2, math.MaxUint64), uint64(math.MaxUint64-3))
}

func distinct(pairs []Pair) bool {
	seen := make(map[Pair]struct{}, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}

func TestSequentialProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n1 := rapid.Uint64Range(1, 40).Draw(t, "n1")
		n2 := rapid.Uint64Range(1, 40).Draw(t, "n2")
		count := rapid.Uint64Range(0, n1*n2).Draw(t, "count")
		e, err := New(Config{N1: n1, N2: n2, Count: count, Seed: rapid.Int64().Draw(t, "seed")})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		var k uint64
		for p := range e.All() {
			if want := (Pair{I: k / n2, J: k % n2}); p != want {
				t.Fatalf("pair %d: got %v, want %v", k, p, want)
			}
			k++
		}
		if k != count {
			t.Fatalf("got %d pairs, want %d", k, count)
		}
	})
}

func TestScrambledFullCycleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n1 := rapid.Uint64Range(1, 60).Draw(t, "n1")
		n2 := rapid.Uint64Range(1, 60).Draw(t, "n2")
		cfg := Config{
			N1:    n1,
			N2:    n2,
			Count: n1 * n2,
			Seed:  rapid.Int64().Draw(t, "seed"),
			Step:  rapid.Uint64().Draw(t, "step"),
			Mode:  Scrambled,
		}
		e, err := New(cfg)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		seen := make(map[Pair]struct{})
		for p := range e.All() {
			if p.I >= n1 || p.J >= n2 {
				t.Fatalf("pair %v out of bounds", p)
			}
			if _, ok := seen[p]; ok {
				t.Fatalf("pair %v repeated (step %d, total %d)", p, e.Step(), e.Total())
			}
			seen[p] = struct{}{}
		}
		if uint64(len(seen)) != cfg.Count {
			t.Fatalf("covered %d pairs, want %d", len(seen), cfg.Count)
		}
	})
}

func TestDeterminismProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n1 := rapid.Uint64Range(1, 30).Draw(t, "n1")
		n2 := rapid.Uint64Range(1, 30).Draw(t, "n2")
		cfg := Config{
			N1:         n1,
			N2:         n2,
			Count:      rapid.Uint64Range(0, n1*n2).Draw(t, "count"),
			Seed:       rapid.Int64().Draw(t, "seed"),
			Step:       rapid.Uint64().Draw(t, "step"),
			Mode:       rapid.SampledFrom([]Mode{Sequential, Scrambled}).Draw(t, "mode"),
			LegacyStep: rapid.Bool().Draw(t, "legacy"),
		}
		a, err := New(cfg)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		b, err := New(cfg)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if !slices.Equal(slices.Collect(a.All()), slices.Collect(b.All())) {
			t.Fatalf("runs diverged for %+v", cfg)
		}
	})
}

func TestCapacityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n1 := rapid.Uint64Range(1, 1000).Draw(t, "n1")
		n2 := rapid.Uint64Range(1, 1000).Draw(t, "n2")
		over := rapid.Uint64Range(1, 1000).Draw(t, "over")
		_, err := New(Config{N1: n1, N2: n2, Count: n1*n2 + over})
		var cerr *CapacityError
		if !errors.As(err, &cerr) {
			t.Fatalf("got %v, want *CapacityError", err)
		}
		if cerr.Requested != n1*n2+over || cerr.Available != n1*n2 {
			t.Fatalf("got %+v", cerr)
		}
	})
}
