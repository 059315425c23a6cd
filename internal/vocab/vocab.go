// Package vocab loads word lists into normalized, deduplicated vocabularies.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// A Vocabulary is an ordered sequence of unique tokens. Each token is
// non-empty and contains only lowercase ASCII letters, digits and single
// underscores between them. Vocabularies are shared, never copied, so callers
// must not modify them.
type Vocabulary []string

// Len returns the number of tokens.
func (v Vocabulary) Len() int {
	return len(v)
}

// ErrTooManyLists is returned by LoadPair when given more than two paths.
var ErrTooManyLists = errors.New("at most two word lists are supported")

// Normalize lowercases s, strips diacritics and collapses every run of
// characters outside [a-z0-9] into a single underscore. Leading and trailing
// underscores are dropped, so the result may be empty.
func Normalize(s string) string {
	// Transformers are stateful, so each call builds its own chain.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range folded {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

// Read builds a Vocabulary from r, one raw word per line.
func Read(r io.Reader) (Vocabulary, error) {
	var b builder
	if err := b.read(r); err != nil {
		return nil, err
	}
	return b.words, nil
}

// Load builds a single Vocabulary from every path in order. A word seen in an
// earlier file isn't repeated.
func Load(paths ...string) (Vocabulary, error) {
	var b builder
	for _, path := range paths {
		if err := b.readFile(path); err != nil {
			return nil, err
		}
	}
	return b.words, nil
}

// LoadPair loads the row and column vocabularies. With one path, both axes
// share the same Vocabulary. With two, each path is loaded independently.
// With none, both axes use Builtin.
func LoadPair(paths []string) (Vocabulary, Vocabulary, error) {
	switch len(paths) {
	case 0:
		v := Builtin()
		return v, v, nil
	case 1:
		v, err := Load(paths[0])
		return v, v, err
	case 2:
		a, err := Load(paths[0])
		if err != nil {
			return nil, nil, err
		}
		b, err := Load(paths[1])
		if err != nil {
			return nil, nil, err
		}
		return a, b, nil
	default:
		return nil, nil, fmt.Errorf("%w: got %d", ErrTooManyLists, len(paths))
	}
}

type builder struct {
	seen  map[string]struct{}
	words Vocabulary
}

func (b *builder) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	if err := b.read(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (b *builder) read(r io.Reader) error {
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		w := Normalize(scanner.Text())
		if w == "" {
			continue
		}
		if _, ok := b.seen[w]; ok {
			continue
		}
		b.seen[w] = struct{}{}
		b.words = append(b.words, w)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read word list: %w", err)
	}
	return nil
}
