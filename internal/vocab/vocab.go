// Package vocab maps note tokens to dense integer indices.
package vocab

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

var (
	ErrUnknownToken = errors.New("unknown token")
	ErrOutOfRange   = errors.New("index out of range")
	ErrDuplicate    = errors.New("duplicate token")
)

// Vocabulary is an immutable bijection between tokens and [0, Size()).
// It is safe for concurrent reads.
type Vocabulary struct {
	tokens []string
	index  map[string]int
}

// Build collects the distinct tokens of notes in sorted order.
func Build(notes []string) *Vocabulary {
	seen := make(map[string]struct{}, len(notes))
	tokens := make([]string, 0, len(notes))
	for _, n := range notes {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		tokens = append(tokens, n)
	}
	sort.Strings(tokens)
	v, _ := New(tokens)
	return v
}

// New builds a vocabulary from tokens in the given order. Token i gets index i.
func New(tokens []string) (*Vocabulary, error) {
	v := &Vocabulary{
		tokens: append([]string(nil), tokens...),
		index:  make(map[string]int, len(tokens)),
	}
	for i, tok := range v.tokens {
		if tok == "" {
			return nil, fmt.Errorf("vocab: empty token at index %d", i)
		}
		if prev, ok := v.index[tok]; ok {
			return nil, fmt.Errorf("vocab: %w %q at %d and %d", ErrDuplicate, tok, prev, i)
		}
		v.index[tok] = i
	}
	return v, nil
}

// Size returns n_vocab. A nil vocabulary has size 0.
func (v *Vocabulary) Size() int {
	if v == nil {
		return 0
	}
	return len(v.tokens)
}

func (v *Vocabulary) Index(token string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[token]
	return i, ok
}

func (v *Vocabulary) Token(i int) (string, bool) {
	if i < 0 || i >= v.Size() {
		return "", false
	}
	return v.tokens[i], true
}

// Tokens returns a copy of the tokens in index order.
func (v *Vocabulary) Tokens() []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v.tokens...)
}

func (v *Vocabulary) Encode(tokens []string) ([]int, error) {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		idx, ok := v.Index(tok)
		if !ok {
			return nil, fmt.Errorf("vocab: %w %q at position %d", ErrUnknownToken, tok, i)
		}
		out[i] = idx
	}
	return out, nil
}

func (v *Vocabulary) Decode(indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		tok, ok := v.Token(idx)
		if !ok {
			return nil, fmt.Errorf("vocab: %w: %d at position %d (size %d)", ErrOutOfRange, idx, i, v.Size())
		}
		out[i] = tok
	}
	return out, nil
}

type fileFormat struct {
	Tokens []string `json:"tokens"`
}

// MarshalJSON encodes the vocabulary as {"tokens":[...]}.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileFormat{Tokens: v.Tokens()})
}

func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	nv, err := New(ff.Tokens)
	if err != nil {
		return err
	}
	*v = *nv
	return nil
}

func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("vocab: parse %s: %w", path, err)
	}
	return &v, nil
}
