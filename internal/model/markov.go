package model

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/cadence/internal/generate"
)

const (
	DefaultOrder = 3
	DefaultAlpha = 0.1
)

// Markov is a back-off n-gram predictor. Given the trailing Order tokens of
// the window it uses the longest suffix seen during fitting and smooths its
// counts with Alpha, so every class keeps a strictly positive probability.
//
// A fitted Markov is read-only and safe for concurrent Predict calls.
type Markov struct {
	Order   int     `json:"order"`
	Alpha   float64 `json:"alpha"`
	Vocab   int     `json:"vocab_size"`
	Context int     `json:"context_length"`
	// Normalization is the window scaling the counts were fitted under.
	Normalization generate.Normalization `json:"normalization"`
	// Counts maps a comma-joined suffix of indices to next-token counts.
	Counts map[string]map[int]uint32 `json:"-"`
}

type markovFile struct {
	Markov
	Suffixes []suffixCounts `json:"suffixes"`
}

type suffixCounts struct {
	Context string   `json:"context"`
	Next    []int    `json:"next"`
	Counts  []uint32 `json:"counts"`
}

// Fit counts suffixes of length 0..order over indices. The result expects
// windows divided by vocabSize; set Normalization before encoding to change
// that.
func Fit(indices []int, vocabSize, contextLen, order int, alpha float64) (*Markov, error) {
	switch {
	case vocabSize <= 0:
		return nil, fmt.Errorf("markov: vocabulary size must be positive, got %d", vocabSize)
	case contextLen <= 0:
		return nil, fmt.Errorf("markov: context length must be positive, got %d", contextLen)
	case order < 1 || order > contextLen:
		return nil, fmt.Errorf("markov: order %d outside [1,%d]", order, contextLen)
	case !(alpha > 0) || math.IsInf(alpha, 0):
		return nil, fmt.Errorf("markov: alpha must be positive, got %v", alpha)
	case len(indices) == 0:
		return nil, fmt.Errorf("markov: no tokens to fit")
	}
	m := &Markov{
		Order:   order,
		Alpha:   alpha,
		Vocab:   vocabSize,
		Context: contextLen,
		Counts:  make(map[string]map[int]uint32),
	}
	for i, next := range indices {
		if next < 0 || next >= vocabSize {
			return nil, fmt.Errorf("markov: index %d at position %d outside [0,%d)", next, i, vocabSize)
		}
		for k := 0; k <= order && k <= i; k++ {
			key := suffixKey(indices[i-k : i])
			row := m.Counts[key]
			if row == nil {
				row = make(map[int]uint32)
				m.Counts[key] = row
			}
			row[next]++
		}
	}
	return m, nil
}

func (m *Markov) ContextLength() int { return m.Context }
func (m *Markov) VocabSize() int     { return m.Vocab }

// Predict maps the normalized window back to indices and returns the
// smoothed distribution of the longest known suffix.
func (m *Markov) Predict(window []float32) ([]float32, error) {
	if len(window) != m.Context {
		return nil, fmt.Errorf("markov: window has %d values, want %d", len(window), m.Context)
	}
	k := min(m.Order, len(window))
	tail := make([]int, k)
	for i, x := range window[len(window)-k:] {
		tail[i] = m.denormalize(x)
	}

	var row map[int]uint32
	for ; k >= 0; k-- {
		if r, ok := m.Counts[suffixKey(tail[len(tail)-k:])]; ok {
			row = r
			break
		}
	}

	var total float64
	for _, c := range row {
		total += float64(c)
	}
	denom := total + m.Alpha*float64(m.Vocab)
	probs := make([]float32, m.Vocab)
	for i := range probs {
		probs[i] = float32((float64(row[i]) + m.Alpha) / denom)
	}
	return probs, nil
}

func (m *Markov) denormalize(x float32) int {
	if math.IsNaN(float64(x)) {
		return 0
	}
	idx := int(math.Round(float64(x * m.Normalization.Scale(m.Vocab))))
	return max(0, min(idx, m.Vocab-1))
}

// Encode writes the model as JSON with suffixes and next indices sorted.
func (m *Markov) Encode(w io.Writer) error {
	f := markovFile{Markov: *m, Suffixes: make([]suffixCounts, 0, len(m.Counts))}
	for _, key := range slices.Sorted(maps.Keys(m.Counts)) {
		row := m.Counts[key]
		sc := suffixCounts{Context: key, Next: slices.Sorted(maps.Keys(row))}
		sc.Counts = make([]uint32, len(sc.Next))
		for i, idx := range sc.Next {
			sc.Counts[i] = row[idx]
		}
		f.Suffixes = append(f.Suffixes, sc)
	}
	return json.NewEncoder(w).Encode(f)
}

// DecodeMarkov reads a model written by Encode and validates it.
func DecodeMarkov(r io.Reader) (*Markov, error) {
	var f markovFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("markov: decode: %w", err)
	}
	m := f.Markov
	if m.Vocab <= 0 || m.Context <= 0 || m.Order < 1 || m.Order > m.Context || !(m.Alpha > 0) {
		return nil, fmt.Errorf("markov: invalid header order=%d alpha=%v vocab=%d context=%d", m.Order, m.Alpha, m.Vocab, m.Context)
	}
	m.Counts = make(map[string]map[int]uint32, len(f.Suffixes))
	for _, sc := range f.Suffixes {
		if len(sc.Next) != len(sc.Counts) {
			return nil, fmt.Errorf("markov: suffix %q has %d indices and %d counts", sc.Context, len(sc.Next), len(sc.Counts))
		}
		row := make(map[int]uint32, len(sc.Next))
		for i, idx := range sc.Next {
			if idx < 0 || idx >= m.Vocab {
				return nil, fmt.Errorf("markov: suffix %q counts index %d outside [0,%d)", sc.Context, idx, m.Vocab)
			}
			row[idx] = sc.Counts[i]
		}
		m.Counts[sc.Context] = row
	}
	return &m, nil
}

func suffixKey(idx []int) string {
	if len(idx) == 0 {
		return ""
	}
	var b strings.Builder
	for i, v := range idx {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}
