// Package generate runs autoregressive note generation: predict the next
// token from a sliding context window, sample it, append it, slide.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/logits"
	"github.com/samcharles93/cadence/internal/vocab"
)

var (
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrInvalidContext    = errors.New("invalid context")
	ErrInvalidVocabulary = errors.New("invalid vocabulary")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Model predicts a distribution over the vocabulary from a normalized
// context window. Implementations must be safe for concurrent Predict calls
// when shared between generators.
type Model interface {
	// Predict consumes exactly ContextLength values in [0,1] and returns
	// VocabSize probabilities. window is reused between calls and must not
	// be retained.
	Predict(window []float32) ([]float32, error)
	ContextLength() int
	VocabSize() int
}

// Normalization selects the divisor applied to raw indices before Predict.
// It must match what the model was trained with.
type Normalization int

const (
	// DivideBySize divides by n_vocab.
	DivideBySize Normalization = iota
	// DivideBySizeMinusOne divides by n_vocab-1 so the last index maps to 1.
	DivideBySizeMinusOne
)

// Scale returns the divisor for a vocabulary of n tokens.
func (n Normalization) Scale(vocabSize int) float32 {
	if n == DivideBySizeMinusOne && vocabSize > 1 {
		return float32(vocabSize - 1)
	}
	return float32(vocabSize)
}

// String is the name stored in model artifacts.
func (n Normalization) String() string {
	if n == DivideBySizeMinusOne {
		return "vocab_size_minus_one"
	}
	return "vocab_size"
}

// ParseNormalization reads a stored name. The empty string is DivideBySize.
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "", "vocab_size":
		return DivideBySize, nil
	case "vocab_size_minus_one":
		return DivideBySizeMinusOne, nil
	}
	return DivideBySize, fmt.Errorf("unknown normalization %q", s)
}

func (n Normalization) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (n *Normalization) UnmarshalText(b []byte) error {
	v, err := ParseNormalization(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

type Stats struct {
	Steps     int
	Fallbacks int
	Duration  time.Duration
}

type Result struct {
	Indices []int
	Tokens  []string
	Stats   Stats
}

// Generator binds a model and vocabulary to a sampler. The model and
// vocabulary are only read; the sampler is owned by this generator.
type Generator struct {
	Model         Model
	Vocab         *vocab.Vocabulary
	Sampler       *logits.Sampler
	Normalization Normalization
	Log           logger.Logger
}

// Config describes a single generation call.
type Config struct {
	Length      int
	Temperature float64
}

// ValidateConfig rejects non-positive lengths and temperatures that are
// negative or not finite.
func ValidateConfig(cfg Config) error {
	if cfg.Length <= 0 {
		return fmt.Errorf("%w: length must be positive, got %d", ErrInvalidArgument, cfg.Length)
	}
	if cfg.Temperature < 0 || math.IsNaN(cfg.Temperature) || math.IsInf(cfg.Temperature, 0) {
		return fmt.Errorf("%w: temperature must be a finite non-negative number, got %v", ErrInvalidArgument, cfg.Temperature)
	}
	return nil
}

// Generate produces exactly length tokens continuing seed. seed must hold at
// least ContextLength valid indices; only the trailing ContextLength are
// used. On any error no tokens are returned.
func (g *Generator) Generate(ctx context.Context, seed []int, length int) (*Result, error) {
	start := time.Now()
	if err := g.validate(seed, length); err != nil {
		return nil, err
	}
	log := logger.OrDiscard(g.Log)

	n := g.Vocab.Size()
	win := NewWindow(seed, g.Model.ContextLength())
	scale := g.Normalization.Scale(n)
	fallbacksBefore := g.Sampler.Fallbacks()

	out := make([]int, 0, length)
	var input []float32
	for step := 0; step < length; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		input = win.Normalize(input, scale)
		probs, err := safePredict(g.Model, input)
		if err == nil && len(probs) != n {
			err = fmt.Errorf("model returned %d probabilities for a vocabulary of %d", len(probs), n)
		}
		if err != nil {
			if step == 0 {
				return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
			}
			return nil, fmt.Errorf("predict step %d: %w", step, err)
		}

		idx, degenerate := g.Sampler.Sample(probs)
		if degenerate {
			log.Debug("degenerate distribution, using greedy pick", "step", step, "index", idx)
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("sampler returned index %d outside [0,%d)", idx, n)
		}
		out = append(out, idx)
		win.Push(idx)
	}

	tokens, err := g.Vocab.Decode(out)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Indices: out,
		Tokens:  tokens,
		Stats: Stats{
			Steps:     len(out),
			Fallbacks: g.Sampler.Fallbacks() - fallbacksBefore,
			Duration:  time.Since(start),
		},
	}
	log.Debug("sequence generated",
		"tokens", res.Stats.Steps,
		"fallbacks", res.Stats.Fallbacks,
		"temperature", g.Sampler.Temperature(),
		"elapsed", res.Stats.Duration,
	)
	return res, nil
}

func (g *Generator) validate(seed []int, length int) error {
	if g.Model == nil {
		return fmt.Errorf("%w: no model loaded", ErrModelUnavailable)
	}
	if g.Sampler == nil {
		return fmt.Errorf("%w: no sampler configured", ErrInvalidArgument)
	}
	n := g.Vocab.Size()
	if n == 0 {
		return fmt.Errorf("%w: vocabulary is empty", ErrInvalidVocabulary)
	}
	if mv := g.Model.VocabSize(); mv != n {
		return fmt.Errorf("%w: model predicts %d classes, vocabulary has %d", ErrInvalidVocabulary, mv, n)
	}
	if err := ValidateConfig(Config{Length: length, Temperature: g.Sampler.Temperature()}); err != nil {
		return err
	}
	seqLen := g.Model.ContextLength()
	if seqLen <= 0 {
		return fmt.Errorf("%w: model context length %d", ErrModelUnavailable, seqLen)
	}
	if len(seed) < seqLen {
		return fmt.Errorf("%w: seed has %d tokens, window needs %d", ErrInvalidContext, len(seed), seqLen)
	}
	for i, idx := range seed[len(seed)-seqLen:] {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: seed index %d at position %d outside [0,%d)", ErrInvalidContext, idx, i, n)
		}
	}
	return nil
}

func safePredict(m Model, window []float32) (probs []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Predict: %v", r)
		}
	}()
	return m.Predict(window)
}
