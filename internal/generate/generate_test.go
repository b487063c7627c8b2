package generate

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/samcharles93/cadence/internal/logits"
	"github.com/samcharles93/cadence/internal/vocab"
)

// fixedModel returns the same distribution on every step and records the
// windows it was given.
type fixedModel struct {
	probs   []float32
	seqLen  int
	windows [][]float32
}

func (m *fixedModel) Predict(window []float32) ([]float32, error) {
	m.windows = append(m.windows, append([]float32(nil), window...))
	return append([]float32(nil), m.probs...), nil
}

func (m *fixedModel) ContextLength() int { return m.seqLen }
func (m *fixedModel) VocabSize() int     { return len(m.probs) }

type uniformModel struct {
	n, seqLen int
}

func (m uniformModel) Predict(window []float32) ([]float32, error) {
	out := make([]float32, m.n)
	for i := range out {
		out[i] = 1 / float32(m.n)
	}
	return out, nil
}

func (m uniformModel) ContextLength() int { return m.seqLen }
func (m uniformModel) VocabSize() int     { return m.n }

type failingModel struct {
	failAt int
	calls  int
}

func (m *failingModel) Predict(window []float32) ([]float32, error) {
	m.calls++
	if m.calls == m.failAt {
		return nil, errors.New("forced predict failure")
	}
	return []float32{0.5, 0.25, 0.25}, nil
}

func (m *failingModel) ContextLength() int { return 6 }
func (m *failingModel) VocabSize() int     { return 3 }

type panicModel struct{}

func (panicModel) Predict([]float32) ([]float32, error) { panic("boom") }
func (panicModel) ContextLength() int                   { return 2 }
func (panicModel) VocabSize() int                       { return 3 }

func scaleVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New([]string{"C4", "D4", "E4"})
	if err != nil {
		t.Fatalf("vocab.New: %v", err)
	}
	return v
}

func greedy() *logits.Sampler {
	return logits.NewSampler(logits.SamplerConfig{Temperature: 0})
}

func TestGenerateGreedyScenario(t *testing.T) {
	t.Parallel()
	m := &fixedModel{probs: []float32{0.1, 0.1, 0.8}, seqLen: 6}
	g := &Generator{Model: m, Vocab: scaleVocab(t), Sampler: greedy()}

	res, err := g.Generate(context.Background(), []int{0, 1, 2, 0, 1, 2}, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(res.Tokens, []string{"E4", "E4", "E4"}) {
		t.Fatalf("tokens = %v", res.Tokens)
	}
	if !reflect.DeepEqual(res.Indices, []int{2, 2, 2}) {
		t.Fatalf("indices = %v", res.Indices)
	}
	if res.Stats.Steps != 3 || res.Stats.Fallbacks != 0 {
		t.Fatalf("unexpected stats: %+v", res.Stats)
	}
}

func TestGenerateSlidesNormalizedWindow(t *testing.T) {
	t.Parallel()
	m := &fixedModel{probs: []float32{0.1, 0.1, 0.8}, seqLen: 6}
	g := &Generator{Model: m, Vocab: scaleVocab(t), Sampler: greedy()}

	if _, err := g.Generate(context.Background(), []int{0, 1, 2, 0, 1, 2}, 3); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := [][]float32{
		{0, 1.0 / 3, 2.0 / 3, 0, 1.0 / 3, 2.0 / 3},
		{1.0 / 3, 2.0 / 3, 0, 1.0 / 3, 2.0 / 3, 2.0 / 3},
		{2.0 / 3, 0, 1.0 / 3, 2.0 / 3, 2.0 / 3, 2.0 / 3},
	}
	if len(m.windows) != len(want) {
		t.Fatalf("Predict called %d times, want %d", len(m.windows), len(want))
	}
	for step, w := range m.windows {
		if len(w) != 6 {
			t.Fatalf("step %d: window length %d, want 6", step, len(w))
		}
		for i := range w {
			if w[i] != want[step][i] {
				t.Fatalf("step %d: window %v, want %v", step, w, want[step])
			}
		}
	}
}

func TestGenerateNormalizationMinusOne(t *testing.T) {
	t.Parallel()
	m := &fixedModel{probs: []float32{0.1, 0.1, 0.8}, seqLen: 2}
	g := &Generator{Model: m, Vocab: scaleVocab(t), Sampler: greedy(), Normalization: DivideBySizeMinusOne}
	if _, err := g.Generate(context.Background(), []int{0, 2}, 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.windows[0]; got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected window [0 1], got %v", got)
	}
}

func TestGenerateUsesTrailingSeed(t *testing.T) {
	t.Parallel()
	m := &fixedModel{probs: []float32{0.1, 0.1, 0.8}, seqLen: 2}
	g := &Generator{Model: m, Vocab: scaleVocab(t), Sampler: greedy()}
	if _, err := g.Generate(context.Background(), []int{2, 2, 0, 1}, 1); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := m.windows[0]; got[0] != 0 || got[1] != float32(1)/3 {
		t.Fatalf("expected trailing window [0 1/3], got %v", got)
	}
}

func TestGenerateLengthAndRange(t *testing.T) {
	t.Parallel()
	v := vocab.Build([]string{"A", "B", "C", "D", "E", "F", "G"})
	for _, length := range []int{1, 2, 17, 100} {
		g := &Generator{
			Model:   uniformModel{n: v.Size(), seqLen: 4},
			Vocab:   v,
			Sampler: logits.NewSamplerWithRand(logits.SamplerConfig{Temperature: 1.3}, rand.New(rand.NewSource(int64(length)))),
		}
		res, err := g.Generate(context.Background(), []int{0, 1, 2, 3}, length)
		if err != nil {
			t.Fatalf("length %d: %v", length, err)
		}
		if len(res.Indices) != length || len(res.Tokens) != length {
			t.Fatalf("length %d: got %d indices, %d tokens", length, len(res.Indices), len(res.Tokens))
		}
		for _, idx := range res.Indices {
			if idx < 0 || idx >= v.Size() {
				t.Fatalf("index %d out of range", idx)
			}
		}
	}
}

func TestGenerateGreedyIsDeterministic(t *testing.T) {
	t.Parallel()
	v := scaleVocab(t)
	run := func() []int {
		m := &fixedModel{probs: []float32{0.3, 0.5, 0.2}, seqLen: 3}
		g := &Generator{Model: m, Vocab: v, Sampler: greedy()}
		res, err := g.Generate(context.Background(), []int{0, 1, 2}, 20)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return res.Indices
	}
	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestGenerateStochasticNonDegenerate(t *testing.T) {
	t.Parallel()
	v := vocab.Build([]string{"A", "B", "C", "D"})
	rng := rand.New(rand.NewSource(11))
	sampler := logits.NewSamplerWithRand(logits.SamplerConfig{Temperature: 1}, rng)
	g := &Generator{Model: uniformModel{n: 4, seqLen: 3}, Vocab: v, Sampler: sampler}

	distinct := map[string]bool{}
	for i := 0; i < 100; i++ {
		res, err := g.Generate(context.Background(), []int{0, 1, 2}, 10)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		distinct[strings.Join(res.Tokens, " ")] = true
	}
	if len(distinct) < 2 {
		t.Fatalf("100 stochastic runs produced a single sequence")
	}
}

func TestGenerateSeededIsReproducible(t *testing.T) {
	t.Parallel()
	v := vocab.Build([]string{"A", "B", "C", "D"})
	run := func() []int {
		s := logits.NewSampler(logits.SamplerConfig{Seed: 123, Temperature: 0.7})
		g := &Generator{Model: uniformModel{n: 4, seqLen: 3}, Vocab: v, Sampler: s}
		res, err := g.Generate(context.Background(), []int{3, 2, 1}, 25)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return res.Indices
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different sequences: %v vs %v", a, b)
	}
}

type nanModel struct{}

func (nanModel) Predict([]float32) ([]float32, error) {
	return []float32{0.1, float32(math.NaN()), 0.8}, nil
}
func (nanModel) ContextLength() int { return 6 }
func (nanModel) VocabSize() int     { return 3 }

func TestGenerateFallsBackOnDegenerateDistribution(t *testing.T) {
	t.Parallel()
	sampler := logits.NewSamplerWithRand(logits.SamplerConfig{Temperature: 1}, rand.New(rand.NewSource(1)))
	g := &Generator{Model: nanModel{}, Vocab: scaleVocab(t), Sampler: sampler}

	res, err := g.Generate(context.Background(), []int{0, 1, 2, 0, 1, 2}, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(res.Tokens, []string{"E4", "E4", "E4"}) {
		t.Fatalf("expected greedy fallback tokens, got %v", res.Tokens)
	}
	if res.Stats.Fallbacks != 3 {
		t.Fatalf("Fallbacks = %d, want 3", res.Stats.Fallbacks)
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()
	v := scaleVocab(t)
	ok := &fixedModel{probs: []float32{0.1, 0.1, 0.8}, seqLen: 3}
	seed := []int{0, 1, 2}

	tests := []struct {
		name   string
		g      *Generator
		seed   []int
		length int
		want   error
	}{
		{"nil model", &Generator{Vocab: v, Sampler: greedy()}, seed, 3, ErrModelUnavailable},
		{"nil vocab", &Generator{Model: ok, Sampler: greedy()}, seed, 3, ErrInvalidVocabulary},
		{"empty vocab", &Generator{Model: ok, Vocab: vocab.Build(nil), Sampler: greedy()}, seed, 3, ErrInvalidVocabulary},
		{"vocab mismatch", &Generator{Model: &fixedModel{probs: []float32{0.5, 0.5}, seqLen: 3}, Vocab: v, Sampler: greedy()}, seed, 3, ErrInvalidVocabulary},
		{"short seed", &Generator{Model: ok, Vocab: v, Sampler: greedy()}, []int{0, 1}, 3, ErrInvalidContext},
		{"empty seed", &Generator{Model: ok, Vocab: v, Sampler: greedy()}, nil, 3, ErrInvalidContext},
		{"seed out of range", &Generator{Model: ok, Vocab: v, Sampler: greedy()}, []int{0, 1, 3}, 3, ErrInvalidContext},
		{"zero length", &Generator{Model: ok, Vocab: v, Sampler: greedy()}, seed, 0, ErrInvalidArgument},
		{"negative length", &Generator{Model: ok, Vocab: v, Sampler: greedy()}, seed, -4, ErrInvalidArgument},
		{"negative temperature", &Generator{Model: ok, Vocab: v, Sampler: logits.NewSampler(logits.SamplerConfig{Temperature: -1})}, seed, 3, ErrInvalidArgument},
		{"first step failure", &Generator{Model: &failingModel{failAt: 1}, Vocab: v, Sampler: greedy()}, []int{0, 1, 2, 0, 1, 2}, 3, ErrModelUnavailable},
		{"panic", &Generator{Model: panicModel{}, Vocab: v, Sampler: greedy()}, []int{0, 1}, 3, ErrModelUnavailable},
	}
	for _, tc := range tests {
		res, err := tc.g.Generate(context.Background(), tc.seed, tc.length)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if res != nil {
			t.Errorf("%s: expected no partial result, got %v", tc.name, res.Indices)
		}
	}
}

func TestGenerateMidSequenceFailureReturnsNoTokens(t *testing.T) {
	t.Parallel()
	g := &Generator{Model: &failingModel{failAt: 3}, Vocab: scaleVocab(t), Sampler: greedy()}
	res, err := g.Generate(context.Background(), []int{0, 1, 2, 0, 1, 2}, 5)
	if err == nil || !strings.Contains(err.Error(), "forced predict failure") {
		t.Fatalf("expected forced failure, got %v", err)
	}
	if errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("mid-sequence failure should not be reported as unavailable: %v", err)
	}
	if res != nil {
		t.Fatalf("expected no partial output")
	}
}

func TestGeneratePanicMessage(t *testing.T) {
	t.Parallel()
	g := &Generator{Model: panicModel{}, Vocab: scaleVocab(t), Sampler: greedy()}
	_, err := g.Generate(context.Background(), []int{0, 1}, 1)
	if err == nil || !strings.Contains(err.Error(), "panic in Predict") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &Generator{Model: &fixedModel{probs: []float32{0.1, 0.1, 0.8}, seqLen: 3}, Vocab: scaleVocab(t), Sampler: greedy()}
	res, err := g.Generate(ctx, []int{0, 1, 2}, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Fatal("expected no partial output")
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	if err := ValidateConfig(Config{Length: 1, Temperature: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateConfig(Config{Length: 10, Temperature: 5}); err != nil {
		t.Fatalf("large finite temperatures are allowed: %v", err)
	}
	if err := ValidateConfig(Config{Length: 1, Temperature: -0.1}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
