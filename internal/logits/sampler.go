package logits

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Epsilon is added to every probability before taking its log so that zero
// entries stay finite under temperature reweighting.
const Epsilon = 1e-7

// DefaultTolerance bounds |sum(p)-1| for a distribution to be drawable.
// It equals sqrt of the float64 machine epsilon.
const DefaultTolerance = 1.4901161193847656e-08

var ErrInvalidDistribution = errors.New("probabilities do not form a valid distribution")

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	// Seed seeds the random source. A negative seed uses the clock.
	Seed int64
	// Temperature 0 selects greedy decoding.
	Temperature float64
	// Tolerance overrides DefaultTolerance when positive.
	Tolerance float64
}

// Sampler picks the next token index from a probability distribution. A
// Sampler owns scratch space and a random source, so it must not be shared
// between goroutines.
type Sampler struct {
	rng       *rand.Rand
	cfg       SamplerConfig
	greedy    bool
	prob      []float64
	reweight  func(dst []float64, probs []float32, temperature float64) []float64
	fallbacks int
}

// NewSampler returns a sampler with its own random source seeded from cfg.
func NewSampler(cfg SamplerConfig) *Sampler {
	seed := cfg.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return NewSamplerWithRand(cfg, rand.New(rand.NewSource(seed)))
}

// NewSamplerWithRand returns a sampler drawing from rng. cfg.Seed is ignored.
func NewSamplerWithRand(cfg SamplerConfig, rng *rand.Rand) *Sampler {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Sampler{
		rng:      rng,
		cfg:      cfg,
		greedy:   cfg.Temperature <= 0,
		reweight: Reweight,
	}
}

// Greedy reports whether the sampler always returns the argmax.
func (s *Sampler) Greedy() bool { return s.greedy }

// Temperature returns the configured temperature.
func (s *Sampler) Temperature() float64 { return s.cfg.Temperature }

// Fallbacks returns how many draws fell back to argmax because the reweighted
// distribution was not a valid simplex.
func (s *Sampler) Fallbacks() int { return s.fallbacks }

// Sample draws a single index from probs. The steps are:
//
//  1. With temperature 0 the argmax is returned.
//  2. Otherwise probs are reweighted by exp(log(p+eps)/T) and renormalized.
//  3. One index is drawn from the reweighted distribution.
//  4. If the reweighted values are not a valid distribution the argmax of
//     probs is returned and degenerate is true.
func (s *Sampler) Sample(probs []float32) (idx int, degenerate bool) {
	if s.greedy {
		return Argmax(probs), false
	}
	s.prob = s.reweight(s.prob, probs, s.cfg.Temperature)
	idx, err := Categorical(s.rng, s.prob, s.cfg.Tolerance)
	if err != nil {
		s.fallbacks++
		return Argmax(probs), true
	}
	return idx, false
}

// Reweight applies softmax-with-temperature to a probability vector and
// stores the result in dst, which is grown as needed.
func Reweight(dst []float64, probs []float32, temperature float64) []float64 {
	if cap(dst) < len(probs) {
		dst = make([]float64, len(probs))
	}
	dst = dst[:len(probs)]
	if len(probs) == 0 {
		return dst
	}
	inv := 1 / temperature
	maxv := math.Inf(-1)
	for i, p := range probs {
		v := math.Log(float64(p)+Epsilon) * inv
		dst[i] = v
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range dst {
		e := math.Exp(v - maxv)
		dst[i] = e
		sum += e
	}
	for i := range dst {
		dst[i] /= sum
	}
	return dst
}

// Categorical draws an index with probability p[i]. It fails when an entry
// is negative or not finite, or when the entries do not sum to 1 within
// tolerance.
func Categorical(rng *rand.Rand, p []float64, tolerance float64) (int, error) {
	if len(p) == 0 {
		return 0, ErrInvalidDistribution
	}
	var sum float64
	for _, v := range p {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrInvalidDistribution
		}
		sum += v
	}
	if math.Abs(sum-1) > tolerance {
		return 0, ErrInvalidDistribution
	}

	r := rng.Float64() * sum
	var c float64
	last := 0
	for i, v := range p {
		if v == 0 {
			continue
		}
		c += v
		last = i
		if r < c {
			return i, nil
		}
	}
	return last, nil
}

// Argmax returns the index of the first maximum value, ignoring NaN. It
// returns 0 when x is empty or holds only NaN.
func Argmax(x []float32) int {
	best := -1
	var bestV float32
	for i, v := range x {
		if v != v {
			continue
		}
		if best < 0 || v > bestV {
			best, bestV = i, v
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
