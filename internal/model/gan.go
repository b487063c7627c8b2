package model

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"github.com/samcharles93/cadence/internal/safetensors"
	"github.com/samcharles93/cadence/internal/tensor"
)

const leakySlope = 0.2

// DefaultGANHidden are the hidden widths of a freshly initialized generator.
var DefaultGANHidden = []int{256, 512, 1024}

type layer struct {
	w tensor.Mat
	b []float32
}

// GAN is the generator half of an adversarial model. It maps a Gaussian
// latent vector through LeakyReLU layers to a sigmoid output of block
// values in [0,1], each scaled to a vocabulary index.
type GAN struct {
	latent, vocab, block int
	layers               []layer
}

// NewRandomGAN builds an untrained generator. hidden lists the widths of
// the hidden layers; nil uses DefaultGANHidden.
func NewRandomGAN(vocab, latent, block int, hidden []int, seed int64) (*GAN, error) {
	if vocab <= 0 || latent <= 0 || block <= 0 {
		return nil, fmt.Errorf("gan: dimensions must be positive, got vocab=%d latent=%d block=%d", vocab, latent, block)
	}
	if hidden == nil {
		hidden = DefaultGANHidden
	}
	widths := append(append([]int{latent}, hidden...), block)
	g := &GAN{latent: latent, vocab: vocab, block: block}
	for i := 1; i < len(widths); i++ {
		if widths[i] <= 0 {
			return nil, fmt.Errorf("gan: hidden width %d must be positive", widths[i])
		}
		w := tensor.NewMat(widths[i], widths[i-1])
		tensor.FillRand(&w, seed+int64(i)*31, fanInScale(widths[i-1]))
		g.layers = append(g.layers, layer{w: w, b: make([]float32, widths[i])})
	}
	return g, nil
}

func (g *GAN) BlockLength() int { return g.block }
func (g *GAN) VocabSize() int   { return g.vocab }
func (g *GAN) LatentDim() int   { return g.latent }

// Forward runs the network on a latent vector and returns block values in
// [0,1].
func (g *GAN) Forward(z []float32) ([]float32, error) {
	if len(z) != g.latent {
		return nil, fmt.Errorf("gan: latent has %d values, want %d", len(z), g.latent)
	}
	x := z
	for i := range g.layers {
		l := &g.layers[i]
		y := make([]float32, l.w.R)
		tensor.Affine(y, &l.w, x, l.b)
		if i < len(g.layers)-1 {
			tensor.LeakyReLU(y, leakySlope)
		} else {
			tensor.Sigmoid(y)
		}
		x = y
	}
	return x, nil
}

// GenerateBlock samples N(0,1) noise from rng and maps the output to indices
// int(v*vocab), clamped into the vocabulary.
func (g *GAN) GenerateBlock(rng *rand.Rand) ([]int, error) {
	if rng == nil {
		return nil, errors.New("gan: nil random source")
	}
	z := make([]float32, g.latent)
	for i := range z {
		z[i] = float32(rng.NormFloat64())
	}
	vals, err := g.Forward(z)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = g.scaleToIndex(v)
	}
	return out, nil
}

func (g *GAN) scaleToIndex(v float32) int {
	if math.IsNaN(float64(v)) {
		return 0
	}
	idx := int(v * float32(g.vocab))
	return max(0, min(idx, g.vocab-1))
}

func (g *GAN) Encode(w io.Writer) error {
	ts := make([]safetensors.Tensor, 0, 2*len(g.layers))
	for i := range g.layers {
		l := &g.layers[i]
		ts = append(ts,
			safetensors.Tensor{Name: layerName(i, "weight"), Shape: l.w.Shape(), Data: l.w.Data},
			safetensors.Tensor{Name: layerName(i, "bias"), Shape: []int{len(l.b)}, Data: l.b},
		)
	}
	return safetensors.Encode(w, ts, map[string]string{
		"kind":           string(KindGAN),
		"vocab_size":     strconv.Itoa(g.vocab),
		"context_length": strconv.Itoa(g.block),
		"latent_dim":     strconv.Itoa(g.latent),
		"layers":         strconv.Itoa(len(g.layers)),
	})
}

func layerName(i int, part string) string {
	return "layers." + strconv.Itoa(i) + "." + part
}

func loadGAN(src tensorSource, meta map[string]string) (*GAN, error) {
	g := &GAN{}
	var err error
	if g.vocab, err = metaInt(meta, "vocab_size"); err != nil {
		return nil, err
	}
	if g.block, err = metaInt(meta, "context_length"); err != nil {
		return nil, err
	}
	if g.latent, err = metaInt(meta, "latent_dim"); err != nil {
		g.latent = DefaultLatentDim
	}
	n, err := metaInt(meta, "layers")
	if err != nil {
		return nil, err
	}
	in := g.latent
	for i := 0; i < n; i++ {
		b, info, err := src.ReadTensorF32(layerName(i, "bias"))
		if err != nil {
			return nil, err
		}
		if len(info.Shape) != 1 {
			return nil, fmt.Errorf("%w: %s is %v", ErrShape, layerName(i, "bias"), info.Shape)
		}
		out := info.Shape[0]
		w, err := readMat(src, layerName(i, "weight"), out, in)
		if err != nil {
			return nil, err
		}
		g.layers = append(g.layers, layer{w: w, b: b})
		in = out
	}
	if in != g.block {
		return nil, fmt.Errorf("%w: final layer emits %d values, block length is %d", ErrShape, in, g.block)
	}
	return g, nil
}
