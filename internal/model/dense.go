package model

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/samcharles93/cadence/internal/generate"
	"github.com/samcharles93/cadence/internal/safetensors"
	"github.com/samcharles93/cadence/internal/tensor"
)

const DefaultHidden = 256

// Dense predicts the next token from the whole normalized window with one
// tanh hidden layer followed by a softmax over the vocabulary.
//
// Weights are read-only after construction; Predict allocates its own
// scratch so a Dense may be shared between goroutines.
type Dense struct {
	vocab, context, hidden int
	norm                   generate.Normalization

	hiddenW tensor.Mat // [hidden x context]
	hiddenB []float32  // [hidden]
	outW    tensor.Mat // [vocab x hidden]
	outB    []float32  // [vocab]
}

// NewRandomDense builds an untrained predictor with weights scaled by the
// fan-in of each layer. The same seed yields the same weights.
func NewRandomDense(vocab, context, hidden int, seed int64) (*Dense, error) {
	if vocab <= 0 || context <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("dense: dimensions must be positive, got vocab=%d context=%d hidden=%d", vocab, context, hidden)
	}
	d := &Dense{
		vocab:   vocab,
		context: context,
		hidden:  hidden,
		hiddenW: tensor.NewMat(hidden, context),
		hiddenB: make([]float32, hidden),
		outW:    tensor.NewMat(vocab, hidden),
		outB:    make([]float32, vocab),
	}
	tensor.FillRand(&d.hiddenW, seed+11, fanInScale(context))
	tensor.FillRand(&d.outW, seed+23, fanInScale(hidden))
	return d, nil
}

func fanInScale(fanIn int) float32 {
	return float32(2 / math.Sqrt(float64(fanIn)))
}

func (d *Dense) ContextLength() int { return d.context }
func (d *Dense) VocabSize() int     { return d.vocab }
func (d *Dense) Hidden() int        { return d.hidden }

// Normalization is the window scaling the weights expect.
func (d *Dense) Normalization() generate.Normalization { return d.norm }

func (d *Dense) Predict(window []float32) ([]float32, error) {
	if len(window) != d.context {
		return nil, fmt.Errorf("dense: window has %d values, want %d", len(window), d.context)
	}
	h := make([]float32, d.hidden)
	tensor.Affine(h, &d.hiddenW, window, d.hiddenB)
	tensor.Tanh(h)

	probs := make([]float32, d.vocab)
	tensor.Affine(probs, &d.outW, h, d.outB)
	tensor.Softmax(probs)
	return probs, nil
}

func (d *Dense) tensors() []safetensors.Tensor {
	return []safetensors.Tensor{
		{Name: "hidden.weight", Shape: d.hiddenW.Shape(), Data: d.hiddenW.Data},
		{Name: "hidden.bias", Shape: []int{d.hidden}, Data: d.hiddenB},
		{Name: "output.weight", Shape: d.outW.Shape(), Data: d.outW.Data},
		{Name: "output.bias", Shape: []int{d.vocab}, Data: d.outB},
	}
}

// Encode writes the weights in safetensors layout.
func (d *Dense) Encode(w io.Writer) error {
	return safetensors.Encode(w, d.tensors(), map[string]string{
		"kind":           string(KindDense),
		"vocab_size":     strconv.Itoa(d.vocab),
		"context_length": strconv.Itoa(d.context),
		"normalization":  d.norm.String(),
	})
}

func loadDense(src tensorSource, meta map[string]string) (*Dense, error) {
	vocab, err := metaInt(meta, "vocab_size")
	if err != nil {
		return nil, err
	}
	context, err := metaInt(meta, "context_length")
	if err != nil {
		return nil, err
	}
	_, info, err := src.ReadTensorF32("hidden.bias")
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 1 {
		return nil, fmt.Errorf("%w: hidden.bias is %v", ErrShape, info.Shape)
	}
	norm, err := generate.ParseNormalization(meta["normalization"])
	if err != nil {
		return nil, err
	}
	d := &Dense{vocab: vocab, context: context, hidden: info.Shape[0], norm: norm}
	if d.hiddenW, err = readMat(src, "hidden.weight", d.hidden, context); err != nil {
		return nil, err
	}
	if d.hiddenB, err = readVec(src, "hidden.bias", d.hidden); err != nil {
		return nil, err
	}
	if d.outW, err = readMat(src, "output.weight", vocab, d.hidden); err != nil {
		return nil, err
	}
	if d.outB, err = readVec(src, "output.bias", vocab); err != nil {
		return nil, err
	}
	return d, nil
}
