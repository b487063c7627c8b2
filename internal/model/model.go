// Package model implements the note predictors behind generation: a back-off
// Markov chain fitted from the corpus, a dense window predictor, and a
// generator network that emits whole blocks of notes.
package model

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/samcharles93/cadence/internal/generate"
	"github.com/samcharles93/cadence/internal/safetensors"
	"github.com/samcharles93/cadence/internal/tensor"
)

type Kind string

const (
	KindMarkov Kind = "markov"
	KindDense  Kind = "dense"
	KindGAN    Kind = "gan"
)

// DefaultLatentDim is the generator noise dimension.
const DefaultLatentDim = 100

var (
	ErrUnknownKind = errors.New("unknown model kind")
	ErrShape       = errors.New("tensor shape mismatch")
)

// ParseKind accepts the short names used on the command line and in
// artifact metadata. "lstm" is an alias for dense.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "markov":
		return KindMarkov, nil
	case "dense", "lstm":
		return KindDense, nil
	case "gan":
		return KindGAN, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// BlockModel generates a fixed-length block of vocabulary indices in one
// pass rather than token by token.
type BlockModel interface {
	GenerateBlock(rng *rand.Rand) ([]int, error)
	BlockLength() int
	VocabSize() int
}

// Loaded is a model read from disk. Exactly one of Predictor and Block is set.
// Normalization comes from the artifact and applies to Predictor windows.
type Loaded struct {
	Kind          Kind
	Path          string
	Predictor     generate.Model
	Block         BlockModel
	Normalization generate.Normalization
}

func (l *Loaded) VocabSize() int {
	switch {
	case l.Predictor != nil:
		return l.Predictor.VocabSize()
	case l.Block != nil:
		return l.Block.VocabSize()
	}
	return 0
}

// ContextLength is the window a predictor consumes, or the block length of
// a block model.
func (l *Loaded) ContextLength() int {
	switch {
	case l.Predictor != nil:
		return l.Predictor.ContextLength()
	case l.Block != nil:
		return l.Block.BlockLength()
	}
	return 0
}

type tensorSource interface {
	ReadTensorF32(name string) ([]float32, safetensors.TensorInfo, error)
}

// readMat reads a 2-D tensor and checks it against the expected dimensions.
func readMat(src tensorSource, name string, rows, cols int) (tensor.Mat, error) {
	data, info, err := src.ReadTensorF32(name)
	if err != nil {
		return tensor.Mat{}, err
	}
	if len(info.Shape) != 2 || info.Shape[0] != rows || info.Shape[1] != cols {
		return tensor.Mat{}, fmt.Errorf("%w: %s is %v, want [%d %d]", ErrShape, name, info.Shape, rows, cols)
	}
	return tensor.NewMatFromData(rows, cols, data)
}

func readVec(src tensorSource, name string, n int) ([]float32, error) {
	data, info, err := src.ReadTensorF32(name)
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 1 || info.Shape[0] != n {
		return nil, fmt.Errorf("%w: %s is %v, want [%d]", ErrShape, name, info.Shape, n)
	}
	return data, nil
}

func metaInt(meta map[string]string, key string) (int, error) {
	v, ok := meta[key]
	if !ok {
		return 0, fmt.Errorf("metadata %s missing", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("metadata %s: invalid value %q", key, v)
	}
	return n, nil
}
