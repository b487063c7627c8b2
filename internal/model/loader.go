package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/cadence/internal/safetensors"
)

const (
	MarkovExt      = ".markov.json"
	SafetensorsExt = ".safetensors"
)

// KindOfPath guesses the model kind from a file name. Safetensors files
// need their metadata to tell dense and generator weights apart, so they
// report an empty kind and ok=true.
func KindOfPath(path string) (Kind, bool) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, MarkovExt):
		return KindMarkov, true
	case strings.HasSuffix(base, SafetensorsExt):
		return "", true
	}
	return "", false
}

// Load reads a model artifact, dispatching on extension and then on the
// safetensors "kind" metadata. Weights are copied out of the mapping so the
// file is closed before Load returns.
func Load(path string) (*Loaded, error) {
	kind, ok := KindOfPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized artifact %s", ErrUnknownKind, filepath.Base(path))
	}
	if kind == KindMarkov {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		m, err := DecodeMarkov(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &Loaded{Kind: KindMarkov, Path: path, Predictor: m, Normalization: m.Normalization}, nil
	}

	sf, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sf.Close() }()

	kind, err = ParseKind(sf.Metadata["kind"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	switch kind {
	case KindDense:
		d, err := loadDense(sf, sf.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &Loaded{Kind: KindDense, Path: path, Predictor: d, Normalization: d.norm}, nil
	case KindGAN:
		g, err := loadGAN(sf, sf.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &Loaded{Kind: KindGAN, Path: path, Block: g}, nil
	}
	return nil, fmt.Errorf("%s: %w: %q in safetensors", path, ErrUnknownKind, kind)
}
