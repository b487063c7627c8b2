package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/cadence/internal/corpus"
	"github.com/samcharles93/cadence/internal/generate"
	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/logits"
	"github.com/samcharles93/cadence/internal/midi"
	"github.com/samcharles93/cadence/internal/model"
	"github.com/samcharles93/cadence/internal/vocab"
)

// Plan is everything Arrange needs. Model, Vocab and Corpus are shared
// read-only between the parts.
type Plan struct {
	Model  *model.Loaded
	Vocab  *vocab.Vocabulary
	Corpus *corpus.Corpus
	Parts  []Part
	Length int
	Seed   int64
	Log    logger.Logger
}

// Track is a generated part.
type Track struct {
	Part   Part
	Tokens []string
	Stats  generate.Stats
}

// Arrange generates every part concurrently. Each part draws its own seed
// window and sampling noise from a source derived from Plan.Seed and the
// part index, so a plan is reproducible regardless of scheduling. The first
// failing part cancels the rest.
func Arrange(ctx context.Context, p Plan) ([]Track, error) {
	if p.Model == nil || (p.Model.Predictor == nil && p.Model.Block == nil) {
		return nil, fmt.Errorf("%w: no model loaded", generate.ErrModelUnavailable)
	}
	if p.Vocab.Size() == 0 {
		return nil, fmt.Errorf("%w: vocabulary is empty", generate.ErrInvalidVocabulary)
	}
	if len(p.Parts) == 0 {
		return nil, fmt.Errorf("%w: no parts to arrange", generate.ErrInvalidArgument)
	}
	if p.Length <= 0 {
		return nil, fmt.Errorf("%w: length must be positive, got %d", generate.ErrInvalidArgument, p.Length)
	}
	log := logger.OrDiscard(p.Log)

	tracks := make([]Track, len(p.Parts))
	g, ctx := errgroup.WithContext(ctx)
	for i, part := range p.Parts {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(PartSeed(p.Seed, i)))
			plog := log.With("part", part.Role)
			tokens, stats, err := p.generatePart(ctx, rng, part, plog)
			if err != nil {
				return fmt.Errorf("%s: %w", part.Role, err)
			}
			tracks[i] = Track{Part: part, Tokens: tokens, Stats: stats}
			plog.Debug("part generated", "tokens", len(tokens), "fallbacks", stats.Fallbacks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (p *Plan) generatePart(ctx context.Context, rng *rand.Rand, part Part, log logger.Logger) ([]string, generate.Stats, error) {
	if p.Model.Block != nil {
		return p.generateBlocks(ctx, rng)
	}
	if p.Corpus == nil {
		return nil, generate.Stats{}, errors.New("no corpus to seed from")
	}
	seed, err := p.Corpus.SeedWindow(rng, p.Vocab, p.Model.Predictor.ContextLength())
	if err != nil {
		return nil, generate.Stats{}, fmt.Errorf("%w: %w", generate.ErrInvalidContext, err)
	}
	gen := &generate.Generator{
		Model:         p.Model.Predictor,
		Vocab:         p.Vocab,
		Sampler:       logits.NewSamplerWithRand(logits.SamplerConfig{Temperature: part.Temperature}, rng),
		Normalization: p.Model.Normalization,
		Log:           log,
	}
	res, err := gen.Generate(ctx, seed, p.Length)
	if err != nil {
		return nil, generate.Stats{}, err
	}
	return res.Tokens, res.Stats, nil
}

// generateBlocks tiles whole generator blocks until Length tokens exist and
// crops the last one.
func (p *Plan) generateBlocks(ctx context.Context, rng *rand.Rand) ([]string, generate.Stats, error) {
	bm := p.Model.Block
	if n, vn := bm.VocabSize(), p.Vocab.Size(); n != vn {
		return nil, generate.Stats{}, fmt.Errorf("%w: model emits %d classes, vocabulary has %d", generate.ErrInvalidVocabulary, n, vn)
	}
	if bm.BlockLength() <= 0 {
		return nil, generate.Stats{}, fmt.Errorf("%w: block length %d", generate.ErrModelUnavailable, bm.BlockLength())
	}
	indices := make([]int, 0, p.Length+bm.BlockLength())
	for len(indices) < p.Length {
		if err := ctx.Err(); err != nil {
			return nil, generate.Stats{}, err
		}
		block, err := bm.GenerateBlock(rng)
		if err != nil {
			return nil, generate.Stats{}, fmt.Errorf("%w: %w", generate.ErrModelUnavailable, err)
		}
		indices = append(indices, block...)
	}
	indices = indices[:p.Length]
	tokens, err := p.Vocab.Decode(indices)
	if err != nil {
		return nil, generate.Stats{}, err
	}
	return tokens, generate.Stats{Steps: len(tokens)}, nil
}

// PartSeed mixes a request seed with a part index so neighbouring parts get
// unrelated streams.
func PartSeed(seed int64, part int) int64 {
	z := uint64(seed) + uint64(part+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

// Song renders tracks as a MIDI file. Parts take channels in order, skipping
// the percussion channel.
func Song(tracks []Track, bpm float64) (*midi.File, error) {
	f := &midi.File{BPM: bpm}
	ch := uint8(0)
	for _, t := range tracks {
		if ch == midi.PercussionChannel {
			ch++
		}
		mt, err := midi.TrackFromTokens(t.Part.Instrument.Name, t.Part.Instrument.Program, ch, t.Tokens, t.Part.Octave)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Part.Role, err)
		}
		f.Tracks = append(f.Tracks, mt)
		ch++
	}
	return f, nil
}
