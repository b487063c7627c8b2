// Package compose turns a composition request into a rendered MIDI file:
// it resolves the model, seeds every part from the corpus, arranges the
// ensemble and encodes the result.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/cadence/internal/corpus"
	"github.com/samcharles93/cadence/internal/ensemble"
	"github.com/samcharles93/cadence/internal/generate"
	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/midi"
	"github.com/samcharles93/cadence/internal/workspace"
)

const (
	DefaultLength      = 100
	DefaultTemperature = 1.0
	DefaultBPM         = midi.DefaultBPM

	// MaxLength bounds a single request.
	MaxLength = 10000
	MaxBPM    = 400
)

// Request describes one composition. Zero values take the defaults. A nil
// Temperature or Seed takes the default; zero is a valid value for both.
type Request struct {
	Model       string   `json:"model,omitempty"`
	Length      int      `json:"length,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Instrument  string   `json:"instrument,omitempty"`
	Ensemble    string   `json:"ensemble,omitempty"`
	BPM         float64  `json:"bpm,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// Part summarises one generated voice.
type Part struct {
	Role        string   `json:"role"`
	Instrument  string   `json:"instrument"`
	Program     uint8    `json:"program"`
	Channel     uint8    `json:"channel"`
	Temperature float64  `json:"temperature"`
	Octave      int      `json:"octave"`
	Tokens      []string `json:"tokens"`
	Fallbacks   int      `json:"fallbacks"`
}

type Composition struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Model    string        `json:"model"`
	Ensemble ensemble.Mode `json:"ensemble"`
	BPM      float64       `json:"bpm"`
	Seed     int64         `json:"seed"`
	Parts    []Part        `json:"parts"`
	MIDI     []byte        `json:"-"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

type Composer struct {
	Workspace *workspace.Workspace
	Models    ModelProvider
	Log       logger.Logger
	// Now is the clock used for default seeds.
	Now func() time.Time
}

func NewComposer(ws *workspace.Workspace, models ModelProvider, log logger.Logger) *Composer {
	return &Composer{Workspace: ws, Models: models, Log: log, Now: time.Now}
}

// resolved is a Request with defaults applied and names parsed.
type resolved struct {
	Request
	temperature float64
	seed        int64
	mode        ensemble.Mode
	lead        ensemble.Instrument
}

func (c *Composer) resolve(req Request) (resolved, error) {
	r := resolved{Request: req, temperature: DefaultTemperature}
	if r.Length == 0 {
		r.Length = DefaultLength
	}
	if r.Length < 0 || r.Length > MaxLength {
		return r, fmt.Errorf("%w: length must be in 1..%d, got %d", generate.ErrInvalidArgument, MaxLength, r.Length)
	}
	if req.Temperature != nil {
		r.temperature = *req.Temperature
	}
	if err := generate.ValidateConfig(generate.Config{Length: r.Length, Temperature: r.temperature}); err != nil {
		return r, err
	}
	if r.BPM == 0 {
		r.BPM = DefaultBPM
	}
	if r.BPM < 0 || r.BPM > MaxBPM || math.IsNaN(r.BPM) {
		return r, fmt.Errorf("%w: bpm must be in (0, %d], got %v", generate.ErrInvalidArgument, MaxBPM, r.BPM)
	}
	var err error
	if r.mode, err = ensemble.ParseMode(req.Ensemble); err != nil {
		return r, fmt.Errorf("%w: %w", generate.ErrInvalidArgument, err)
	}
	if r.lead, err = ensemble.ParseInstrument(req.Instrument); err != nil {
		return r, fmt.Errorf("%w: %w", generate.ErrInvalidArgument, err)
	}
	if req.Seed != nil {
		r.seed = *req.Seed
	} else {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		r.seed = now().UnixNano()
	}
	return r, nil
}

// Compose runs one request end to end. Nothing is written to disk; see
// Composition.SaveTo.
func (c *Composer) Compose(ctx context.Context, req Request) (*Composition, error) {
	start := time.Now()
	if c.Workspace == nil || c.Models == nil {
		return nil, fmt.Errorf("%w: composer has no workspace", generate.ErrModelUnavailable)
	}
	r, err := c.resolve(req)
	if err != nil {
		return nil, err
	}
	log := logger.OrDiscard(c.Log).With("ensemble", r.mode, "seed", r.seed)

	loaded, err := c.Models.Model(ctx, r.Model)
	if err != nil {
		return nil, err
	}
	v, err := c.Workspace.Vocabulary()
	if err != nil {
		return nil, err
	}
	var corp *corpus.Corpus
	if loaded.Predictor != nil {
		if corp, err = c.Workspace.Corpus(); err != nil {
			return nil, err
		}
	}

	tracks, err := ensemble.Arrange(ctx, ensemble.Plan{
		Model:  loaded,
		Vocab:  v,
		Corpus: corp,
		Parts:  ensemble.Parts(r.mode, r.lead, r.temperature),
		Length: r.Length,
		Seed:   r.seed,
		Log:    log,
	})
	if err != nil {
		return nil, err
	}
	data, song, err := render(tracks, r.BPM)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	comp := &Composition{
		ID:       id.String(),
		Filename: Filename(r.mode, id),
		Model:    modelName(loaded.Path, r.Model),
		Ensemble: r.mode,
		BPM:      r.BPM,
		Seed:     r.seed,
		MIDI:     data,
		Elapsed:  time.Since(start),
	}
	for i, t := range tracks {
		comp.Parts = append(comp.Parts, Part{
			Role:        t.Part.Role,
			Instrument:  t.Part.Instrument.Name,
			Program:     t.Part.Instrument.Program,
			Channel:     song.Tracks[i].Channel,
			Temperature: t.Part.Temperature,
			Octave:      t.Part.Octave,
			Tokens:      t.Tokens,
			Fallbacks:   t.Stats.Fallbacks,
		})
	}
	log.Info("composition ready", "id", comp.ID, "parts", len(comp.Parts), "bytes", len(data), "elapsed", comp.Elapsed)
	return comp, nil
}

func render(tracks []ensemble.Track, bpm float64) ([]byte, *midi.File, error) {
	song, err := ensemble.Song(tracks, bpm)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := midi.Encode(&buf, song); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), song, nil
}

// Filename names the rendered file after the ensemble and the composition ID.
func Filename(mode ensemble.Mode, id uuid.UUID) string {
	return fmt.Sprintf("orchestra_%s_%s.mid", strings.ToLower(string(mode)), strings.SplitN(id.String(), "-", 2)[0])
}

func modelName(path, requested string) string {
	if requested != "" {
		return requested
	}
	return filepath.Base(path)
}

// SaveTo writes the MIDI file under the workspace's generated/ directory and
// returns its path.
func (c *Composition) SaveTo(ctx context.Context, ws *workspace.Workspace) (string, error) {
	return ws.SaveGenerated(ctx, c.Filename, c.MIDI)
}

// Tokens returns the melody tokens, or nil for an empty composition.
func (c *Composition) Tokens() []string {
	if len(c.Parts) == 0 {
		return nil
	}
	return c.Parts[0].Tokens
}
