// Package workspace owns the on-disk layout shared by the CLI and the server:
//
//	processed/notes.json   corpus
//	processed/vocab.json   vocabulary
//	models/<name>.markov.json, models/<name>.safetensors
//	generated/*.mid
//
// Every write goes to a temporary file that is renamed into place while
// holding the workspace lock file.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/samcharles93/cadence/internal/corpus"
	"github.com/samcharles93/cadence/internal/model"
	"github.com/samcharles93/cadence/internal/vocab"
)

const (
	ProcessedDir = "processed"
	ModelsDir    = "models"
	GeneratedDir = "generated"

	lockName   = ".cadence.lock"
	lockRetry  = 50 * time.Millisecond
	corpusName = "notes.json"
	vocabName  = "vocab.json"
)

var (
	ErrNotPreprocessed = errors.New("workspace has no processed corpus; run preprocess first")
	ErrModelNotFound   = errors.New("model not found")
	ErrInvalidName     = errors.New("invalid artifact name")
)

type Workspace struct {
	Root string
}

// Open ensures the directory layout exists under root.
func Open(root string) (*Workspace, error) {
	if root == "" {
		return nil, errors.New("workspace: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, d := range []string{ProcessedDir, ModelsDir, GeneratedDir} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, fmt.Errorf("workspace: %w", err)
		}
	}
	return &Workspace{Root: abs}, nil
}

func (w *Workspace) CorpusPath() string { return filepath.Join(w.Root, ProcessedDir, corpusName) }
func (w *Workspace) VocabPath() string  { return filepath.Join(w.Root, ProcessedDir, vocabName) }
func (w *Workspace) ModelsDir() string  { return filepath.Join(w.Root, ModelsDir) }

func (w *Workspace) GeneratedDir() string { return filepath.Join(w.Root, GeneratedDir) }

func (w *Workspace) Corpus() (*corpus.Corpus, error) {
	c, err := corpus.Load(w.CorpusPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotPreprocessed
	}
	return c, err
}

func (w *Workspace) Vocabulary() (*vocab.Vocabulary, error) {
	v, err := vocab.Load(w.VocabPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotPreprocessed
	}
	return v, err
}

// SaveProcessed writes the corpus and its vocabulary under one lock.
func (w *Workspace) SaveProcessed(ctx context.Context, c *corpus.Corpus, v *vocab.Vocabulary) error {
	return w.withLock(ctx, func() error {
		if err := writeAtomic(w.CorpusPath(), encodeJSON(c)); err != nil {
			return err
		}
		return writeAtomic(w.VocabPath(), encodeJSON(v))
	})
}

func encodeJSON(v any) func(io.Writer) error {
	return func(wr io.Writer) error {
		return json.NewEncoder(wr).Encode(v)
	}
}

// ModelInfo describes a stored model artifact.
type ModelInfo struct {
	Name    string     `json:"name"`
	Kind    model.Kind `json:"kind,omitempty"`
	Path    string     `json:"-"`
	Size    int64      `json:"size"`
	ModTime time.Time  `json:"modified"`
}

// ListModels returns the stored models sorted by name. Safetensors kinds are
// left empty; they are only known once the file is opened.
func (w *Workspace) ListModels() ([]ModelInfo, error) {
	entries, err := os.ReadDir(w.ModelsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []ModelInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, kind, ok := splitModelFile(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ModelInfo{
			Name:    name,
			Kind:    kind,
			Path:    filepath.Join(w.ModelsDir(), e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b ModelInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func splitModelFile(file string) (string, model.Kind, bool) {
	switch {
	case strings.HasSuffix(file, model.MarkovExt):
		return strings.TrimSuffix(file, model.MarkovExt), model.KindMarkov, true
	case strings.HasSuffix(file, model.SafetensorsExt):
		return strings.TrimSuffix(file, model.SafetensorsExt), "", true
	}
	return "", "", false
}

// ModelPath resolves a model name to its artifact under models/. The name
// may carry its extension but never a directory.
func (w *Workspace) ModelPath(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	candidates := []string{name}
	if _, ok := model.KindOfPath(name); !ok {
		candidates = []string{name + model.MarkovExt, name + model.SafetensorsExt}
	}
	for _, c := range candidates {
		p := filepath.Join(w.ModelsDir(), c)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotFound, name)
}

// LocateModel is ModelPath that also accepts a path to an existing artifact
// outside the workspace. Only local callers such as the CLI should use it.
func (w *Workspace) LocateModel(name string) (string, error) {
	if IsPath(name) {
		return ExternalModelPath(name)
	}
	return w.ModelPath(name)
}

// IsPath reports whether name refers to a file rather than a workspace model.
func IsPath(name string) bool {
	return strings.ContainsAny(name, `/\`) || filepath.IsAbs(name)
}

// ExternalModelPath checks that path is an existing model artifact.
func ExternalModelPath(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}
	return path, nil
}

// SaveModel stores a model under name with the extension of kind.
func (w *Workspace) SaveModel(ctx context.Context, name string, kind model.Kind, encode func(io.Writer) error) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	ext := model.SafetensorsExt
	if kind == model.KindMarkov {
		ext = model.MarkovExt
	}
	path := filepath.Join(w.ModelsDir(), name+ext)
	err := w.withLock(ctx, func() error { return writeAtomic(path, encode) })
	return path, err
}

// SaveGenerated stores a rendered file under generated/.
func (w *Workspace) SaveGenerated(ctx context.Context, filename string, data []byte) (string, error) {
	if err := validName(filename); err != nil {
		return "", err
	}
	path := filepath.Join(w.GeneratedDir(), filename)
	err := w.withLock(ctx, func() error {
		return writeAtomic(path, func(wr io.Writer) error {
			_, err := wr.Write(data)
			return err
		})
	})
	return path, err
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// withLock runs fn while holding the workspace lock, polling until the lock
// is free or ctx is done.
func (w *Workspace) withLock(ctx context.Context, fn func() error) (err error) {
	lock := flock.New(filepath.Join(w.Root, lockName))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("workspace: lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("workspace: lock %s not acquired", lock.Path())
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("workspace: unlock: %w", uerr))
		}
	}()
	return fn()
}

// writeAtomic writes through a temporary file in the target directory and
// renames it over path once fully written and synced.
func writeAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := fn(tmp); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		done = true
		return err
	}
	done = true
	return nil
}
