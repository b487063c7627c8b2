package compose

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samcharles93/cadence/internal/model"
	"github.com/samcharles93/cadence/internal/workspace"
)

// ModelProvider resolves a model name to a loaded model.
type ModelProvider interface {
	Model(ctx context.Context, name string) (*model.Loaded, error)
}

type ProviderConfig struct {
	Workspace *workspace.Workspace
	// DefaultModel is used when a request names no model.
	DefaultModel string
	// Loader defaults to model.Load.
	Loader func(path string) (*model.Loaded, error)
	// AllowExternalPaths lets a name be a path to an artifact outside the
	// workspace. Leave it off for names that arrive over the network.
	AllowExternalPaths bool
}

// CachedModelProvider loads each artifact once and reloads it when the file
// on disk changes. Loaded models are read-only and shared between requests.
type CachedModelProvider struct {
	cfg   ProviderConfig
	mu    sync.Mutex
	cache map[string]*modelEntry
}

type modelEntry struct {
	loaded  *model.Loaded
	modTime time.Time
	size    int64
}

func NewCachedModelProvider(cfg ProviderConfig) *CachedModelProvider {
	if cfg.Loader == nil {
		cfg.Loader = model.Load
	}
	return &CachedModelProvider{
		cfg:   cfg,
		cache: make(map[string]*modelEntry),
	}
}

func (p *CachedModelProvider) Model(ctx context.Context, name string) (*model.Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := p.resolve(name)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", workspace.ErrModelNotFound, path)
	}

	p.mu.Lock()
	entry, ok := p.cache[path]
	p.mu.Unlock()
	if ok && entry.modTime.Equal(st.ModTime()) && entry.size == st.Size() {
		return entry.loaded, nil
	}

	loaded, err := p.cfg.Loader(path)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// Another request may have loaded the same revision meanwhile.
	if existing, ok := p.cache[path]; ok && existing.modTime.Equal(st.ModTime()) && existing.size == st.Size() {
		return existing.loaded, nil
	}
	p.cache[path] = &modelEntry{loaded: loaded, modTime: st.ModTime(), size: st.Size()}
	return loaded, nil
}

// Forget drops every cached model.
func (p *CachedModelProvider) Forget() {
	p.mu.Lock()
	clear(p.cache)
	p.mu.Unlock()
}

func (p *CachedModelProvider) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	// The configured default comes from the operator, not the request.
	external := p.cfg.AllowExternalPaths
	if name == "" {
		name = strings.TrimSpace(p.cfg.DefaultModel)
		external = true
	}
	if name != "" && workspace.IsPath(name) {
		if !external {
			return "", fmt.Errorf("%w: model must name a workspace model, got %q", workspace.ErrInvalidName, name)
		}
		return workspace.ExternalModelPath(name)
	}
	ws := p.cfg.Workspace
	if ws == nil {
		return "", fmt.Errorf("%w: no workspace to resolve %q", workspace.ErrModelNotFound, name)
	}
	if name != "" {
		return ws.ModelPath(name)
	}
	models, err := ws.ListModels()
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("%w: no models in %s", workspace.ErrModelNotFound, ws.ModelsDir())
	case 1:
		return models[0].Path, nil
	}
	return "", fmt.Errorf("%w: multiple models in %s; specify model", workspace.ErrInvalidName, ws.ModelsDir())
}
