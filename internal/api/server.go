package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/cadence/internal/compose"
	"github.com/samcharles93/cadence/internal/ensemble"
	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/version"
	"github.com/samcharles93/cadence/internal/webui"
	"github.com/samcharles93/cadence/internal/workspace"
)

// Composer is the part of compose.Composer the server needs.
type Composer interface {
	Compose(ctx context.Context, req compose.Request) (*compose.Composition, error)
}

type Server struct {
	ws       *workspace.Workspace
	composer Composer
	log      logger.Logger
	// SaveGenerated also stores every form-generated file in the workspace.
	SaveGenerated bool
}

func NewServer(ws *workspace.Workspace, composer Composer, log logger.Logger) *Server {
	return &Server{
		ws:       ws,
		composer: composer,
		log:      logger.OrDiscard(log),
	}
}

func (s *Server) Register(e *echo.Echo) {
	// Web form
	e.GET("/", s.handleIndex)
	e.GET("/static/*", handleStatic)
	e.POST("/generate", s.handleGenerateForm)

	// JSON API
	e.POST("/v1/compositions", s.handleCreateComposition)
	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/options", s.handleOptions)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleIndex(c *echo.Context) error {
	page := webui.Page{
		Instruments: instrumentNames(),
		Ensembles:   modeNames(),
		Defaults: webui.Defaults{
			Length:      compose.DefaultLength,
			Temperature: compose.DefaultTemperature,
			BPM:         compose.DefaultBPM,
		},
	}
	if s.ws != nil {
		if models, err := s.ws.ListModels(); err == nil {
			for _, m := range models {
				page.Models = append(page.Models, m.Name)
			}
		}
	}
	var buf bytes.Buffer
	if err := webui.Render(&buf, page); err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	return c.Blob(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

var staticHandler = http.StripPrefix("/static/", http.FileServer(webui.StaticFS()))

func handleStatic(c *echo.Context) error {
	staticHandler.ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *Server) handleGenerateForm(c *echo.Context) error {
	if s.composer == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "composer not configured")
	}
	req, err := formRequest(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	comp, err := s.composer.Compose(c.Request().Context(), req)
	if err != nil {
		s.log.Warn("composition failed", "error", err)
		return writeComposeError(c, err)
	}
	if s.SaveGenerated && s.ws != nil {
		if path, err := comp.SaveTo(c.Request().Context(), s.ws); err != nil {
			s.log.Warn("saving composition failed", "id", comp.ID, "error", err)
		} else {
			s.log.Info("composition saved", "id", comp.ID, "path", path)
		}
	}
	return writeMIDI(c, comp)
}

func (s *Server) handleCreateComposition(c *echo.Context) error {
	if s.composer == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "composer not configured")
	}
	req, err := decodeJSON[CompositionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format != "" && format != "midi" && format != "json" {
		return writeBadRequest(c, `format must be "midi" or "json"`)
	}

	comp, err := s.composer.Compose(c.Request().Context(), req.Request)
	if err != nil {
		s.log.Warn("composition failed", "error", err)
		return writeComposeError(c, err)
	}
	var saved string
	if req.Save {
		if s.ws == nil {
			return writeError(c, http.StatusInternalServerError, "server_error", "workspace not configured")
		}
		if saved, err = comp.SaveTo(c.Request().Context(), s.ws); err != nil {
			return writeComposeError(c, err)
		}
	}
	if format == "json" {
		return c.JSON(http.StatusOK, CompositionResponse{
			Object:      "composition",
			Composition: comp,
			MIDI:        comp.MIDI,
			SavedPath:   saved,
		})
	}
	return writeMIDI(c, comp)
}

func (s *Server) handleListModels(c *echo.Context) error {
	if s.ws == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "workspace not configured")
	}
	models, err := s.ws.ListModels()
	if err != nil {
		return writeComposeError(c, err)
	}
	out := ModelList{Object: "list", Data: make([]ModelObject, 0, len(models))}
	for _, m := range models {
		out.Data = append(out.Data, ModelObject{
			ID:       m.Name,
			Object:   "model",
			Kind:     string(m.Kind),
			Size:     m.Size,
			Modified: m.ModTime,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleOptions(c *echo.Context) error {
	temp := compose.DefaultTemperature
	return c.JSON(http.StatusOK, OptionsResponse{
		Instruments: instrumentNames(),
		Ensembles:   ensemble.Modes(),
		Defaults: compose.Request{
			Length:      compose.DefaultLength,
			Temperature: &temp,
			Instrument:  ensemble.Piano.Name,
			Ensemble:    string(ensemble.Solo),
			BPM:         compose.DefaultBPM,
		},
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: version.String()}
	if s.ws != nil {
		v, err := s.ws.Vocabulary()
		switch {
		case err == nil:
			resp.Preprocessed = true
			resp.Vocabulary = v.Size()
		case !errors.Is(err, workspace.ErrNotPreprocessed):
			s.log.Warn("reading vocabulary failed", "error", err)
		}
		if models, err := s.ws.ListModels(); err == nil {
			resp.Models = len(models)
		}
	}
	if !resp.Preprocessed || resp.Models == 0 {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}

func instrumentNames() []string {
	var names []string
	for _, in := range ensemble.Instruments() {
		names = append(names, in.Name)
	}
	return names
}

func modeNames() []string {
	var names []string
	for _, m := range ensemble.Modes() {
		names = append(names, string(m))
	}
	return names
}
