package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/cadence/internal/compose"
)

const maxBodyBytes = 1 << 20

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
		},
	})
}

// writeComposeError reports err with the status its class maps to.
func writeComposeError(c *echo.Context, err error) error {
	status, errType := classify(err)
	return writeError(c, status, errType, err.Error())
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(&out); err != nil {
		return out, newInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return out, nil
}

// formRequest reads the fields of the HTML form. Empty fields keep their
// defaults.
func formRequest(c *echo.Context) (compose.Request, error) {
	req := compose.Request{
		Model:      strings.TrimSpace(c.FormValue("model")),
		Instrument: strings.TrimSpace(c.FormValue("instrument")),
		Ensemble:   strings.TrimSpace(c.FormValue("ensemble")),
	}
	if v := strings.TrimSpace(c.FormValue("length")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, newInvalidRequest(fmt.Sprintf("length: %q is not an integer", v))
		}
		req.Length = n
	}
	if v := strings.TrimSpace(c.FormValue("temperature")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, newInvalidRequest(fmt.Sprintf("temperature: %q is not a number", v))
		}
		req.Temperature = &f
	}
	if v := strings.TrimSpace(c.FormValue("bpm")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, newInvalidRequest(fmt.Sprintf("bpm: %q is not a number", v))
		}
		req.BPM = f
	}
	if v := strings.TrimSpace(c.FormValue("seed")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, newInvalidRequest(fmt.Sprintf("seed: %q is not an integer", v))
		}
		req.Seed = &n
	}
	return req, nil
}

func writeMIDI(c *echo.Context, comp *compose.Composition) error {
	h := c.Response().Header()
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", comp.Filename))
	h.Set("X-Composition-Id", comp.ID)
	return c.Blob(http.StatusOK, MIMEAudioMIDI, comp.MIDI)
}
