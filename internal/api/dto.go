package api

import (
	"time"

	"github.com/samcharles93/cadence/internal/compose"
	"github.com/samcharles93/cadence/internal/ensemble"
)

const MIMEAudioMIDI = "audio/midi"

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// CompositionRequest is the JSON body of POST /v1/compositions.
type CompositionRequest struct {
	compose.Request
	// Format is "midi" (default) or "json".
	Format string `json:"format,omitempty"`
	// Save also writes the file under the workspace's generated/ directory.
	Save bool `json:"save,omitempty"`
}

type CompositionResponse struct {
	Object string `json:"object"`
	*compose.Composition
	// MIDI is the rendered file, base64 encoded.
	MIDI      []byte `json:"midi"`
	SavedPath string `json:"saved_path,omitempty"`
}

type ModelObject struct {
	ID       string    `json:"id"`
	Object   string    `json:"object"`
	Kind     string    `json:"kind,omitempty"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

type OptionsResponse struct {
	Instruments []string        `json:"instruments"`
	Ensembles   []ensemble.Mode `json:"ensembles"`
	Defaults    compose.Request `json:"defaults"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Preprocessed bool   `json:"preprocessed"`
	Vocabulary   int    `json:"vocabulary"`
	Models       int    `json:"models"`
}
