package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the cadence configuration file
// ($XDG_CONFIG_HOME/cadence/config.yaml). Pointer fields distinguish "not
// set" from zero values.
type Config struct {
	Workspace string `yaml:"workspace"`
	Model     string `yaml:"model"`

	// Generation defaults
	Length         *int64   `yaml:"length"`
	Temperature    *float64 `yaml:"temperature"`
	Instrument     string   `yaml:"instrument"`
	Ensemble       string   `yaml:"ensemble"`
	BPM            *float64 `yaml:"bpm"`
	Seed           *int64   `yaml:"seed"`
	SequenceLength *int64   `yaml:"sequence_length"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cadence", "config.yaml")
}

// loadConfig reads the config file. A missing file yields a zero Config; a
// malformed one is an error.
func loadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// applyRootConfig applies config defaults to the global flags that were not
// set explicitly.
func applyRootConfig(c *cli.Command, cfg Config) {
	if cfg.Workspace != "" && !c.IsSet("workspace") {
		workspaceDir = cfg.Workspace
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyGenerateConfig applies config defaults to generation options.
func applyGenerateConfig(c *cli.Command, cfg Config, o *genOptions) {
	if cfg.Model != "" && !c.IsSet("model") {
		o.model = cfg.Model
	}
	if cfg.Length != nil && !c.IsSet("length") {
		o.length = *cfg.Length
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		o.temperature = *cfg.Temperature
	}
	if cfg.Instrument != "" && !c.IsSet("instrument") {
		o.instrument = cfg.Instrument
	}
	if cfg.Ensemble != "" && !c.IsSet("ensemble") {
		o.ensemble = cfg.Ensemble
	}
	if cfg.BPM != nil && !c.IsSet("bpm") {
		o.bpm = *cfg.BPM
	}
}

// seedFor returns the explicit seed from the flag or config, or nil to let
// the composer use the clock.
func seedFor(c *cli.Command, cfg Config, o *genOptions) *int64 {
	if c.IsSet("seed") {
		s := o.seed
		return &s
	}
	if cfg.Seed != nil {
		s := *cfg.Seed
		return &s
	}
	return nil
}

func applySequenceConfig(c *cli.Command, cfg Config, seqLen *int64) {
	if cfg.SequenceLength != nil && !c.IsSet("sequence-length") {
		*seqLen = *cfg.SequenceLength
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
