package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("workspace: /music\nmodel: bach\nlength: 64\ntemperature: 0\nensemble: Band\nbpm: 90\nseed: 7\nsequence_length: 32\nlog_format: json\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Workspace != "/music" || cfg.Model != "bach" || cfg.Ensemble != "Band" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Length == nil || *cfg.Length != 64 || cfg.SequenceLength == nil || *cfg.SequenceLength != 32 {
		t.Fatalf("unexpected integer fields: %+v", cfg)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0 {
		t.Fatal("explicit zero temperature should be kept")
	}
	if cfg.Instrument != "" || cfg.ServerAddress != "" {
		t.Fatalf("unset fields should stay empty: %+v", cfg)
	}

	missing, err := loadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil || missing.Length != nil {
		t.Fatalf("missing config: %+v, %v", missing, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("length: [nope"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(bad); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestApplyGenerateConfigRespectsFlags(t *testing.T) {
	length := int64(64)
	temp := 0.25
	seed := int64(11)
	cfg := Config{Model: "bach", Length: &length, Temperature: &temp, Instrument: "Flute", Seed: &seed}

	var (
		got     genOptions
		gotSeed *int64
	)
	cmd := &cli.Command{
		Name:  "generate",
		Flags: generationFlags(&got),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyGenerateConfig(cmd, cfg, &got)
			gotSeed = seedFor(cmd, cfg, &got)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"generate", "--length", "12", "--instrument", "Violin"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.length != 12 || got.instrument != "Violin" {
		t.Fatalf("flags should win over config: %+v", got)
	}
	if got.model != "bach" || got.temperature != 0.25 {
		t.Fatalf("config should fill unset flags: %+v", got)
	}
	if got.ensemble != "Solo" || got.bpm != 120 {
		t.Fatalf("built-in defaults should remain: %+v", got)
	}
	if gotSeed == nil || *gotSeed != 11 {
		t.Fatalf("seed from config = %v", gotSeed)
	}
}

func TestSeedForPrefersFlag(t *testing.T) {
	var (
		opts    genOptions
		gotSeed *int64
	)
	cfgSeed := int64(99)
	for _, tc := range []struct {
		args []string
		cfg  Config
		want *int64
	}{
		{[]string{"g", "--seed", "0"}, Config{Seed: &cfgSeed}, new(int64)},
		{[]string{"g"}, Config{}, nil},
	} {
		cmd := &cli.Command{
			Name:  "g",
			Flags: generationFlags(&opts),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				gotSeed = seedFor(cmd, tc.cfg, &opts)
				return nil
			},
		}
		if err := cmd.Run(context.Background(), tc.args); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if (gotSeed == nil) != (tc.want == nil) || (gotSeed != nil && *gotSeed != *tc.want) {
			t.Fatalf("%v: seed = %v, want %v", tc.args, gotSeed, tc.want)
		}
	}
}
