package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cadence/internal/compose"
	"github.com/samcharles93/cadence/internal/logger"
)

func generateCmd() *cli.Command {
	var (
		opts        genOptions
		output      string
		printTokens bool
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a MIDI file",
		Flags: append(generationFlags(&opts),
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file (defaults to the workspace generated/ directory)",
				Destination: &output,
			},
			&cli.BoolFlag{
				Name:        "print",
				Usage:       "print the generated tokens of every part",
				Destination: &printTokens,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyGenerateConfig(cmd, cfg, &opts)
			log := logger.FromContext(ctx)
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			provider := compose.NewCachedModelProvider(compose.ProviderConfig{
				Workspace:          ws,
				AllowExternalPaths: true,
			})
			composer := compose.NewComposer(ws, provider, log)

			temp := opts.temperature
			comp, err := composer.Compose(ctx, compose.Request{
				Model:       opts.model,
				Length:      int(opts.length),
				Temperature: &temp,
				Instrument:  opts.instrument,
				Ensemble:    opts.ensemble,
				BPM:         opts.bpm,
				Seed:        seedFor(cmd, cfg, &opts),
			})
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				if path, err = comp.SaveTo(ctx, ws); err != nil {
					return err
				}
			} else {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return err
				}
				if err := os.WriteFile(path, comp.MIDI, 0o644); err != nil {
					return err
				}
			}

			if printTokens {
				w := cmd.Root().Writer
				for _, p := range comp.Parts {
					_, _ = fmt.Fprintf(w, "%s (%s): %s\n", p.Role, p.Instrument, strings.Join(p.Tokens, " "))
				}
			}
			log.Info("wrote composition", "path", path, "ensemble", comp.Ensemble, "seed", comp.Seed, "elapsed", comp.Elapsed)
			return nil
		},
	}
}
