package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/cadence/internal/corpus"
	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/midi"
	"github.com/samcharles93/cadence/internal/vocab"
)

func preprocessCmd() *cli.Command {
	var (
		dataDir string
		strict  bool
	)

	return &cli.Command{
		Name:  "preprocess",
		Usage: "Extract a note corpus and vocabulary from a directory of MIDI files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "data-dir",
				Aliases:     []string{"d"},
				Usage:       "directory of .mid files",
				Value:       "midi_songs",
				Destination: &dataDir,
			},
			&cli.BoolFlag{
				Name:        "strict",
				Usage:       "fail on the first unreadable file instead of skipping it",
				Destination: &strict,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			files, err := discoverMIDIFiles(dataDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no MIDI files found in %s", dataDir)
			}

			notes, skipped, err := extractAll(ctx, files, strict, log)
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				return errors.New("preprocess: no notes extracted")
			}
			c := &corpus.Corpus{Notes: notes}
			v := vocab.Build(notes)
			if err := ws.SaveProcessed(ctx, c, v); err != nil {
				return err
			}
			log.Info("preprocessed corpus",
				"files", len(files)-skipped,
				"skipped", skipped,
				"notes", c.Len(),
				"vocabulary", v.Size(),
				"path", ws.CorpusPath(),
			)
			return nil
		},
	}
}

// extractAll decodes files in parallel and concatenates their tokens in file
// order.
func extractAll(ctx context.Context, files []string, strict bool, log logger.Logger) ([]string, int, error) {
	perFile := make([][]string, len(files))
	failed := make([]error, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := midi.ReadFile(path)
			if err != nil {
				if strict {
					return err
				}
				failed[i] = err
				return nil
			}
			perFile[i] = midi.ExtractTokens(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var notes []string
	skipped := 0
	for i, toks := range perFile {
		if failed[i] != nil {
			skipped++
			log.Warn("skipping unreadable file", "file", filepath.Base(files[i]), "error", failed[i])
			continue
		}
		if len(toks) == 0 {
			log.Debug("file has no pitched notes", "file", filepath.Base(files[i]))
		}
		notes = append(notes, toks...)
	}
	return notes, skipped, nil
}
