package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cadence/internal/generate"
	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/model"
)

func fitCmd() *cli.Command {
	var (
		name   string
		order  int64
		alpha  float64
		seqLen int64
		norm   string
	)

	return &cli.Command{
		Name:  "fit",
		Usage: "Fit a back-off Markov model to the preprocessed corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Usage:       "model name in the workspace",
				Value:       "markov",
				Destination: &name,
			},
			&cli.Int64Flag{
				Name:        "order",
				Usage:       "longest context suffix counted",
				Value:       model.DefaultOrder,
				Destination: &order,
			},
			&cli.FloatFlag{
				Name:        "alpha",
				Usage:       "additive smoothing",
				Value:       model.DefaultAlpha,
				Destination: &alpha,
			},
			sequenceLengthFlag(&seqLen),
			&cli.StringFlag{
				Name:        "normalization",
				Usage:       "window scaling: vocab_size or vocab_size_minus_one",
				Value:       generate.DivideBySize.String(),
				Destination: &norm,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applySequenceConfig(cmd, cfg, &seqLen)
			log := logger.FromContext(ctx)
			normalization, err := generate.ParseNormalization(norm)
			if err != nil {
				return err
			}
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			c, err := ws.Corpus()
			if err != nil {
				return err
			}
			v, err := ws.Vocabulary()
			if err != nil {
				return err
			}
			if c.Windows(int(seqLen)) == 0 {
				return fmt.Errorf("corpus of %d notes is too short for sequence length %d", c.Len(), seqLen)
			}
			enc, err := c.Encoded(v)
			if err != nil {
				return err
			}
			m, err := model.Fit(enc, v.Size(), int(seqLen), int(min(order, seqLen)), alpha)
			if err != nil {
				return err
			}
			m.Normalization = normalization
			path, err := ws.SaveModel(ctx, name, model.KindMarkov, m.Encode)
			if err != nil {
				return err
			}
			log.Info("model fitted", "kind", model.KindMarkov, "order", m.Order, "contexts", len(m.Counts), "path", path)
			return nil
		},
	}
}
