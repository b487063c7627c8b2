package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cadence/internal/logger"
	"github.com/samcharles93/cadence/internal/model"
)

func initCmd() *cli.Command {
	var (
		kindName string
		name     string
		seed     int64
		hidden   int64
		latent   int64
		seqLen   int64
	)

	return &cli.Command{
		Name:  "init",
		Usage: "Write a randomly initialized neural model sized to the workspace vocabulary",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "kind",
				Usage:       "model kind (dense, gan)",
				Value:       string(model.KindDense),
				Destination: &kindName,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "model name in the workspace (defaults to the kind)",
				Destination: &name,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "initialization seed (defaults to the clock)",
				Destination: &seed,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "hidden width of a dense model",
				Value:       model.DefaultHidden,
				Destination: &hidden,
			},
			&cli.Int64Flag{
				Name:        "latent",
				Usage:       "latent dimension of a gan generator",
				Value:       model.DefaultLatentDim,
				Destination: &latent,
			},
			sequenceLengthFlag(&seqLen),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applySequenceConfig(cmd, cfg, &seqLen)
			log := logger.FromContext(ctx)
			kind, err := model.ParseKind(kindName)
			if err != nil {
				return err
			}
			if name == "" {
				name = string(kind)
			}
			if !cmd.IsSet("seed") {
				seed = time.Now().UnixNano()
			}
			ws, err := openWorkspace()
			if err != nil {
				return err
			}
			v, err := ws.Vocabulary()
			if err != nil {
				return err
			}

			var encode func(io.Writer) error
			switch kind {
			case model.KindDense:
				d, err := model.NewRandomDense(v.Size(), int(seqLen), int(hidden), seed)
				if err != nil {
					return err
				}
				encode = d.Encode
			case model.KindGAN:
				g, err := model.NewRandomGAN(v.Size(), int(latent), int(seqLen), nil, seed)
				if err != nil {
					return err
				}
				encode = g.Encode
			default:
				return fmt.Errorf("init: %s models are fitted with the fit command", kind)
			}
			path, err := ws.SaveModel(ctx, name, kind, encode)
			if err != nil {
				return err
			}
			log.Info("model initialized", "kind", kind, "vocabulary", v.Size(), "sequence_length", seqLen, "seed", seed, "path", path)
			return nil
		},
	}
}
