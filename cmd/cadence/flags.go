package main

import "github.com/urfave/cli/v3"

var (
	workspaceDir string
	configFile   string
	logLevel     string
	logFormat    string
	debug        bool

	// cfg is the config file loaded by setup.
	cfg Config
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func workspaceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workspace",
			Aliases:     []string{"w"},
			Usage:       "workspace directory (defaults to $" + envCadenceHome + " or the current directory)",
			Destination: &workspaceDir,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "config file (defaults to $XDG_CONFIG_HOME/cadence/config.yaml)",
			Destination: &configFile,
		},
	}
}

// genOptions are the knobs shared by generate and the server defaults.
type genOptions struct {
	model       string
	length      int64
	temperature float64
	instrument  string
	ensemble    string
	bpm         float64
	seed        int64
}

func generationFlags(o *genOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model name in the workspace or path to an artifact",
			Destination: &o.model,
		},
		&cli.Int64Flag{
			Name:        "length",
			Aliases:     []string{"n"},
			Usage:       "notes to generate per part",
			Value:       100,
			Destination: &o.length,
		},
		&cli.FloatFlag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "melody sampling temperature (0 is greedy)",
			Value:       1.0,
			Destination: &o.temperature,
		},
		&cli.StringFlag{
			Name:        "instrument",
			Aliases:     []string{"i"},
			Usage:       "lead instrument (Piano, Violin, Guitar, Flute, Saxophone)",
			Value:       "Piano",
			Destination: &o.instrument,
		},
		&cli.StringFlag{
			Name:        "ensemble",
			Aliases:     []string{"e"},
			Usage:       "ensemble mode (Solo, Duet, Trio, Band)",
			Value:       "Solo",
			Destination: &o.ensemble,
		},
		&cli.FloatFlag{
			Name:        "bpm",
			Usage:       "tempo in beats per minute",
			Value:       120,
			Destination: &o.bpm,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "random seed (defaults to the clock)",
			Destination: &o.seed,
		},
	}
}

func sequenceLengthFlag(dst *int64) cli.Flag {
	return &cli.Int64Flag{
		Name:        "sequence-length",
		Aliases:     []string{"seq-len"},
		Usage:       "context window length",
		Value:       100,
		Destination: dst,
	}
}
