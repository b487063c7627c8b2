package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cadence/internal/logger"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "cadence",
		Usage: "Generate MIDI music from trained sequence models",
		Flags: append(loggingFlags(), workspaceFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return setup(ctx, cmd)
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			preprocessCmd(),
			fitCmd(),
			initCmd(),
			generateCmd(),
			serveCmd(),
			inspectCmd(),
			versionCmd(),
		},
	}
}

// setup loads the config file and installs the process logger into ctx.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	c, err := loadConfig(path)
	if err != nil {
		return ctx, err
	}
	cfg = c
	applyRootConfig(cmd, cfg)

	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, err
	}
	log := logger.Setup(cmd.Root().ErrWriter, level, format, isTerminal(os.Stderr))
	return logger.WithContext(ctx, log), nil
}
