package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/cadence/internal/api"
	"github.com/samcharles93/cadence/internal/compose"
	"github.com/samcharles93/cadence/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		model       string
		readTimeout time.Duration
		save        bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web form and the composition API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "model used when a request names none",
				Destination: &model,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "save",
				Usage:       "also store form-generated files in the workspace",
				Destination: &save,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, cfg, &addr)
			if cfg.Model != "" && !cmd.IsSet("model") {
				model = cfg.Model
			}
			log := logger.FromContext(ctx)
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			provider := compose.NewCachedModelProvider(compose.ProviderConfig{
				Workspace:    ws,
				DefaultModel: model,
			})
			composer := compose.NewComposer(ws, provider, log.WithGroup("compose"))
			server := api.NewServer(ws, composer, log.WithGroup("api"))
			server.SaveGenerated = save

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "workspace", ws.Root)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
