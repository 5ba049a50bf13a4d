package main

import (
	"context"
	"log"
	"os"

	"github.com/rubiojr/topicsync/cmd"
	"github.com/rubiojr/topicsync/pkg/config"
	tslog "github.com/rubiojr/topicsync/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "topicsync",
		Usage: "Keep client-side collections in sync with a server over websocket topics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server URL, overrides client.server_url",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				tslog.SetGlobalDebug(true)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ServeCommand(),
			cmd.WatchCommand(),
			cmd.BadgesCommand(),
			cmd.ExtraWorkCommand(),
			cmd.NotificationsCommand(),
			cmd.StatsCommand(),
			cmd.DBCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
