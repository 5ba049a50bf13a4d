package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/topicsync/pkg/config"
	"github.com/rubiojr/topicsync/pkg/log"
	"github.com/rubiojr/topicsync/pkg/session"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the configuration named by --config and applies its
// debug list unless --debug already turned everything on.
func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyDebug(c, cfg)
	if url := c.String("server"); url != "" {
		cfg.Client.ServerURL = url
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applyDebug(c *cli.Command, cfg *config.Config) {
	if c.Bool("debug") {
		log.SetGlobalDebug(true)
		return
	}
	log.EnableDebugList(cfg.Debug)
}

// withSession runs fn with a session that is not connected: enough for
// commands that only read or mutate over REST.
func withSession(ctx context.Context, c *cli.Command, fn func(ctx context.Context, s *session.Session) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := session.New(cfg.Client)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Client.RequestTimeout.Duration+5*time.Second)
	defer cancel()
	return fn(ctx, s)
}

// argument returns the first positional argument or a usage error.
func argument(c *cli.Command, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}
