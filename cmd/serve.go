package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rubiojr/topicsync/pkg/api"
	"github.com/rubiojr/topicsync/pkg/config"
	"github.com/rubiojr/topicsync/pkg/log"
	"github.com/rubiojr/topicsync/pkg/storage"
	"github.com/urfave/cli/v3"
)

var serveLogger = log.ForService("serve")

const optimizeInterval = time.Hour

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the reference backend (REST API and websocket topics)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on, overrides server.listen",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	configPath := c.String("config")
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	listen := cfg.Server.Listen
	if l := c.String("listen"); l != "" {
		listen = l
	}

	store, err := storage.Open(cfg.Server.StorageDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			serveLogger.Warnf("failed to close storage: %v", err)
		}
	}()

	srv := api.NewServer(store, api.Options{
		Token:             cfg.Server.Token,
		HeartbeatInterval: cfg.Server.HeartbeatInterval.Duration,
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := os.Stat(configPath); err == nil {
		reload := func() { reloadServerConfig(c, configPath, srv) }
		if err := config.Watch(ctx, configPath, reload); err != nil {
			serveLogger.Warnf("failed to watch config file: %v", err)
		} else {
			serveLogger.Infof("watching config file for changes: %s", configPath)
		}
	}

	go maintain(ctx, store)

	server := &http.Server{
		Addr:              listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serveLogger.Infof("listening on http://%s (storage: %s)", listen, cfg.Server.StorageDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
			return shutdown(server, srv)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				serveLogger.Infof("received SIGHUP, reloading configuration")
				reloadServerConfig(c, configPath, srv)
				continue
			}
			fmt.Println("\nShutting down...")
			return shutdown(server, srv)
		}
	}
}

func shutdown(server *http.Server, srv *api.Server) error {
	// Websocket sessions are hijacked connections that Shutdown does not
	// wait for, so close them first.
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// reloadServerConfig applies the settings that can change without a
// restart: the access token and the debug list.
func reloadServerConfig(c *cli.Command, configPath string, srv *api.Server) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		serveLogger.Warnf("failed to reload configuration: %v", err)
		return
	}
	applyDebug(c, cfg)
	srv.SetToken(cfg.Server.Token)
	serveLogger.Infof("configuration reloaded")
}

// maintain optimizes the database and checkpoints the WAL periodically.
func maintain(ctx context.Context, store *storage.Store) {
	ticker := time.NewTicker(optimizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Optimize(); err != nil {
				serveLogger.Warnf("optimize failed: %v", err)
			}
			if err := store.WALCheckpoint(); err != nil {
				serveLogger.Warnf("wal checkpoint failed: %v", err)
			}
		}
	}
}
