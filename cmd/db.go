package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/topicsync/pkg/db"
	"github.com/rubiojr/topicsync/pkg/storage"
	"github.com/urfave/cli/v3"
)

// DBCommand creates the db command
func DBCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Backend database maintenance",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show applied and pending migrations",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						return showMigrationStatus(db.NewMigrationManager(store.DB()))
					})
				},
			},
			{
				Name:  "check",
				Usage: "Run an integrity check",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						problems, err := store.IntegrityCheck(ctx)
						if err != nil {
							return err
						}
						if len(problems) == 0 {
							fmt.Println("✓ database is healthy")
							return nil
						}
						for _, p := range problems {
							fmt.Printf("✗ %s\n", p)
						}
						return fmt.Errorf("integrity check found %d problems", len(problems))
					})
				},
			},
			{
				Name:  "optimize",
				Usage: "Run PRAGMA optimize and checkpoint the WAL",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c, func(store *storage.Store) error {
						if err := store.Optimize(); err != nil {
							return fmt.Errorf("optimizing: %w", err)
						}
						if err := store.WALCheckpoint(); err != nil {
							return fmt.Errorf("checkpointing wal: %w", err)
						}
						fmt.Println("Database optimized")
						return nil
					})
				},
			},
		},
	}
}

// withStore opens the backend database. Opening applies pending migrations.
func withStore(c *cli.Command, fn func(*storage.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Server.StorageDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close storage: %v\n", err)
		}
	}()
	return fn(store)
}

func showMigrationStatus(manager *db.MigrationManager) error {
	status, err := manager.GetMigrationStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Applied migrations: %d\n", len(status.Applied))
	for _, m := range status.Applied {
		applied := m.AppliedAt
		if applied == "" {
			applied = "unknown"
		}
		fmt.Printf("  ✓ %03d: %s (applied: %s)\n", m.Version, m.Name, applied)
	}

	fmt.Printf("Pending migrations: %d\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Printf("  • %03d: %s\n", m.Version, m.Name)
	}
	if len(status.Pending) == 0 {
		fmt.Println("  (none - database is up to date)")
	}
	return nil
}
