package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/pg"
	"github.com/dmitrymomot/billingsync/pkg/subscription/pgstore"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the subscription store schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations (postgres) or ensure indexes (mongo)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.migrate(cmd, false)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent postgres migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.migrate(cmd, true)
			},
		},
	)
	return cmd
}

func (c *cli) migrate(cmd *cobra.Command, down bool) error {
	ctx := cmd.Context()
	a := &app{cfg: c.cfg, log: c.log}
	defer func() { _ = a.Close(ctx) }()

	switch c.cfg.StoreDriver {
	case driverPostgres:
		pool, cfg, err := a.connectPostgres(ctx)
		if err != nil {
			return err
		}
		if down {
			return pg.Rollback(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, c.log)
		}
		return pg.Migrate(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, c.log)

	case driverMongo:
		if down {
			return errRollbackMongo
		}
		// Opening the store creates its indexes.
		if err := a.openStore(ctx); err != nil {
			return err
		}
		c.log.InfoContext(ctx, "mongo indexes ensured", logger.Component("billingd"))
		return nil
	}

	c.log.InfoContext(ctx, "memory store needs no migrations", logger.Component("billingd"))
	return nil
}
