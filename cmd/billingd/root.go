package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingsync/pkg/config"
	"github.com/dmitrymomot/billingsync/pkg/logger"
)

// cli carries state shared by the command tree.
type cli struct {
	envFile string
	cfg     appConfig
	log     *slog.Logger

	// openApp assembles the runtime. Replaced in tests.
	openApp func(ctx context.Context) (*app, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	c.openApp = c.defaultApp
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "billingd",
		Short: "Subscription billing reconciliation service",
		Long: `billingd keeps local subscription records in sync with Stripe.

It serves the billing API and webhook endpoint, and provides operational
commands for schema migration, event replay and entitlement checks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "load environment variables from file")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.replayCmd(),
		c.guardCmd(),
	)
	return root
}

func (c *cli) init() error {
	if c.log != nil {
		return nil
	}
	if c.envFile != "" {
		if err := config.LoadEnv(c.envFile); err != nil {
			return err
		}
	}
	if err := config.Load(&c.cfg); err != nil {
		return err
	}
	if err := c.cfg.validate(); err != nil {
		return err
	}
	c.log = c.cfg.newLogger()
	logger.SetAsDefault(c.log)
	return nil
}

func (c *cli) defaultApp(ctx context.Context) (*app, error) {
	s, err := loadSettings(c.cfg)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, c.log, s)
}

// withApp opens the runtime, runs fn and releases connections afterwards.
func (c *cli) withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			c.log.Error("failed to close backends", logger.Error(err))
		}
	}()
	return fn(a)
}
