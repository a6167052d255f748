package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingsync/pkg/config"
	"github.com/dmitrymomot/billingsync/pkg/email"
	"github.com/dmitrymomot/billingsync/pkg/httpserver"
	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/mongo"
	"github.com/dmitrymomot/billingsync/pkg/pg"
	"github.com/dmitrymomot/billingsync/pkg/redis"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
	"github.com/dmitrymomot/billingsync/pkg/subscription/mongostore"
	"github.com/dmitrymomot/billingsync/pkg/subscription/pgstore"
)

// eventParser decodes stored provider events without signature checks.
type eventParser interface {
	ParseEvent(payload []byte) (*subscription.Event, error)
}

// app is the assembled billing runtime shared by every command.
type app struct {
	cfg        appConfig
	log        *slog.Logger
	store      subscription.Store
	ledger     subscription.EventLedger
	gateway    subscription.Gateway
	parser     eventParser
	service    *subscription.Service
	reconciler *subscription.Reconciler
	checks     []httpserver.Check
	closers    []func(context.Context) error
}

// loadSettings reads every configuration the app needs from the environment.
func loadSettings(cfg appConfig) (settings, error) {
	s := settings{app: cfg}
	if err := config.Load(&s.billing); err != nil {
		return s, fmt.Errorf("billing config: %w", err)
	}
	if err := config.Load(&s.stripe); err != nil {
		return s, fmt.Errorf("stripe config: %w", err)
	}
	if err := config.Load(&s.email); err != nil {
		return s, fmt.Errorf("email config: %w", err)
	}
	return s, nil
}

// newApp connects the configured backends and assembles the service and
// reconciler. The caller must Close the returned app.
func newApp(ctx context.Context, log *slog.Logger, s settings) (_ *app, err error) {
	if err := s.app.validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: s.app, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	catalog, err := subscription.LoadCatalog(s.billing.CatalogPath)
	if err != nil {
		return nil, err
	}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openLedger(ctx); err != nil {
		return nil, err
	}

	stripe, err := subscription.NewStripeGateway(s.stripe, s.stripeOptions...)
	if err != nil {
		return nil, err
	}
	a.parser = stripe
	a.gateway = subscription.NewBreakerGateway(stripe, subscription.BreakerSettings{
		Name:             "stripe",
		FailureThreshold: s.stripe.BreakerFailures,
		OpenTimeout:      s.stripe.BreakerTimeout,
		Logger:           log,
	})

	sender, err := email.New(s.email)
	if err != nil {
		return nil, err
	}
	notifier := email.NewTrialNotifier(sender, s.email, log)

	a.service = subscription.NewService(a.store, a.gateway, s.billing,
		subscription.WithLogger(log),
		subscription.WithCatalog(catalog),
	)
	a.reconciler = subscription.NewReconciler(a.store, a.gateway, s.billing,
		subscription.WithReconcilerLogger(log),
		subscription.WithEventLedger(a.ledger),
		subscription.WithNotifier(notifier),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case driverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return fmt.Errorf("mongo config: %w", err)
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Client().Disconnect)
		store, err := mongostore.New(ctx, db)
		if err != nil {
			return err
		}
		a.store = store
		a.checks = append(a.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(db.Client())})

	case driverPostgres:
		pool, _, err := a.connectPostgres(ctx)
		if err != nil {
			return err
		}
		a.store = pgstore.New(pool)
		a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

	default:
		a.log.WarnContext(ctx, "using in-memory subscription store, records are lost on restart",
			logger.Component("billingd"),
		)
		a.store = subscription.NewMemoryStore()
	}
	return nil
}

func (a *app) openLedger(ctx context.Context) error {
	if a.cfg.EventLedger != driverRedis {
		a.ledger = subscription.NewMemoryLedger()
		return nil
	}

	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	a.ledger = redis.NewEventLedger(client, cfg.KeyPrefix)
	a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	return nil
}

func (a *app) connectPostgres(ctx context.Context) (*pgxpool.Pool, pg.Config, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, cfg, fmt.Errorf("postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, cfg, nil
}

// Close releases backend connections in reverse order of creation.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
