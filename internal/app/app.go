// Package app wires the intake service from configuration. Optional
// infrastructure falls back to in-process implementations when unconfigured.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"visaintake/internal/intake/events"
	"visaintake/internal/intake/handler"
	"visaintake/internal/intake/lock"
	"visaintake/internal/intake/policy"
	"visaintake/internal/intake/receipts"
	"visaintake/internal/intake/session"
	"visaintake/internal/platform/config"
	"visaintake/internal/platform/kafka"
	"visaintake/internal/platform/metrics"
	"visaintake/internal/platform/postgres"
	"visaintake/internal/platform/redis"
	"visaintake/internal/visaapi"
)

// App holds the session service and the connections behind it.
type App struct {
	Service *session.Service
	Health  map[string]handler.Pinger

	redis  *redis.Client
	pool   *pgxpool.Pool
	kafka  *kgo.Client
	events *events.Buffered
}

// New connects every configured dependency and builds the session service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (_ *App, err error) {
	a := &App{Health: make(map[string]handler.Pinger)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pol := policy.Default()
	if cfg.Intake.PolicyFile != "" {
		if pol, err = policy.LoadFile(cfg.Intake.PolicyFile); err != nil {
			return nil, fmt.Errorf("load document policy: %w", err)
		}
		logger.InfoContext(ctx, "document policy loaded", "path", cfg.Intake.PolicyFile)
	}

	client := visaapi.New(cfg.VisaAPI,
		visaapi.WithLogger(logger),
		visaapi.WithMetrics(m),
	)
	a.Health["visa_api"] = handler.PingFunc(func(context.Context) error {
		if !client.Available() {
			return errors.New("visa api circuit open")
		}
		return nil
	})

	opts := []session.Option{
		session.WithIntakeConfig(cfg.Intake),
		session.WithPolicy(pol),
		session.WithLogger(logger),
		session.WithMetrics(m),
	}

	if a.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if a.redis != nil {
		opts = append(opts, session.WithLocker(lock.NewRedis(a.redis.Client)))
		a.Health["redis"] = handler.PingFunc(a.redis.Health)
		logger.InfoContext(ctx, "submission locks in redis")
	}

	if a.pool, err = postgres.NewPool(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if a.pool != nil {
		if err = postgres.Migrate(ctx, a.pool); err != nil {
			return nil, err
		}
		opts = append(opts, session.WithReceipts(receipts.NewPostgresStore(a.pool)))
		a.Health["database"] = handler.PingFunc(a.pool.Ping)
		logger.InfoContext(ctx, "submission receipts in postgres")
	}

	if a.kafka, err = kafka.NewClient(ctx, cfg.Kafka); err != nil {
		return nil, err
	}
	if a.kafka != nil {
		if err = kafka.EnsureTopic(ctx, a.kafka, cfg.Kafka); err != nil {
			return nil, err
		}
		a.events = events.NewBuffered(events.NewKafkaPublisher(a.kafka, cfg.Kafka.Topic),
			events.WithBufferLogger(logger),
			events.WithBufferMetrics(m),
			events.WithDrainTimeout(cfg.Server.ShutdownTimeout),
		)
		opts = append(opts, session.WithEvents(a.events))
		a.Health["kafka"] = handler.PingFunc(a.kafka.Ping)
		logger.InfoContext(ctx, "submission events to kafka", "topic", cfg.Kafka.Topic)
	}

	if a.Service, err = session.New(client, opts...); err != nil {
		return nil, err
	}
	return a, nil
}

// Run drives the background work: the idle session sweeper and, when Kafka is
// configured, the event publisher. It returns when ctx ends.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Service.RunSweeper(gctx) })
	if a.events != nil {
		g.Go(func() error { return a.events.Run(gctx) })
	}
	return g.Wait()
}

// Close discards open sessions and closes every connection.
func (a *App) Close() {
	if a.Service != nil {
		a.Service.Shutdown()
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
