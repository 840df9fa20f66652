// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/telemetry-agent/lib/batch"
	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/config"
	"github.com/bureau-foundation/telemetry-agent/lib/counters"
	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/eventqueue"
	"github.com/bureau-foundation/telemetry-agent/lib/retry"
	"github.com/bureau-foundation/telemetry-agent/lib/scheduler"
	"github.com/bureau-foundation/telemetry-agent/lib/source"
	"github.com/bureau-foundation/telemetry-agent/lib/transport"
	"github.com/bureau-foundation/telemetry-agent/lib/version"
)

const (
	// flushTick is how often the batch builder re-evaluates its
	// flush conditions.
	flushTick = time.Second

	// inboxCapacity bounds events pushed through POST /v1/events
	// between collection passes.
	inboxCapacity = 10000

	// ingestSourceName is the inbox's name for priority overrides.
	ingestSourceName = "ingest"

	serverShutdownTimeout = 5 * time.Second
)

// agent holds every long-lived component. Built by newAgent, run by
// run, released by close.
type agent struct {
	config   *config.Provider
	clock    clock.Clock
	logger   *slog.Logger
	started  time.Time
	identity envelope.Identity

	counters   *counters.Counters
	prometheus *counters.Prometheus
	registry   *prometheus.Registry

	manager  *eventqueue.Manager
	inbox    *source.Inbox
	producer *source.Producer
	builder  *batch.Builder

	producerScheduler *scheduler.Scheduler
	batchScheduler    *scheduler.Scheduler

	transportKind string
	httpClient    *transport.HTTPClient
	spool         *transport.Spool
}

func newAgent(provider *config.Provider, clk clock.Clock, logger *slog.Logger) (*agent, error) {
	cfg := provider.Current()

	agentID, err := resolveAgentID(cfg.Agent)
	if err != nil {
		return nil, err
	}

	a := &agent{
		config:        provider,
		clock:         clk,
		logger:        logger,
		started:       clk.Now(),
		identity:      envelope.Identity{AgentID: agentID, AgentVersion: version.Short()},
		counters:      counters.New(),
		registry:      prometheus.NewRegistry(),
		transportKind: cfg.Transport.Kind,
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.prometheus, err = counters.NewPrometheus(a.registry)
	if err != nil {
		return nil, err
	}
	sink := counters.Multi{a.counters, a.prometheus}

	a.manager = eventqueue.NewManager(provider, sink, logger.With("component", "queues"))

	client, err := a.openTransport(cfg)
	if err != nil {
		return nil, err
	}

	a.builder, err = batch.New(batch.Config{
		Settings:  provider,
		Queues:    a.manager,
		Transport: client,
		Identity:  a.identity,
		Counters:  sink,
		Clock:     clk,
		Logger:    logger.With("component", "batch"),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.inbox = source.NewInbox(ingestSourceName, event.PriorityHigh, inboxCapacity)
	a.producer, err = source.NewProducer(source.ProducerConfig{
		Sources: []source.Source{
			a.inbox,
			&source.HostStats{Clock: clk},
			&source.AgentHealth{
				Queues:   a.manager,
				Counters: a.counters,
				InFlight: a.builder.InFlight,
				Clock:    clk,
				Started:  a.started,
			},
		},
		Priorities: provider,
		Queue:      a.manager,
		Logger:     logger.With("component", "producer"),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.producerScheduler, err = scheduler.New(scheduler.Config{
		Name:         "producer",
		Clock:        clk,
		PollInterval: cfg.Intervals.SchedulerPoll,
		Logger:       logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.producerScheduler.AddTask("collect", a.producer, cfg.Intervals.Collection, a.started); err != nil {
		a.close()
		return nil, err
	}

	a.batchScheduler, err = scheduler.New(scheduler.Config{
		Name:         "batch",
		Clock:        clk,
		PollInterval: cfg.Intervals.SchedulerPoll,
		Logger:       logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.batchScheduler.AddTask("flush", a.builder, flushTick, a.started.Add(flushTick)); err != nil {
		a.close()
		return nil, err
	}

	provider.Subscribe(a.configChanged)
	return a, nil
}

func (a *agent) openTransport(cfg *config.Config) (transport.Client, error) {
	switch cfg.Transport.Kind {
	case config.TransportHTTP:
		client, err := transport.NewHTTPClient(transport.HTTPConfig{
			Endpoint:    cfg.Transport.Endpoint,
			AgentID:     a.identity.AgentID,
			Compression: cfg.Transport.Compression,
			Breaker:     cfg.Transport.Breaker,
			Clock:       a.clock,
			Logger:      a.logger.With("component", "transport"),
		})
		if err != nil {
			return nil, err
		}
		a.httpClient = client
		return client, nil

	case config.TransportSpool:
		spool, err := transport.OpenSpool(transport.SpoolConfig{
			Path:        cfg.Transport.SpoolPath,
			Compression: cfg.Transport.Compression,
			MaxRows:     cfg.Transport.SpoolMaxRows,
			Clock:       a.clock,
			Logger:      a.logger.With("component", "spool"),
		})
		if err != nil {
			return nil, err
		}
		a.spool = spool
		return spool, nil

	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// configChanged logs reloads and flags changes that need a restart.
func (a *agent) configChanged(old, new *config.Config) {
	a.logger.Info("configuration reloaded",
		"max_message_size", new.Budgets.MaxMessageSize.String(),
		"cache_byte_budget", new.Budgets.CacheByteBudget.String(),
		"high_priority_interval", new.Intervals.HighPriority,
		"low_priority_interval", new.Intervals.LowPriority,
	)
	if old.Transport.Kind != new.Transport.Kind || old.Transport.Endpoint != new.Transport.Endpoint ||
		old.Transport.SpoolPath != new.Transport.SpoolPath || old.Listen != new.Listen ||
		old.Intervals.Collection != new.Intervals.Collection || old.Intervals.SchedulerPoll != new.Intervals.SchedulerPoll {
		a.logger.Warn("configuration change requires a restart to take effect")
	}
}

// run blocks until ctx is cancelled or a component fails, then drains
// the queues and waits for in-flight sends.
func (a *agent) run(ctx context.Context) error {
	group, groupContext := errgroup.WithContext(ctx)
	cfg := a.config.Current()

	if a.config.Path() != "" {
		group.Go(func() error {
			return a.config.Watch(groupContext, a.clock, config.DefaultDebounce)
		})
	}

	group.Go(func() error {
		a.producerScheduler.Start(groupContext, true)
		return nil
	})

	group.Go(func() error {
		if err := a.connect(groupContext, cfg); err != nil {
			if groupContext.Err() != nil {
				return nil
			}
			return err
		}
		a.batchScheduler.Start(groupContext, false)
		<-a.batchScheduler.Done()
		return nil
	})

	if cfg.Listen != "" {
		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           a.routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
		}
		group.Go(func() error {
			a.logger.Info("local http surface listening", "address", cfg.Listen)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("local http surface: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupContext.Done()
			shutdownContext, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownContext)
		})
	}

	a.logger.Info("telemetry agent running",
		"agent_id", a.identity.AgentID,
		"version", version.Info(),
		"transport", a.transportKind,
		"collection_interval", cfg.Intervals.Collection,
		"cache_byte_budget", cfg.Budgets.CacheByteBudget.String(),
	)

	err := group.Wait()
	a.logger.Info("shutting down")
	a.shutdown(cfg.Transport.DrainTimeout)
	return err
}

// connect blocks until the collector is reachable. The spool needs no
// connection.
func (a *agent) connect(ctx context.Context, cfg *config.Config) error {
	if a.httpClient == nil {
		return nil
	}
	policy, err := retry.NewPolicy(cfg.Transport.Retry...)
	if err != nil {
		return err
	}
	return a.httpClient.Connect(ctx, policy)
}

// shutdown sends everything still queued and waits up to timeout for
// in-flight sends.
func (a *agent) shutdown(timeout time.Duration) {
	launched := a.builder.Drain(context.Background())

	waitContext, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.builder.Wait(waitContext); err != nil {
		a.logger.Warn("drain timeout elapsed, abandoning in-flight sends",
			"final_batches", launched,
			"in_flight", a.builder.InFlight(),
			"timeout", timeout,
		)
		return
	}
	a.logger.Info("drain complete", "final_batches", launched)
}

// reset discards queued events and zeroes every counter.
func (a *agent) reset() error {
	return a.manager.Reset(counters.Multi{a.counters, a.prometheus}, func() error {
		a.counters.Reset()
		return a.prometheus.Reset()
	})
}

func (a *agent) close() error {
	if a.spool != nil {
		return a.spool.Close()
	}
	return nil
}
