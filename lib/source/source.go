// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Source produces events on demand.
type Source interface {
	// Name identifies the source in configuration overrides and logs.
	Name() string

	// Priority is the default priority when configuration does not
	// override it.
	Priority() event.Priority

	// Poll returns the events gathered since the previous poll, built
	// at the given effective priority. It is never called with
	// PriorityOff. Events returned alongside an error are still
	// enqueued.
	Poll(ctx context.Context, priority event.Priority) ([]event.Event, error)
}

// PriorityResolver maps a source name to its effective priority.
// *config.Provider implements it.
type PriorityResolver interface {
	SourcePriority(name string, fallback event.Priority) event.Priority
}

// Enqueuer accepts collected events. *eventqueue.Manager implements
// it.
type Enqueuer interface {
	EnqueueEvents(events []event.Event)
}

// ProducerConfig holds the parameters for [NewProducer].
type ProducerConfig struct {
	// Sources are polled in order on every run.
	Sources []Source

	// Priorities resolves per-source overrides. Nil uses each
	// source's default.
	Priorities PriorityResolver

	// Queue receives collected events. Required.
	Queue Enqueuer

	// Logger receives per-source failures. Nil discards.
	Logger *slog.Logger
}

// Producer polls sources and enqueues their events. It implements
// scheduler.Task.
type Producer struct {
	sources    []Source
	priorities PriorityResolver
	queue      Enqueuer
	logger     *slog.Logger
}

// NewProducer validates config and returns a Producer.
func NewProducer(config ProducerConfig) (*Producer, error) {
	if config.Queue == nil {
		return nil, errors.New("source: Queue is required")
	}
	seen := make(map[string]bool, len(config.Sources))
	for _, source := range config.Sources {
		if source == nil {
			return nil, errors.New("source: nil source")
		}
		if source.Name() == "" {
			return nil, errors.New("source: source name is required")
		}
		if seen[source.Name()] {
			return nil, fmt.Errorf("source: duplicate source %q", source.Name())
		}
		seen[source.Name()] = true
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Producer{
		sources:    config.Sources,
		priorities: config.Priorities,
		queue:      config.Queue,
		logger:     logger,
	}, nil
}

// Run polls every enabled source once and enqueues the results. The
// returned error joins the per-source failures; it never prevents
// other sources from running.
func (p *Producer) Run(ctx context.Context) error {
	var collected []event.Event
	var errs []error

	for _, source := range p.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		priority := p.priorityOf(source)
		if priority == event.PriorityOff {
			p.logger.Debug("source disabled, skipping", "source", source.Name())
			continue
		}

		events, err := poll(ctx, source, priority)
		collected = append(collected, events...)
		if err != nil {
			p.logger.Warn("source poll failed",
				"source", source.Name(),
				"priority", priority,
				"events", len(events),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("source %s: %w", source.Name(), err))
		}
	}

	if len(collected) > 0 {
		p.queue.EnqueueEvents(collected)
	}
	return errors.Join(errs...)
}

func (p *Producer) priorityOf(source Source) event.Priority {
	if p.priorities == nil {
		return source.Priority()
	}
	return p.priorities.SourcePriority(source.Name(), source.Priority())
}

// poll calls source.Poll, converting a panic into an error.
func poll(ctx context.Context, source Source, priority event.Priority) (events []event.Event, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			events = nil
			err = fmt.Errorf("panic: %v\n%s", recovered, debug.Stack())
		}
	}()
	return source.Poll(ctx, priority)
}
