// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/eventqueue"
	"github.com/bureau-foundation/telemetry-agent/lib/transport"
)

// Settings are read on every tick so configuration reloads take
// effect without restarting the builder. *config.Provider implements
// it.
type Settings interface {
	MaxMessageSize() int
	HighPriorityInterval() time.Duration
	LowPriorityInterval() time.Duration
	SendTimeout() time.Duration
}

// Queues is the part of *eventqueue.Manager the builder uses.
type Queues interface {
	AvailableDataSize() int
	DequeueEventsFromMultipleQueues(preferred event.Priority, maxSize int) eventqueue.Batch
	DequeueFromSingleQueue(priority event.Priority, maxSize int) ([]event.Event, int)
}

// Counters receives send outcomes.
type Counters interface {
	BatchSent(priority event.Priority, events, bytes int)
	BatchFailed(priority event.Priority, events int)
}

// Config holds the parameters for [New].
type Config struct {
	Settings  Settings
	Queues    Queues
	Transport transport.Client

	// Identity is stamped into every envelope. AgentID is required.
	Identity envelope.Identity

	// Counters receives send outcomes. Nil discards.
	Counters Counters

	// Clock provides flush times. Production callers pass
	// clock.Real(); tests pass clock.Fake().
	Clock clock.Clock

	Logger *slog.Logger
}

// Builder decides when to flush and launches sends.
type Builder struct {
	settings  Settings
	queues    Queues
	transport transport.Client
	identity  envelope.Identity
	counters  Counters
	clock     clock.Clock
	logger    *slog.Logger

	mu            sync.Mutex
	lastHighFlush time.Time
	lastLowFlush  time.Time

	inFlight atomic.Int64
	sends    sync.WaitGroup
}

// New validates config and returns a Builder. Both flush intervals
// are measured from construction.
func New(config Config) (*Builder, error) {
	if config.Settings == nil {
		return nil, errors.New("batch builder: Settings is required")
	}
	if config.Queues == nil {
		return nil, errors.New("batch builder: Queues is required")
	}
	if config.Transport == nil {
		return nil, errors.New("batch builder: Transport is required")
	}
	if config.Identity.AgentID == "" {
		return nil, errors.New("batch builder: Identity.AgentID is required")
	}
	if config.Clock == nil {
		return nil, errors.New("batch builder: Clock is required")
	}
	counters := config.Counters
	if counters == nil {
		counters = nopCounters{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	now := config.Clock.Now()
	return &Builder{
		settings:      config.Settings,
		queues:        config.Queues,
		transport:     config.Transport,
		identity:      config.Identity,
		counters:      counters,
		clock:         config.Clock,
		logger:        logger,
		lastHighFlush: now,
		lastLowFlush:  now,
	}, nil
}

// Run performs one tick. It never blocks on delivery and always
// returns nil; send failures are reported through Counters.
func (b *Builder) Run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	maxSize := b.settings.MaxMessageSize()

	if available := b.queues.AvailableDataSize(); available >= maxSize {
		b.logger.Debug("queued data reached message size, forcing high priority flush",
			"available", humanize.IBytes(uint64(available)),
			"max_message_size", humanize.IBytes(uint64(maxSize)),
		)
		b.flush(ctx, event.PriorityHigh, maxSize, now)
		b.lastHighFlush = now
	}
	if now.Sub(b.lastHighFlush) >= b.settings.HighPriorityInterval() {
		b.flush(ctx, event.PriorityHigh, maxSize, now)
		b.lastHighFlush = now
	}
	if now.Sub(b.lastLowFlush) >= b.settings.LowPriorityInterval() {
		b.flush(ctx, event.PriorityLow, maxSize, now)
		b.lastLowFlush = now
	}
	return nil
}

// flush packs one batch for priority and launches its send. Reports
// whether anything was sent.
func (b *Builder) flush(ctx context.Context, priority event.Priority, maxSize int, now time.Time) bool {
	batch := b.queues.DequeueEventsFromMultipleQueues(priority, maxSize)
	if len(batch.Events) == 0 {
		return false
	}
	b.launch(ctx, priority, batch.Events, batch.Size, now)
	return true
}

func (b *Builder) launch(ctx context.Context, priority event.Priority, events []event.Event, size int, now time.Time) {
	env, err := envelope.New(b.identity, priority, now, events)
	if err != nil {
		b.logger.Error("building envelope failed, batch dropped",
			"priority", priority,
			"events", len(events),
			"error", err,
		)
		b.counters.BatchFailed(priority, len(events))
		return
	}

	parent := context.WithoutCancel(ctx)
	timeout := b.settings.SendTimeout()

	b.inFlight.Add(1)
	b.sends.Add(1)
	go func() {
		defer b.sends.Done()
		defer b.inFlight.Add(-1)

		sendContext, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		if err := b.transport.Send(sendContext, env, priority); err != nil {
			b.logger.Warn("batch send failed, batch dropped",
				"envelope", env.ID(),
				"priority", priority,
				"events", env.Len(),
				"bytes", humanize.IBytes(uint64(size)),
				"error", err,
			)
			b.counters.BatchFailed(priority, env.Len())
			return
		}
		b.logger.Debug("batch sent",
			"envelope", env.ID(),
			"priority", priority,
			"events", env.Len(),
			"bytes", humanize.IBytes(uint64(size)),
		)
		b.counters.BatchSent(priority, env.Len(), size)
	}()
}

// Drain flushes until every queue is empty, ignoring intervals. Used
// at shutdown after the schedulers have stopped. Operational events
// left with no High or Low batch to ride along with are sent as
// their own batches. Returns the number of batches launched.
func (b *Builder) Drain(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	maxSize := b.settings.MaxMessageSize()
	launched := 0
	for {
		sent := false
		for _, priority := range []event.Priority{event.PriorityLow, event.PriorityHigh} {
			if b.flush(ctx, priority, maxSize, now) {
				launched++
				sent = true
			}
		}
		if !sent {
			break
		}
	}
	for {
		events, size := b.queues.DequeueFromSingleQueue(event.PriorityOperational, maxSize)
		if len(events) == 0 {
			break
		}
		b.launch(ctx, event.PriorityOperational, events, size, now)
		launched++
	}

	if remaining := b.queues.AvailableDataSize(); remaining > 0 {
		b.logger.Warn("events larger than the message size left undelivered",
			"bytes", humanize.IBytes(uint64(remaining)),
		)
	}
	b.lastHighFlush = now
	b.lastLowFlush = now
	return launched
}

// InFlight returns the number of sends that have not completed.
func (b *Builder) InFlight() int {
	return int(b.inFlight.Load())
}

// Wait blocks until every launched send completes or ctx is done.
func (b *Builder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.sends.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopCounters struct{}

func (nopCounters) BatchSent(event.Priority, int, int) {}
func (nopCounters) BatchFailed(event.Priority, int)    {}
