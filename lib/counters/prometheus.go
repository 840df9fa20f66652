// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package counters

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Namespace prefixes every exported metric name.
const Namespace = "telemetry_agent"

// Prometheus exports counter totals as CounterVecs labelled by
// priority.
type Prometheus struct {
	registerer prometheus.Registerer

	mu      sync.RWMutex
	vectors *vectorSet
}

type vectorSet struct {
	enqueued      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	batchesSent   *prometheus.CounterVec
	batchesFailed *prometheus.CounterVec
	bytesSent     *prometheus.CounterVec
}

func newVectorSet() *vectorSet {
	vector := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      name,
			Help:      help,
		}, []string{"priority"})
	}
	return &vectorSet{
		enqueued:      vector("events_enqueued_total", "Events offered to a queue, including rejected events."),
		dropped:       vector("events_dropped_total", "Events rejected at admission or evicted on overflow."),
		batchesSent:   vector("batches_sent_total", "Batches accepted by the transport."),
		batchesFailed: vector("batches_failed_total", "Batches the transport failed to deliver."),
		bytesSent:     vector("batch_bytes_sent_total", "Estimated event bytes in delivered batches."),
	}
}

func (v *vectorSet) collectors() []prometheus.Collector {
	return []prometheus.Collector{v.enqueued, v.dropped, v.batchesSent, v.batchesFailed, v.bytesSent}
}

// NewPrometheus creates the counter vectors and registers them on
// registerer.
func NewPrometheus(registerer prometheus.Registerer) (*Prometheus, error) {
	if registerer == nil {
		return nil, fmt.Errorf("prometheus counters: Registerer is required")
	}
	p := &Prometheus{registerer: registerer}
	vectors := newVectorSet()
	if err := p.register(vectors); err != nil {
		return nil, err
	}
	p.vectors = vectors
	return p, nil
}

func (p *Prometheus) register(vectors *vectorSet) error {
	var registered []prometheus.Collector
	for _, collector := range vectors.collectors() {
		if err := p.registerer.Register(collector); err != nil {
			for _, done := range registered {
				p.registerer.Unregister(done)
			}
			return fmt.Errorf("registering telemetry counters: %w", err)
		}
		registered = append(registered, collector)
	}
	return nil
}

// Reset unregisters the current vectors and registers fresh ones.
// The old vectors are unregistered first, so a scrape never sees both
// generations.
func (p *Prometheus) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, collector := range p.vectors.collectors() {
		if !p.registerer.Unregister(collector) {
			errs = append(errs, errors.New("counter vector was not registered"))
		}
	}
	vectors := newVectorSet()
	if err := p.register(vectors); err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	p.vectors = vectors
	return errors.Join(errs...)
}

func (p *Prometheus) current() *vectorSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vectors
}

// EventsEnqueued implements [eventqueue.CounterSink].
func (p *Prometheus) EventsEnqueued(priority event.Priority, count int) {
	p.current().enqueued.WithLabelValues(priority.String()).Add(float64(count))
}

// EventsDropped implements [eventqueue.CounterSink].
func (p *Prometheus) EventsDropped(priority event.Priority, count int) {
	p.current().dropped.WithLabelValues(priority.String()).Add(float64(count))
}

// BatchSent implements [batch.Counters].
func (p *Prometheus) BatchSent(priority event.Priority, events, bytes int) {
	vectors := p.current()
	vectors.batchesSent.WithLabelValues(priority.String()).Inc()
	vectors.bytesSent.WithLabelValues(priority.String()).Add(float64(bytes))
}

// BatchFailed implements [batch.Counters].
func (p *Prometheus) BatchFailed(priority event.Priority, events int) {
	p.current().batchesFailed.WithLabelValues(priority.String()).Inc()
}
