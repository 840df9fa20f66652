// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/event"
)

// Provider serves the active configuration to a running agent. The
// accessors read the current snapshot on every call. Safe for
// concurrent use.
type Provider struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Config]

	// mu serializes updates and guards subscribers, so subscribers
	// see changes one at a time and in order.
	mu          sync.Mutex
	subscribers []func(old, new *Config)
}

// NewProvider returns a provider serving initial. path is the file
// Reload and Watch read; it may be empty when the configuration does
// not come from a file.
func NewProvider(initial *Config, path string, logger *slog.Logger) (*Provider, error) {
	if initial == nil {
		return nil, errors.New("config provider: initial config is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	provider := &Provider{path: path, logger: logger}
	provider.current.Store(initial)
	return provider, nil
}

// Current returns the active snapshot. Callers must not modify it.
func (p *Provider) Current() *Config {
	return p.current.Load()
}

// Path returns the file the provider reloads from.
func (p *Provider) Path() string {
	return p.path
}

// Subscribe registers fn to be called after every accepted change,
// with the previous and new snapshots. fn runs on the updating
// goroutine and must not call Update or Subscribe.
func (p *Provider) Subscribe(fn func(old, new *Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Update validates next and makes it the active configuration.
func (p *Provider) Update(next *Config) error {
	if err := next.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.current.Swap(next)
	for _, fn := range p.subscribers {
		fn(previous, next)
	}
	return nil
}

// Reload re-reads the file and applies it. On error the active
// configuration is unchanged.
func (p *Provider) Reload() error {
	if p.path == "" {
		return errors.New("config provider: no file to reload")
	}
	next, err := LoadFile(p.path)
	if err != nil {
		return err
	}
	if err := p.Update(next); err != nil {
		return err
	}
	p.logger.Info("configuration reloaded", "path", p.path)
	return nil
}

// QueueBudget returns the byte budget of the queue for priority.
func (p *Provider) QueueBudget(priority event.Priority) int {
	return p.Current().QueueBudget(priority)
}

// MaxMessageSize returns the largest batch size in bytes.
func (p *Provider) MaxMessageSize() int {
	return p.Current().Budgets.MaxMessageSize.Int()
}

// HighPriorityInterval returns the High flush interval.
func (p *Provider) HighPriorityInterval() time.Duration {
	return p.Current().Intervals.HighPriority
}

// LowPriorityInterval returns the Low flush interval.
func (p *Provider) LowPriorityInterval() time.Duration {
	return p.Current().Intervals.LowPriority
}

// SendTimeout returns the deadline for one delivery attempt.
func (p *Provider) SendTimeout() time.Duration {
	return p.Current().Transport.SendTimeout
}

// SourcePriority returns the configured priority override for the
// named source, or fallback when the source is not listed.
func (p *Provider) SourcePriority(name string, fallback event.Priority) event.Priority {
	if priority, ok := p.Current().Sources[name]; ok {
		return priority
	}
	return fallback
}
