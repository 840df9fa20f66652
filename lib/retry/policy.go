// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
)

// Stage is one step of a [Policy].
type Stage struct {
	// Tries is how many consecutive waits use this stage's Backoff.
	// Ignored for the final stage, which repeats forever.
	Tries int `yaml:"tries"`

	// Backoff is the wait before each retry in this stage.
	Backoff time.Duration `yaml:"backoff"`
}

// Policy yields the wait before each retry. A Policy tracks how many
// waits it has handed out and is not safe for concurrent use; give
// each retry loop its own.
type Policy struct {
	stages []Stage
	stage  int
	used   int
}

// NewPolicy validates stages and returns a policy positioned at the
// first wait of the first stage.
func NewPolicy(stages ...Stage) (*Policy, error) {
	if err := Validate(stages); err != nil {
		return nil, err
	}
	return &Policy{stages: append([]Stage(nil), stages...)}, nil
}

// Validate checks that stages describe a usable policy: at least one
// stage, no negative backoff, a positive try count on every stage
// that is followed by another, and backoffs that never decrease.
func Validate(stages []Stage) error {
	if len(stages) == 0 {
		return errors.New("retry: at least one stage is required")
	}
	var errs []error
	for i, stage := range stages {
		if stage.Backoff < 0 {
			errs = append(errs, fmt.Errorf("retry: stage %d: backoff %s is negative", i, stage.Backoff))
		}
		if i < len(stages)-1 && stage.Tries <= 0 {
			errs = append(errs, fmt.Errorf("retry: stage %d: tries must be positive, got %d", i, stage.Tries))
		}
		if i > 0 && stage.Backoff < stages[i-1].Backoff {
			errs = append(errs, fmt.Errorf("retry: stage %d: backoff %s is shorter than stage %d (%s)",
				i, stage.Backoff, i-1, stages[i-1].Backoff))
		}
	}
	return errors.Join(errs...)
}

// Next returns the wait before the next retry and advances the
// schedule.
func (p *Policy) Next() time.Duration {
	current := p.stages[p.stage]
	if p.stage < len(p.stages)-1 {
		p.used++
		if p.used >= current.Tries {
			p.stage++
			p.used = 0
		}
	}
	return current.Backoff
}

// Reset rewinds the policy to the first wait of the first stage. Call
// after a success so the next failure starts with the shortest wait.
func (p *Policy) Reset() {
	p.stage = 0
	p.used = 0
}

// Wait blocks for [Policy.Next] on clk, or until ctx is done.
func (p *Policy) Wait(ctx context.Context, clk clock.Clock) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(p.Next()):
		return nil
	}
}

// Forever calls operation until it returns nil, waiting between
// attempts according to the policy. The policy is reset before the
// first attempt. Only cancellation of ctx stops it early, in which
// case the context error is returned joined with the last failure.
func (p *Policy) Forever(ctx context.Context, clk clock.Clock, logger *slog.Logger, name string, operation func(context.Context) error) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p.Reset()
	for attempt := 1; ; attempt++ {
		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("retry succeeded", "operation", name, "attempts", attempt)
			}
			return nil
		}
		wait := p.peek()
		logger.Warn("operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
		if waitErr := p.Wait(ctx, clk); waitErr != nil {
			return errors.Join(waitErr, err)
		}
	}
}

// peek returns the wait Next would return without advancing.
func (p *Policy) peek() time.Duration {
	return p.stages[p.stage].Backoff
}
