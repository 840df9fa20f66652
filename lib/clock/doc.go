// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the agent's injectable time source.
//
// The scheduler, the batch builder, and the retry policy never call
// time.Now or time.After directly. They hold a [Clock] and production
// wiring passes [Real]. Tests pass [Fake] and drive time forward with
// [FakeClock.Advance], so a polling loop that waits 250ms between
// passes can be stepped through deterministically:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go sched.Start(ctx, true)
//	fakeClock.WaitForTimers(1)          // loop is parked in After
//	fakeClock.Advance(250 * time.Millisecond)
//
// WaitForTimers closes the race between a goroutine registering its
// wait and the test advancing past the deadline.
package clock
