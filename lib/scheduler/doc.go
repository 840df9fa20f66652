// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs recurring tasks on a fixed delay.
//
// Each registered task carries an interval and the time it is next
// due. The scheduler polls: on every pass it runs, in registration
// order, each task whose due time has arrived, then sets that task's
// next due time to the clock reading after the run plus the interval.
// A slow run therefore pushes its successor back instead of causing a
// burst of catch-up runs.
//
// A task that returns an error or panics is logged and stays
// scheduled. Nothing a task does can stop the scheduler or another
// task.
//
// [Scheduler.Start] runs the polling loop either on the caller's
// goroutine (inline) or on a goroutine of its own. Cancelling the
// context passed to Start stops the loop at the next poll; a task
// that is already running is allowed to finish, and receives a
// context that is not cancelled with Start's.
package scheduler
