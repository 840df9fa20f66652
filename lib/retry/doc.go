// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry provides an escalating backoff schedule for operations
// that must be retried until they succeed.
//
// A [Policy] is a list of stages. Each stage waits a fixed backoff for
// a fixed number of attempts before the next stage takes over; the
// last stage repeats forever. For example
//
//	retry.NewPolicy(
//		retry.Stage{Tries: 3, Backoff: time.Second},
//		retry.Stage{Tries: 5, Backoff: 10 * time.Second},
//		retry.Stage{Backoff: time.Minute},
//	)
//
// waits 1s three times, 10s five times, then 1m between every further
// attempt. A Policy never gives up on its own. Callers bound retrying
// with context cancellation.
package retry
