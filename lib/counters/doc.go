// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package counters implements the agent's counter sinks: per-priority
// event enqueue and drop counts, and per-priority batch send outcomes.
//
// [Counters] keeps the totals in memory for the status endpoint and
// the agent's own health events. [Prometheus] exports the same totals
// as counter vectors on a registry. [Multi] fans every notification
// out to several sinks.
//
// All sinks are resettable. A reset replaces the underlying counters
// as a unit, so a notification racing with Reset lands in exactly one
// generation and is never counted twice.
package counters
