// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-telemetry-agent collects events from local sources, buffers
// them in per-priority bounded queues, and ships them in envelopes to
// a collector (or a local SQLite spool).
//
// Two schedulers drive the agent. The producer scheduler polls every
// source on the collection interval and enqueues what they return.
// The batch scheduler ticks once a second and lets the batch builder
// decide whether a High flush, a Low flush, or a size-forced flush is
// due. With the HTTP transport the batch scheduler starts only once
// the collector answers its health probe; until then events
// accumulate (and the oldest are evicted) in the queues.
//
// The optional local HTTP surface (listen in the configuration) has:
//
//   - POST /v1/events: push a JSON array of {name, priority, time,
//     payload} events into the ingest inbox
//   - POST /v1/reset: discard every queued event and zero the counters
//   - GET /status: queue occupancy, counters, in-flight sends, tasks
//   - GET /metrics: Prometheus exposition
//
// The configuration file is watched; budgets, intervals, send timeout,
// per-source priorities and the log level take effect on reload.
// Transport, listen address and collection interval changes require a
// restart.
//
// On SIGINT or SIGTERM the schedulers stop, every queue is drained
// into final batches, and in-flight sends get transport.drain_timeout
// to complete.
package main
