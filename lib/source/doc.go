// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package source defines where events come from and the task that
// collects them.
//
// A [Source] yields a finite batch of events per poll. The [Producer]
// is a scheduler task that polls every registered source once per
// run, resolving each source's effective priority through the
// configuration (per-source overrides, falling back to the source's
// default). A source whose effective priority is Off is not polled at
// all. A failing or panicking source is logged and skipped; the
// others still run, and everything collected is handed to the queue
// manager in one call.
//
// Built-in sources:
//
//   - [HostStats]: operational host snapshot (load, memory, uptime)
//     plus the agent's own resource usage
//   - [AgentHealth]: operational self-diagnostic of queue occupancy
//     and delivery counters
//   - [Inbox]: bounded hand-off for events pushed in from outside the
//     process, fed by the local ingest endpoint
package source
