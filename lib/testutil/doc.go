// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the agent's
// packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern used to wait on goroutines. They are the
// only place in the test suite that waits on the wall clock; all
// scheduling under test runs on clock.FakeClock.
//
// [Logger] routes slog output through t.Log so that log lines appear
// next to the failing test. [Event] builds a real event (with a real
// encoded size) or fails the test.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
