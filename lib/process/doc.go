// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the agent binary's raw-output entrypoints:
// reporting a fatal error before (or after) the structured logger
// exists, and printing to stdout for --version. Everything else
// writes through slog.
package process
