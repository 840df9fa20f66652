// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the telemetry agent's configuration.
//
// Configuration comes from a single file named by the
// BUREAU_TELEMETRY_CONFIG environment variable (via [Load]) or the
// --config flag (via [LoadFile]). There is no discovery and no
// environment override of individual values. The file is YAML; files
// ending in .json or .jsonc are read as JSON with comments and
// trailing commas allowed. Values missing from the file keep their
// [Default].
//
// Byte sizes accept integers or humanized strings ("16MiB", "64 kB").
// Durations use Go syntax ("250ms", "1m30s"). Path fields expand
// ${HOME}, ${STATE_DIR}, and ${VAR:-default}.
//
// A [Provider] holds the active configuration for a running agent.
// Its accessors are read on every queue and batch operation, so a
// reload (via [Provider.Reload] or the fsnotify-driven
// [Provider.Watch]) takes effect immediately. Subscribers are told
// about every accepted change. An invalid file is logged and ignored;
// the previous configuration stays active.
package config
