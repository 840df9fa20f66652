// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile writes small files under the agent's state
// directory atomically: the content goes to a temporary file in the
// same directory, is fsynced, and is renamed into place, after which
// the directory itself is synced. Readers never observe a partial
// file, and a crash leaves either the old content or the new.
package statefile
