// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bureau-foundation/telemetry-agent/lib/config"
	"github.com/bureau-foundation/telemetry-agent/lib/statefile"
)

// agentIDFile is the file under agent.state_dir holding the generated
// agent ID.
const agentIDFile = "agent-id"

// resolveAgentID returns the configured agent ID, or the ID persisted
// in the state directory, generating and persisting a random UUID on
// first start.
func resolveAgentID(agentConfig config.AgentConfig) (string, error) {
	if agentConfig.ID != "" {
		return agentConfig.ID, nil
	}

	path := filepath.Join(agentConfig.StateDir, agentIDFile)
	stored, ok, err := statefile.ReadString(path)
	if err != nil {
		return "", fmt.Errorf("reading agent id: %w", err)
	}
	if ok {
		id, err := uuid.Parse(stored)
		if err != nil {
			return "", fmt.Errorf("agent id file %s: %w", path, err)
		}
		return id.String(), nil
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating agent id: %w", err)
	}
	if err := statefile.Write(path, []byte(id.String()+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persisting agent id: %w", err)
	}
	return id.String(), nil
}
