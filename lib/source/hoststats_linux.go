// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sysinfo load averages are fixed-point with 16 fractional bits.
const loadScale = 1 << 16

func sampleHost(snapshot *HostSnapshot) error {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	snapshot.UptimeSeconds = int64(info.Uptime)
	for i, load := range info.Loads {
		snapshot.LoadAverage[i] = float64(load) / loadScale
	}
	snapshot.MemoryTotal = uint64(info.Totalram) * unit
	snapshot.MemoryFree = uint64(info.Freeram) * unit
	snapshot.MemoryShared = uint64(info.Sharedram) * unit
	snapshot.MemoryBuffered = uint64(info.Bufferram) * unit
	snapshot.SwapTotal = uint64(info.Totalswap) * unit
	snapshot.SwapFree = uint64(info.Freeswap) * unit
	snapshot.Processes = int(info.Procs)

	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return fmt.Errorf("getrusage: %w", err)
	}
	snapshot.AgentUserCPU = usage.Utime.Nano()
	snapshot.AgentSystemCPU = usage.Stime.Nano()
	// ru_maxrss is kilobytes on Linux.
	snapshot.AgentMaxRSS = int64(usage.Maxrss) * 1024
	snapshot.AgentMajFaults = int64(usage.Majflt)
	return nil
}
