// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package collector

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/telemetryd/telemetryd/internal/wire"
)

// SampleFunc captures one host metrics sample. It is a field on Sampler
// rather than a free function call so tests can substitute a deterministic
// source.
type SampleFunc func() (wire.Metrics, error)

// GopsutilSample is the production SampleFunc: overall and per-core CPU
// percentages plus virtual memory totals, via gopsutil.
func GopsutilSample() (wire.Metrics, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return wire.Metrics{}, fmt.Errorf("reading memory stats: %w", err)
	}

	perCore, err := cpu.Percent(0, true)
	if err != nil {
		return wire.Metrics{}, fmt.Errorf("reading per-core cpu usage: %w", err)
	}
	overall, err := cpu.Percent(0, false)
	if err != nil {
		return wire.Metrics{}, fmt.Errorf("reading overall cpu usage: %w", err)
	}

	cpuCount := uint32(len(perCore))
	var cpuUsage float32
	if len(overall) > 0 {
		cpuUsage = float32(overall[0])
	}

	avgUsage := cpuUsage
	if cpuCount > 0 {
		var sum float64
		for _, p := range perCore {
			sum += p
		}
		avgUsage = float32(sum / float64(cpuCount))
	}

	return wire.Metrics{
		TotalMemoryKiB: vm.Total / 1024,
		UsedMemoryKiB:  vm.Used / 1024,
		CPUCount:       cpuCount,
		CPUUsagePct:    cpuUsage,
		AvgCPUUsagePct: avgUsage,
	}, nil
}
