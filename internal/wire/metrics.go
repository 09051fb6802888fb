// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

// Metrics is a single host-resource sample, matching the JSON field names
// the Rust collector serializes.
type Metrics struct {
	TotalMemoryKiB uint64  `json:"total_memory"`
	UsedMemoryKiB  uint64  `json:"used_memory"`
	CPUCount       uint32  `json:"cpus"`
	CPUUsagePct    float32 `json:"cpu_usage"`
	AvgCPUUsagePct float32 `json:"avg_cpu_usage"`
}

// Command is the externally-tagged enum carried as a frame's payload:
// exactly one of SubmitData or Exit.
type Command interface {
	collector() CollectorID
}

// SubmitData carries one metrics sample for a collector.
type SubmitData struct {
	CollectorID CollectorID
	Metrics     Metrics
}

func (c SubmitData) collector() CollectorID { return c.CollectorID }

// Exit announces that a collector is shutting down. The receiver logs it
// and keeps serving other collectors; it never terminates the receiver.
type Exit struct {
	CollectorID CollectorID
}

func (c Exit) collector() CollectorID { return c.CollectorID }

// CollectorOf returns the collector id carried by any Command.
func CollectorOf(cmd Command) CollectorID {
	return cmd.collector()
}
