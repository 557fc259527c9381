package session

import "time"

// PerformanceStats is one sample from a session's performance stats channel.
// Nil fields were not reported by the host.
type PerformanceStats struct {
	Timestamp   time.Time        `json:"timestamp"`
	Application ApplicationStats `json:"application"`
	Instance    InstanceStats    `json:"instance"`
}

// ApplicationStats are normalized to [0,1].
type ApplicationStats struct {
	CPU    *float64 `json:"cpuNormalized,omitempty"`
	Memory *float64 `json:"memoryNormalized,omitempty"`
}

// InstanceStats are percentages, with absolute memory in megabytes.
type InstanceStats struct {
	CPUPercent    *float64 `json:"cpuPercent,omitempty"`
	MemoryPercent *float64 `json:"memoryPercent,omitempty"`
	GPUPercent    *float64 `json:"gpuPercent,omitempty"`
	VRAMPercent   *float64 `json:"vramPercent,omitempty"`
	MemoryUsedMB  *float64 `json:"memoryUsedMB,omitempty"`
	MemoryTotalMB *float64 `json:"memoryTotalMB,omitempty"`
	VRAMUsedMB    *float64 `json:"vramUsedMB,omitempty"`
	VRAMTotalMB   *float64 `json:"vramTotalMB,omitempty"`
}

// Float returns a pointer to v, for building samples.
func Float(v float64) *float64 {
	return &v
}
