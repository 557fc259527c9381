// Package hoststats samples the local machine as a stand-in streaming host.
// GPU and VRAM are never reported.
package hoststats

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/gamestream/streamctl/internal/session"
)

const bytesPerMB = 1024 * 1024

// Sampler reads instance CPU and memory plus the usage of one process, which
// plays the streamed application.
type Sampler struct {
	proc *process.Process
	cpus int
	now  func() time.Time
}

// New samples pid, or the current process when pid is 0.
func New(pid int32) (*Sampler, error) {
	if pid == 0 {
		pid = int32(os.Getpid())
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("hoststats: process %d: %w", pid, err)
	}
	cpus, err := cpu.Counts(true)
	if err != nil || cpus <= 0 {
		cpus = runtime.NumCPU()
	}
	return &Sampler{proc: p, cpus: cpus, now: time.Now}, nil
}

// Sample takes one reading. Values that cannot be read are left nil.
func (s *Sampler) Sample(ctx context.Context) (session.PerformanceStats, error) {
	out := session.PerformanceStats{Timestamp: s.now().UTC()}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out.Instance.CPUPercent = session.Float(pct[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("hoststats: memory: %w", err)
	}
	out.Instance.MemoryPercent = session.Float(vm.UsedPercent)
	out.Instance.MemoryUsedMB = session.Float(float64(vm.Used) / bytesPerMB)
	out.Instance.MemoryTotalMB = session.Float(float64(vm.Total) / bytesPerMB)

	if pct, err := s.proc.CPUPercentWithContext(ctx); err == nil {
		out.Application.CPU = session.Float(normalize(pct, float64(100*s.cpus)))
	}
	if pct, err := s.proc.MemoryPercentWithContext(ctx); err == nil {
		out.Application.Memory = session.Float(normalize(float64(pct), 100))
	}

	return out, nil
}

// normalize maps v in [0,max] onto [0,1].
func normalize(v, max float64) float64 {
	if max <= 0 || v <= 0 {
		return 0
	}
	if v >= max {
		return 1
	}
	return v / max
}
