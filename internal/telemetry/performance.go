package telemetry

import (
	"fmt"

	"github.com/gamestream/streamctl/internal/session"
)

// FormatGB renders a megabyte quantity as gigabytes with two decimals, or the
// placeholder when absent.
func FormatGB(mb *float64) string {
	if mb == nil {
		return Placeholder
	}
	return fmt.Sprintf("%.2f GB", *mb/1024)
}

// MemoryText is "used / total" in gigabytes.
func MemoryText(used, total *float64) string {
	if used == nil && total == nil {
		return Placeholder
	}
	return FormatGB(used) + " / " + FormatGB(total)
}

// PerformanceBars lays out the performance sample as overlay rows. A nil
// sample renders every row as the placeholder.
func PerformanceBars(p *session.PerformanceStats) []Bar {
	var (
		app  session.ApplicationStats
		inst session.InstanceStats
	)
	if p != nil {
		app, inst = p.Application, p.Instance
	}
	return []Bar{
		AppCPU.Bar(app.CPU),
		AppMemory.Bar(app.Memory),
		InstanceCPU.Bar(inst.CPUPercent),
		InstanceMemory.Bar(inst.MemoryPercent).WithText(MemoryText(inst.MemoryUsedMB, inst.MemoryTotalMB)),
		InstanceGPU.Bar(inst.GPUPercent),
		InstanceVRAM.Bar(inst.VRAMPercent).WithText(MemoryText(inst.VRAMUsedMB, inst.VRAMTotalMB)),
	}
}
