package overlay

import (
	"strings"
	"testing"

	"github.com/gamestream/streamctl/internal/session"
	"github.com/gamestream/streamctl/internal/telemetry"
)

func TestRenderBarAbsentHasNoFill(t *testing.T) {
	got := RenderBar(telemetry.Bar{Label: "GPU", Text: telemetry.Placeholder, Absent: true}, 1, 10)
	if strings.Contains(got, "█") {
		t.Errorf("absent bar has fill: %q", got)
	}
	if strings.Count(got, "░") != 10 {
		t.Errorf("absent bar = %q, want 10 empty cells", got)
	}
}

func TestRenderBarFill(t *testing.T) {
	got := RenderBar(telemetry.Bar{Fill: 0.5, Healthy: true}, 0.5, 10)
	if strings.Count(got, "█") != 5 || strings.Count(got, "░") != 5 {
		t.Errorf("bar = %q, want 5 filled of 10", got)
	}
	got = RenderBar(telemetry.Bar{Fill: 1}, 3, 4)
	if strings.Count(got, "█") != 4 {
		t.Errorf("bar = %q, want clamped to width", got)
	}
}

func TestViewShowsPlaceholders(t *testing.T) {
	m := New()
	view := m.View(80)
	if !strings.Contains(view, telemetry.Placeholder) {
		t.Error("empty overlay should show placeholders")
	}
	if !strings.Contains(view, "FPS") || !strings.Contains(view, "VRAM") {
		t.Error("overlay should list stream and performance rows")
	}
}

func TestStepSettlesOnTarget(t *testing.T) {
	m := New()
	fpsVal := 60
	m.SetSample(telemetry.Sample{FrameRate: &fpsVal})
	m.SetPerformance(&session.PerformanceStats{Instance: session.InstanceStats{CPUPercent: session.Float(50)}})

	moving := true
	for i := 0; i < 600 && moving; i++ {
		moving = m.Step()
	}
	if moving {
		t.Fatal("springs never settled")
	}
	if got := m.motion["FPS"].pos; got != 1 {
		t.Errorf("FPS fill = %v, want 1", got)
	}
	if got := m.motion["CPU"].pos; got != 0.5 {
		t.Errorf("CPU fill = %v, want 0.5", got)
	}
}
