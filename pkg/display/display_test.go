package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/loadgen/pkg/control"
)

func TestRender_WritesBothBars(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := New(&buf, false, control.DefaultPIDGains(), 0.5)

	r.Render(control.Status{
		TargetCPUPct: 50,
		TargetMemPct: 60,
		HostCPUPct:   45,
		HostMemPct:   55,
		SelfCPUPct:   1.2,
		SelfRSSMB:    10,
		LogicalCores: 4,
	})

	out := buf.String()
	assert.Contains(t, out, "CPU")
	assert.Contains(t, out, "MEM")
	assert.Contains(t, out, "target 50%")
	assert.Contains(t, out, "target 60%")
	assert.NotContains(t, out, "busy_pct", "verbose line should be suppressed")
}

func TestRender_VerboseIncludesDiagnostics(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := New(&buf, true, control.DefaultPIDGains(), 0.5)

	r.Render(control.Status{BusyPct: 42, FilteredCPU: 33, FilteredMem: 61, LogicalCores: 8})

	out := buf.String()
	assert.Contains(t, out, "busy_pct=42")
	assert.Contains(t, out, "cores=8")
}

func TestBar_FillsCellsAndLabelsPercent(t *testing.T) {
	color.NoColor = true
	require.True(t, strings.Contains(bar(10, defaultBarWidth), "#"))
	require.True(t, strings.Contains(bar(100, defaultBarWidth), "100.0%"))
}
