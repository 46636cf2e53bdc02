package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/loadgen/pkg/units"
)

// fakeProbe lets tests drive the CPU regulator with a scripted host CPU
// reading instead of real /proc data.
type fakeProbe struct {
	hostCPU    float64
	hostMem    float64
	totalMemMB units.MiB
	ncores     int
}

func (f *fakeProbe) HostCPUPercent() float64  { return f.hostCPU }
func (f *fakeProbe) HostMemPercent() float64  { return f.hostMem }
func (f *fakeProbe) TotalMemMB() units.MiB    { return f.totalMemMB }
func (f *fakeProbe) SelfCPUPercent() float64  { return 0 }
func (f *fakeProbe) SelfRSSMB() units.MiB     { return 0 }
func (f *fakeProbe) LogicalCores() int {
	if f.ncores < 1 {
		return 1
	}
	return f.ncores
}

func TestCPURegulator_Tick_MovesBusyPctTowardTarget(t *testing.T) {
	p := &fakeProbe{hostCPU: 10}
	s := NewState()
	s.SetFilteredCPUPct(10)
	r := NewCPURegulator(p, s, 50)

	for i := 0; i < 50; i++ {
		r.tick()
	}

	assert.Greater(t, s.BusyPct(), 70, "busy_pct should climb above its initial 70 when host is well under target")
	assert.GreaterOrEqual(t, s.BusyPct(), 0)
	assert.LessOrEqual(t, s.BusyPct(), 100)
}

func TestCPURegulator_Tick_RespectsSaturatingClamp(t *testing.T) {
	p := &fakeProbe{hostCPU: 0}
	s := NewState()
	s.SetFilteredCPUPct(0)
	r := NewCPURegulator(p, s, 100)

	for i := 0; i < 200; i++ {
		r.tick()
		require.GreaterOrEqual(t, s.BusyPct(), 0)
		require.LessOrEqual(t, s.BusyPct(), 100)
	}
	assert.Equal(t, 100, s.BusyPct())
}

func TestCPURegulator_Tick_IntegralStaysWithinAntiWindupCap(t *testing.T) {
	p := &fakeProbe{hostCPU: 0}
	s := NewState()
	gains := DefaultPIDGains()
	r := NewCPURegulatorWithGains(p, s, 100, gains)

	for i := 0; i < 500; i++ {
		r.tick()
		cap := 25 / gains.Ki
		assert.LessOrEqual(t, r.integral, cap+1e-9)
		assert.GreaterOrEqual(t, r.integral, -cap-1e-9)
	}
}

func TestCPURegulator_Tick_ZeroErrorHoldsBusyPctSteady(t *testing.T) {
	p := &fakeProbe{hostCPU: 50}
	s := NewState()
	s.SetFilteredCPUPct(50)
	s.SetBusyPct(50)
	r := NewCPURegulator(p, s, 50)

	r.tick()
	assert.Equal(t, 50, s.BusyPct())
}
