package control

import (
	"log/slog"
	"time"

	"github.com/ja7ad/loadgen/pkg/probe"
	"github.com/ja7ad/loadgen/pkg/sysutil"
)

// PIDGains holds the tunable constants of the CPU regulator. A test
// harness overrides them via NewCPURegulatorWithGains to exercise the
// algorithm independent of the production defaults.
type PIDGains struct {
	Kp           float64
	Ki           float64
	Kd           float64
	FilterAlpha  float64
	MaxPIDOutput float64
	TickInterval time.Duration
}

// DefaultPIDGains returns the documented defaults.
func DefaultPIDGains() PIDGains {
	return PIDGains{
		Kp:           1.5,
		Ki:           0.3,
		Kd:           0.05,
		FilterAlpha:  0.5,
		MaxPIDOutput: 20.0,
		TickInterval: 150 * time.Millisecond,
	}
}

// CPURegulator is the single control thread running the filtered PID loop:
// error = target - filtered CPU usage, and the PID output updates the duty
// ratio shared with the worker pool.
type CPURegulator struct {
	probe  probe.Probe
	state  *State
	gains  PIDGains
	target float64
	filter *sysutil.EMA
	logger *slog.Logger

	integral  float64
	prevError float64
}

// NewCPURegulator constructs a regulator with the default gains.
func NewCPURegulator(p probe.Probe, state *State, targetCPUPct float64) *CPURegulator {
	return NewCPURegulatorWithGains(p, state, targetCPUPct, DefaultPIDGains())
}

// NewCPURegulatorWithGains constructs a regulator with overridable gains,
// for reproducing the algorithm under test independent of the defaults.
func NewCPURegulatorWithGains(p probe.Probe, state *State, targetCPUPct float64, gains PIDGains) *CPURegulator {
	return &CPURegulator{probe: p, state: state, gains: gains, target: targetCPUPct, filter: sysutil.NewEMA(gains.FilterAlpha)}
}

// SetLogger attaches a logger used for per-tick diagnostics. These log at
// debug level, so they stay silent unless the caller's handler is
// configured to emit debug records. A nil logger falls back to
// slog.Default() at call time.
func (r *CPURegulator) SetLogger(l *slog.Logger) { r.logger = l }

func (r *CPURegulator) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Prime runs the regulator's start-up sequence: sleep once, then seed the
// filter with a real reading, before Run begins ticking.
func (r *CPURegulator) Prime(primeDelay time.Duration) {
	time.Sleep(primeDelay)
	r.state.SetFilteredCPUPct(r.filter.Next(r.probe.HostCPUPercent()))
}

// Run ticks the PID loop until the shared state's running flag clears.
// Callers invoke Prime first, then Run in its own goroutine.
func (r *CPURegulator) Run() {
	for r.state.Running() {
		r.tick()
		sleepInterruptible(r.gains.TickInterval, r.state)
	}
}

// tick executes one PID iteration, leaving only the tick-interval sleep to
// Run so tests can call tick repeatedly without waiting.
func (r *CPURegulator) tick() {
	raw := r.probe.HostCPUPercent()
	r.state.SetCurrentCPULoad(raw)

	filtered := r.filter.Next(raw)
	r.state.SetFilteredCPUPct(filtered)

	errVal := r.target - filtered

	r.integral = 0.95*r.integral + errVal
	windupCap := 25 / r.gains.Ki
	r.integral = sysutil.ClampF(r.integral, -windupCap, windupCap)

	derivative := errVal - r.prevError
	r.prevError = errVal

	u := r.gains.Kp*errVal + r.gains.Ki*r.integral + r.gains.Kd*derivative
	u = sysutil.ClampF(u, -r.gains.MaxPIDOutput, r.gains.MaxPIDOutput)

	delta := sysutil.RoundHalfUp(u * 0.2)
	newBusy := sysutil.ClampInt(r.state.BusyPct()+delta, 0, 100)
	r.state.SetBusyPct(newBusy)

	r.log().Debug("cpu tick",
		"raw", raw, "filtered", filtered, "error", errVal,
		"integral", r.integral, "output", u, "busy_pct", newBusy)
}
