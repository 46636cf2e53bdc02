// Package control implements the closed-loop control engine: the CPU worker
// pool, the PID CPU regulator, the adaptive memory regulator, the shared
// state they coordinate on, and the supervisor that wires them together.
package control

import (
	"math"
	"sync/atomic"
)

// State is the shared control state: a small set of fields written by the
// regulators and read by the workers and the renderer. Each field is its
// own atomic cell rather than being guarded by a mutex, since every update
// is an O(1) load or store and never spans I/O or allocation.
type State struct {
	running atomic.Bool

	dutyRatio atomic.Uint64 // math.Float64bits of a float64 in [0,1]

	filteredCPUPct atomic.Uint64 // math.Float64bits
	filteredMemPct atomic.Uint64 // math.Float64bits

	busyPct        atomic.Int32
	currentCPULoad atomic.Uint64 // math.Float64bits, most recent raw host_cpu_pct
}

// NewState returns a State with running=true and starting values of
// duty_ratio = 0.70, busy_pct = 70.
func NewState() *State {
	s := &State{}
	s.running.Store(true)
	s.busyPct.Store(70)
	s.dutyRatio.Store(math.Float64bits(0.70))
	return s
}

// Running reports whether the system should keep operating.
func (s *State) Running() bool { return s.running.Load() }

// Stop flips Running to false. Safe to call from a signal handler.
func (s *State) Stop() { s.running.Store(false) }

// DutyRatio returns the current per-worker duty ratio in [0,1].
func (s *State) DutyRatio() float64 {
	return math.Float64frombits(s.dutyRatio.Load())
}

// SetDutyRatio publishes a new duty ratio. Called only by the CPU regulator.
func (s *State) SetDutyRatio(d float64) {
	s.dutyRatio.Store(math.Float64bits(d))
}

// BusyPct returns the current duty expressed as an integer percentage.
func (s *State) BusyPct() int { return int(s.busyPct.Load()) }

// SetBusyPct sets busy_pct and, as its sole writer, also derives and
// publishes duty_ratio = busy_pct/100 so the two fields never disagree.
func (s *State) SetBusyPct(pct int) {
	s.busyPct.Store(int32(pct))
	s.SetDutyRatio(float64(pct) / 100)
}

// FilteredCPUPct returns the EMA-filtered host CPU percentage.
func (s *State) FilteredCPUPct() float64 {
	return math.Float64frombits(s.filteredCPUPct.Load())
}

// SetFilteredCPUPct is called only by the CPU regulator.
func (s *State) SetFilteredCPUPct(v float64) {
	s.filteredCPUPct.Store(math.Float64bits(v))
}

// FilteredMemPct returns the EMA-filtered host memory percentage.
func (s *State) FilteredMemPct() float64 {
	return math.Float64frombits(s.filteredMemPct.Load())
}

// SetFilteredMemPct is called only by the memory regulator.
func (s *State) SetFilteredMemPct(v float64) {
	s.filteredMemPct.Store(math.Float64bits(v))
}

// CurrentCPULoad returns the most recent unfiltered host_cpu_pct reading,
// exposed for the renderer's verbose diagnostics line.
func (s *State) CurrentCPULoad() float64 {
	return math.Float64frombits(s.currentCPULoad.Load())
}

// SetCurrentCPULoad is called only by the CPU regulator.
func (s *State) SetCurrentCPULoad(v float64) {
	s.currentCPULoad.Store(math.Float64bits(v))
}
