package control

import (
	"time"

	"github.com/ja7ad/loadgen/pkg/probe"
)

// DefaultUpdateInterval is the supervisor's default tick period.
const DefaultUpdateInterval = time.Second

// DefaultPrimeDelay is the pause before the CPU regulator's filter is
// seeded from its first real reading.
const DefaultPrimeDelay = time.Second

// StatusRenderer receives a snapshot once per supervisor tick. It is an
// external collaborator that the supervisor merely calls; the control
// engine does not depend on what it does with a Status.
type StatusRenderer interface {
	Render(Status)
}

// Status is the read-only snapshot handed to the renderer each tick.
type Status struct {
	TargetCPUPct float64
	TargetMemPct float64
	BusyPct      int
	FilteredCPU  float64
	FilteredMem  float64
	CurrentCPU   float64
	AllocatedMB  uint64
	TotalMemMB   uint64
	SelfCPUPct   float64
	SelfRSSMB    uint64
	HostCPUPct   float64
	HostMemPct   float64
	LogicalCores int
}

// Supervisor wires the probe, shared state, worker pool, CPU regulator and
// memory regulator together and drives the main render/tick loop until
// told to stop.
type Supervisor struct {
	Probe          probe.Probe
	State          *State
	Workers        *WorkerPool
	CPURegulator   *CPURegulator
	MemRegulator   *MemoryRegulator
	Renderer       StatusRenderer
	UpdateInterval time.Duration
	PrimeDelay     time.Duration

	targetCPUPct float64
	targetMemPct float64
}

// NewSupervisor assembles a Supervisor from already-constructed components.
func NewSupervisor(p probe.Probe, state *State, workers *WorkerPool, cpuReg *CPURegulator, memReg *MemoryRegulator, renderer StatusRenderer, targetCPUPct, targetMemPct float64) *Supervisor {
	return &Supervisor{
		Probe:          p,
		State:          state,
		Workers:        workers,
		CPURegulator:   cpuReg,
		MemRegulator:   memReg,
		Renderer:       renderer,
		UpdateInterval: DefaultUpdateInterval,
		PrimeDelay:     DefaultPrimeDelay,
		targetCPUPct:   targetCPUPct,
		targetMemPct:   targetMemPct,
	}
}

// Run primes the probe, spawns the worker pool and CPU regulator, then
// executes the main loop until the shared state's running flag clears. It
// returns once every task has observed cancellation and the buffer pool has
// been freed.
func (s *Supervisor) Run() {
	// Prime the probe: the first host_cpu_pct() reading covers the time
	// before this process even started, so it is discarded. Sleeping
	// before starting the workers gives the next reading a real window
	// to measure.
	s.Probe.HostCPUPercent()
	sleepInterruptible(s.PrimeDelay, s.State)

	s.Workers.Start()

	cpuRegDone := make(chan struct{})
	go func() {
		defer close(cpuRegDone)
		s.CPURegulator.Prime(s.PrimeDelay)
		s.CPURegulator.Run()
	}()

	for s.State.Running() {
		s.MemRegulator.Tick()
		if s.Renderer != nil {
			s.Renderer.Render(s.snapshot())
		}
		sleepInterruptible(s.UpdateInterval, s.State)
	}

	s.Workers.Wait()
	<-cpuRegDone
	s.MemRegulator.Free()
}

// Shutdown flips the cancellation flag. Safe to call from a signal handler.
func (s *Supervisor) Shutdown() { s.State.Stop() }

func (s *Supervisor) snapshot() Status {
	return Status{
		TargetCPUPct: s.targetCPUPct,
		TargetMemPct: s.targetMemPct,
		BusyPct:      s.State.BusyPct(),
		FilteredCPU:  s.State.FilteredCPUPct(),
		FilteredMem:  s.State.FilteredMemPct(),
		CurrentCPU:   s.State.CurrentCPULoad(),
		AllocatedMB:  uint64(s.MemRegulator.AllocatedMB()),
		TotalMemMB:   uint64(s.Probe.TotalMemMB()),
		SelfCPUPct:   s.Probe.SelfCPUPercent(),
		SelfRSSMB:    uint64(s.Probe.SelfRSSMB()),
		HostCPUPct:   s.State.CurrentCPULoad(),
		HostMemPct:   s.Probe.HostMemPercent(),
		LogicalCores: s.Probe.LogicalCores(),
	}
}
