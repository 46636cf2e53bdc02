//go:build !linux

package probe

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	gopsutilcpu "github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	gopsutilprocess "github.com/shirou/gopsutil/v4/process"

	"github.com/ja7ad/loadgen/pkg/sysutil"
	"github.com/ja7ad/loadgen/pkg/units"
)

// otherProbe backs the probe on platforms without /proc, using gopsutil/v4
// for cross-platform CPU and memory reading. Linux keeps the
// dependency-free /proc backend (see probe_linux.go) since gopsutil's
// per-call overhead is unnecessary there.
type otherProbe struct {
	mu      sync.Mutex
	ncores  int
	proc    *gopsutilprocess.Process
	primed  bool
	totalMB units.MiB
}

// New constructs a gopsutil-backed Probe.
func New() (Probe, error) {
	proc, err := gopsutilprocess.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	p := &otherProbe{
		ncores: runtime.NumCPU(),
		proc:   proc,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		p.totalMB = units.FromBytes(vm.Total)
	}
	return p, nil
}

func (p *otherProbe) LogicalCores() int {
	if p.ncores < 1 {
		return 1
	}
	return p.ncores
}

func (p *otherProbe) HostCPUPercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.primed {
		p.primed = true
		// Prime like the Linux backend: snapshot then a short sleep so the
		// first reading is a real (if noisy) instantaneous value rather
		// than gopsutil's own blocking-interval sample, which would stall
		// the CPU regulator's first tick.
		_, _ = gopsutilcpu.Percent(50*time.Millisecond, false)
	}

	pcts, err := gopsutilcpu.Percent(0, false)
	if err != nil || len(pcts) == 0 {
		return 0
	}
	return sysutil.ClampPct(pcts[0])
}

func (p *otherProbe) HostMemPercent() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return sysutil.ClampPct(vm.UsedPercent)
}

func (p *otherProbe) TotalMemMB() units.MiB {
	return p.totalMB
}

func (p *otherProbe) SelfCPUPercent() float64 {
	pct, err := p.proc.PercentWithContext(context.Background(), 0)
	if err != nil {
		return 0
	}
	if pct < 0 {
		return 0
	}
	maxPct := 100 * float64(p.LogicalCores())
	if pct > maxPct {
		return maxPct
	}
	return pct
}

func (p *otherProbe) SelfRSSMB() units.MiB {
	mi, err := p.proc.MemoryInfoWithContext(context.Background())
	if err != nil || mi == nil {
		return 0
	}
	return units.FromBytes(mi.RSS)
}
