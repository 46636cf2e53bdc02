//go:build linux

package probe

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ja7ad/loadgen/pkg/sysutil"
	"github.com/ja7ad/loadgen/pkg/units"
)

// linuxProbe reads /proc/stat, /proc/meminfo, /proc/self/stat and
// /proc/self/status directly rather than going through gopsutil, since /proc
// parsing is cheap and precise enough to run on the CPU regulator's fast
// tick and the memory regulator's slower tick without measurable overhead.
// The only non-stdlib import is golang.org/x/sys/unix, for the Sysinfo
// total-memory fast path.
type linuxProbe struct {
	mu sync.Mutex

	clockTicks int64
	ncores     int

	hostPrimed   bool
	hostActive   uint64
	hostTotal    uint64
	selfPrimed   bool
	selfJiffies  uint64
	selfSysTotal uint64

	totalMemMB units.MiB
}

// New constructs a Probe backed by /proc. It never fails: if /proc is
// unreadable, operations simply return 0, matching the rest of the Host
// Probe's "swallow, don't propagate" contract.
func New() (Probe, error) {
	p := &linuxProbe{
		clockTicks: clockTicksPerSec(),
		ncores:     runtime.NumCPU(),
	}
	p.totalMemMB = p.readTotalMemMB()
	return p, nil
}

func clockTicksPerSec() int64 {
	if v, _ := strconv.Atoi(os.Getenv("CLK_TCK")); v > 0 {
		return int64(v)
	}
	return 100
}

func (p *linuxProbe) LogicalCores() int {
	if p.ncores < 1 {
		return 1
	}
	return p.ncores
}

// HostCPUPercent samples the aggregate CPU jiffy counters. On the first
// call it takes a snapshot, sleeps briefly, then returns the delta over
// that short window; later calls measure the delta since the previous call.
func (p *linuxProbe) HostCPUPercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	active, total, ok := readSystemCPU()
	if !ok {
		return 0
	}

	if !p.hostPrimed {
		p.hostActive, p.hostTotal = active, total
		p.hostPrimed = true
		p.mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		p.mu.Lock()
		active, total, ok = readSystemCPU()
		if !ok {
			return 0
		}
	}

	dActive := sysutil.DeltaU64(active, p.hostActive)
	dTotal := sysutil.DeltaU64(total, p.hostTotal)
	p.hostActive, p.hostTotal = active, total

	if dTotal == 0 {
		return 0
	}
	return sysutil.ClampPct(sysutil.SafeDiv(float64(dActive), float64(dTotal)) * 100)
}

// HostMemPercent returns (total-available)/total*100 using /proc/meminfo's
// MemAvailable when the kernel provides it (3.14+), falling back to
// free+buffers+cached otherwise, matching `free`'s own accounting.
func (p *linuxProbe) HostMemPercent() float64 {
	total, available, ok := readMemAvailable()
	if !ok || total == 0 {
		return 0
	}
	used := total - available
	return sysutil.ClampPct(sysutil.SafeDiv(float64(used), float64(total)) * 100)
}

func (p *linuxProbe) TotalMemMB() units.MiB {
	return p.totalMemMB
}

func (p *linuxProbe) readTotalMemMB() units.MiB {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err == nil && info.Totalram > 0 {
		total := uint64(info.Totalram) * uint64(info.Unit)
		return units.FromBytes(total)
	}
	total, _, ok := readMemAvailable()
	if !ok {
		return 0
	}
	return units.MiB(total / 1024)
}

// SelfCPUPercent returns Δ(process_cpu_time)/Δ(system_total_cpu_time)*100.
func (p *linuxProbe) SelfCPUPercent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	jiffies, ok := readSelfJiffies()
	if !ok {
		return 0
	}
	_, sysTotal, ok := readSystemCPU()
	if !ok {
		return 0
	}

	if !p.selfPrimed {
		p.selfJiffies, p.selfSysTotal = jiffies, sysTotal
		p.selfPrimed = true
		return 0
	}

	dSelf := sysutil.DeltaU64(jiffies, p.selfJiffies)
	dSys := sysutil.DeltaU64(sysTotal, p.selfSysTotal)
	p.selfJiffies, p.selfSysTotal = jiffies, sysTotal

	if dSys == 0 {
		return 0
	}
	pct := sysutil.SafeDiv(float64(dSelf), float64(dSys)) * 100
	if pct < 0 {
		return 0
	}
	maxPct := 100 * float64(p.LogicalCores())
	if pct > maxPct {
		return maxPct
	}
	return pct
}

func (p *linuxProbe) SelfRSSMB() units.MiB {
	b, ok := readSelfRSSBytes()
	if !ok {
		return 0
	}
	return units.FromBytes(b)
}

// readSystemCPU parses the aggregate "cpu" line of /proc/stat and returns
// (active, total) jiffy counters.
func readSystemCPU() (active, total uint64, ok bool) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fs := strings.Fields(sc.Text())
		if len(fs) == 0 || fs[0] != "cpu" {
			continue
		}
		if len(fs) < 9 {
			return 0, 0, false
		}
		vals := make([]uint64, 0, len(fs)-1)
		for _, s := range fs[1:] {
			v, _ := strconv.ParseUint(s, 10, 64)
			vals = append(vals, v)
		}
		active = vals[0] + vals[1] + vals[2] + vals[5] + vals[6] + vals[7]
		total = active + vals[3] + vals[4]
		return active, total, true
	}
	return 0, 0, false
}

// readMemAvailable returns (MemTotal, available) in kB from /proc/meminfo.
func readMemAvailable() (totalKB, availableKB uint64, ok bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	var total, free, buffers, cached, available uint64
	var haveAvailable bool

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		key, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "kB"))
		n, _ := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		switch strings.TrimSpace(key) {
		case "MemTotal":
			total = n
		case "MemFree":
			free = n
		case "Buffers":
			buffers = n
		case "Cached":
			cached = n
		case "MemAvailable":
			available = n
			haveAvailable = true
		}
	}
	if total == 0 {
		return 0, 0, false
	}
	if haveAvailable {
		return total, available, true
	}
	return total, free + buffers + cached, true
}

// readSelfJiffies returns utime+stime from /proc/self/stat, locating
// fields after the comm field's closing parenthesis rather than trusting
// fixed offsets (the comm field itself may contain spaces or parentheses).
func readSelfJiffies() (uint64, bool) {
	b, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, false
	}
	line := string(b)
	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(line[i+2:])
	// utime is the 14th field overall -> fields[11]; stime the 15th -> fields[12].
	if len(fields) < 13 {
		return 0, false
	}
	utime, err1 := strconv.ParseUint(fields[11], 10, 64)
	stime, err2 := strconv.ParseUint(fields[12], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return utime + stime, true
}

// readSelfRSSBytes reads VmRSS from /proc/self/status.
func readSelfRSSBytes() (uint64, bool) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fs := strings.Fields(line)
		if len(fs) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fs[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
