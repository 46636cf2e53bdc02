package control

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/ja7ad/loadgen/pkg/probe"
	"github.com/ja7ad/loadgen/pkg/sysutil"
	"github.com/ja7ad/loadgen/pkg/units"
)

// block is one contiguous owned buffer in the memory pool.
type block struct {
	data []byte
	mb   units.MiB
}

// memTouchChunk is how much of each even-indexed MiB slice gets touched to
// pin the page, rather than touching the whole allocation.
const memTouchChunk = 256 * 1024

// defaultMaxPerCycle caps how many new blocks grow allocates in one tick.
const defaultMaxPerCycle = 500

// minMaxPerCycle is the floor the per-tick cap is never scaled below; it
// takes effect when a high change rate halves defaultMaxPerCycle to 250.
const minMaxPerCycle = 300

// MemoryRegulator owns the block pool and adaptively grows or shrinks it to
// drive host memory usage toward targetMemPct.
type MemoryRegulator struct {
	probe        probe.Probe
	state        *State
	targetMemPct float64
	totalMemMB   units.MiB
	alpha        float64
	filter       *sysutil.EMA
	logger       *slog.Logger

	blocks []block

	lastMemPct      float64
	haveLastMemPct  bool
	avgChangeRate   float64
	prevNeededPct   float64
	adjustmentCount int
	notReachedCount int
	stabiliseCount  int
	failedAllocs    int

	rng *rand.Rand
}

// NewMemoryRegulator constructs a regulator targeting targetMemPct of
// totalMemMB. alpha is the base filter coefficient, playing the same role
// here as filter_alpha does for the CPU loop's EMA.
func NewMemoryRegulator(p probe.Probe, state *State, targetMemPct float64, totalMemMB units.MiB, alpha float64, rng *rand.Rand) *MemoryRegulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MemoryRegulator{
		probe:        p,
		state:        state,
		targetMemPct: targetMemPct,
		totalMemMB:   totalMemMB,
		alpha:        alpha,
		filter:       sysutil.NewEMA(alpha),
		rng:          rng,
	}
}

// SetLogger attaches a logger used for allocation back-off diagnostics.
// These log at warn level, since a back-off is an operational event worth
// surfacing regardless of verbosity. A nil logger falls back to
// slog.Default() at call time.
func (m *MemoryRegulator) SetLogger(l *slog.Logger) { m.logger = l }

func (m *MemoryRegulator) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// AllocatedMB returns the sum of all owned buffer sizes.
func (m *MemoryRegulator) AllocatedMB() units.MiB {
	var total units.MiB
	for _, b := range m.blocks {
		total += b.mb
	}
	return total
}

// BlockCount returns the number of owned buffers.
func (m *MemoryRegulator) BlockCount() int { return len(m.blocks) }

// Free releases every owned buffer, for use on shutdown.
func (m *MemoryRegulator) Free() {
	m.blocks = nil
}

// Tick runs one invocation of the memory regulator: sense and filter the
// current usage, blend it into an effective gap, apply dwell and hysteresis,
// then grow or release blocks to close the gap.
func (m *MemoryRegulator) Tick() {
	cur := m.probe.HostMemPercent()

	// Sense and filter.
	changeRate := 0.0
	if m.haveLastMemPct {
		changeRate = sysutil.ClampF(abs(cur-m.lastMemPct), 0, 100)
	}
	if m.avgChangeRate == 0 {
		m.avgChangeRate = changeRate
	} else {
		m.avgChangeRate = 0.7*m.avgChangeRate + 0.3*changeRate
	}
	m.lastMemPct = cur
	m.haveLastMemPct = true

	alphaM := m.alpha
	switch {
	case m.avgChangeRate > 2.0:
		alphaM = m.alpha * 0.5
	case m.avgChangeRate < 0.5:
		alphaM = minF(m.alpha*1.5, 0.8)
	}
	filtered := m.filter.NextAlpha(cur, alphaM)
	m.state.SetFilteredMemPct(filtered)

	// Error blending.
	gapNow := m.targetMemPct - cur
	gapFilt := m.targetMemPct - filtered
	wNow := 0.5
	switch {
	case m.avgChangeRate > 1.5:
		wNow = 0.3
	case m.avgChangeRate < 0.5:
		wNow = 0.7
	}
	effectiveGap := wNow*gapNow + (1-wNow)*gapFilt

	// Stabilisation dwell.
	if abs(effectiveGap) < 2.0 {
		m.stabiliseCount++
		if m.stabiliseCount < 3 {
			return
		}
		m.stabiliseCount = 0
	} else {
		m.stabiliseCount = 0
	}

	// Small-gap nudge.
	if effectiveGap > 0 && effectiveGap < 3.0 {
		effectiveGap += 0.3
	}

	// Adjustment counter (gain scheduling).
	switch {
	case effectiveGap > 1.5:
		m.notReachedCount++
		if m.notReachedCount > 2 {
			bump := sysutil.ClampInt(sysutil.RoundHalfUp(abs(effectiveGap)*0.3), 1, 3)
			m.adjustmentCount = sysutil.ClampInt(m.adjustmentCount+bump, 0, 10)
			m.notReachedCount = 0
			m.failedAllocs = 0
		}
	case effectiveGap < -2.0:
		m.notReachedCount = 0
		m.failedAllocs = 0
	}
	if abs(effectiveGap) < 1.0 && m.rng.Intn(5) == 0 {
		m.adjustmentCount = sysutil.ClampInt(m.adjustmentCount-1, 0, 10)
	}
	if m.failedAllocs > 3 {
		m.adjustmentCount = sysutil.ClampInt(m.adjustmentCount-1, 0, 10)
		m.log().Warn("reducing adjustment gain after repeated allocation failures",
			"adjustment_count", m.adjustmentCount)
		m.failedAllocs = 0
	}

	// Adjustment factor.
	factor := 1 + 0.7*float64(m.adjustmentCount)
	switch {
	case abs(effectiveGap) > 8:
		factor *= 1.8
	case abs(effectiveGap) > 4:
		factor *= 1.5
	case abs(effectiveGap) > 1:
		factor *= 1.2
	}
	if effectiveGap > 0 && effectiveGap < 3 {
		factor += 0.3
	}
	if m.avgChangeRate > 2 {
		factor *= 0.7
	}

	// Hysteresis.
	neededPct := effectiveGap * factor
	band := 0.15
	if abs(effectiveGap) < 2 {
		band = 0.05
	}
	if abs(neededPct-m.prevNeededPct) < band {
		neededPct = m.prevNeededPct
	} else {
		m.prevNeededPct = neededPct
	}

	if neededPct < -0.5 {
		m.release(neededPct)
	} else if neededPct > 0 {
		m.grow(neededPct)
	}
}

// release shrinks the block pool by a percentage derived from how far
// neededPct is below zero, truncating from the tail.
func (m *MemoryRegulator) release(neededPct float64) {
	releasePct := sysutil.ClampInt(sysutil.RoundHalfUp(abs(neededPct)*5), 3, 50)
	if neededPct < -5 {
		releasePct += 10
	}
	n := len(m.blocks)
	if n == 0 {
		return
	}
	toFree := sysutil.RoundHalfUp(float64(n) * float64(releasePct) / 100)
	if toFree < 1 {
		toFree = 1
	}
	if toFree > n {
		toFree = n
	}
	m.blocks = m.blocks[:n-toFree]
}

// grow allocates enough new blocks to close most of the gap described by
// neededPct, capped at maxPerCycle blocks per tick.
func (m *MemoryRegulator) grow(neededPct float64) {
	needsMB := sysutil.RoundHalfUp(neededPct * float64(m.totalMemMB) / 100)
	if needsMB <= 0 {
		return
	}

	blockSizeMB := blockSizeForNeed(needsMB)
	newBlocksTarget := ceilDiv(needsMB, blockSizeMB)
	if newBlocksTarget < 1 {
		newBlocksTarget = 1
	}

	maxPerCycle := defaultMaxPerCycle
	switch {
	case m.avgChangeRate > 2:
		maxPerCycle /= 2
	case m.avgChangeRate < 0.5:
		maxPerCycle = int(float64(maxPerCycle) * 1.5)
	}
	if maxPerCycle < minMaxPerCycle {
		maxPerCycle = minMaxPerCycle
	}

	maxNew := maxPerCycle
	if newBlocksTarget < maxNew {
		maxNew = newBlocksTarget
	}

	for i := 0; i < maxNew; i++ {
		buf, ok := allocateTouched(blockSizeMB)
		if !ok {
			m.failedAllocs++
			m.log().Warn("block allocation failed, backing off",
				"block_size_mb", blockSizeMB, "failed_allocs", m.failedAllocs)
			return
		}
		m.blocks = append(m.blocks, block{data: buf, mb: units.MiB(blockSizeMB)})
	}
}

// blockSizeForNeed selects a block size from a fixed ladder, larger blocks
// for larger gaps, so growth neither allocates millions of tiny buffers nor
// a single giant one.
func blockSizeForNeed(needMB int) int {
	switch {
	case needMB > 4000:
		return 64
	case needMB > 1000:
		return 32
	case needMB > 200:
		return 16
	case needMB > 50:
		return 8
	case needMB > 10:
		return 4
	default:
		return 2
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// allocateTouched allocates sizeMB mebibytes and touches the first 256 KiB
// of every even-indexed MiB slice to force the pages resident. A panic
// from an out-of-memory allocator is recovered and reported as an
// allocation failure rather than crashing the process.
func allocateTouched(sizeMB int) (buf []byte, ok bool) {
	defer func() {
		if recover() != nil {
			buf, ok = nil, false
		}
	}()

	n := sizeMB << 20
	b := make([]byte, n)
	for mib := 0; mib < sizeMB; mib += 2 {
		start := mib << 20
		end := start + memTouchChunk
		if end > n {
			end = n
		}
		for i := start; i < end; i++ {
			b[i] = 0xAA
		}
	}
	return b, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
