// Package display renders the status the control engine produces each
// tick: two progress bars sized to the terminal width, banded coloring,
// and an optional verbose diagnostics line. This package uses only
// pkg/control's Status, PIDGains and StatusRenderer types; pkg/control
// never imports this package.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"golang.org/x/term"

	"github.com/ja7ad/loadgen/pkg/control"
	"github.com/ja7ad/loadgen/pkg/units"
)

// defaultBarWidth is used whenever out isn't a terminal (piped output, a
// test buffer). A terminal whose size can't be read is sized from
// TerminalWidth's 80-column fallback instead.
const defaultBarWidth = 30

const (
	minBarWidth = 10
	maxBarWidth = 60
)

// clearScreen clears the screen, then homes the cursor.
const clearScreen = "\033[2J\033[H"

// Renderer prints a Status snapshot to a terminal on every supervisor tick.
// It satisfies control.StatusRenderer.
type Renderer struct {
	out         io.Writer
	verbose     bool
	gains       control.PIDGains
	filterAlpha float64
	barWidth    int
}

// New constructs a Renderer writing to out. When out is *os.File it is
// wrapped with go-colorable so ANSI color codes still render correctly on
// native Windows consoles; any other writer (a test buffer, a pipe) is
// used as-is. When out is a live terminal, bar width is derived from the
// terminal's current column count instead of the fixed default.
func New(out io.Writer, verbose bool, gains control.PIDGains, filterAlpha float64) *Renderer {
	w := out
	width := defaultBarWidth
	if f, ok := out.(*os.File); ok {
		w = colorable.NewColorable(f)
		if fd := int(f.Fd()); term.IsTerminal(fd) {
			width = barWidthForTerminal(fd)
		}
	}
	return &Renderer{out: w, verbose: verbose, gains: gains, filterAlpha: filterAlpha, barWidth: width}
}

// Render implements control.StatusRenderer.
func (r *Renderer) Render(s control.Status) {
	fmt.Fprint(r.out, clearScreen)

	cpuOther := nonNeg(s.HostCPUPct - s.SelfCPUPct)
	fmt.Fprintf(r.out, "CPU  [%s] target %.0f%%  other %.1f%%  self %.1f%%\n",
		bar(s.HostCPUPct, r.barWidth), s.TargetCPUPct, cpuOther, s.SelfCPUPct)

	var memOther float64
	if s.TotalMemMB > 0 {
		selfMemPct := float64(s.SelfRSSMB) / float64(s.TotalMemMB) * 100
		memOther = nonNeg(s.HostMemPct - selfMemPct)
	}
	fmt.Fprintf(r.out, "MEM  [%s] target %.0f%%  other %.1f%%  self %s\n",
		bar(s.HostMemPct, r.barWidth), s.TargetMemPct, memOther, units.MiB(s.SelfRSSMB).Humanized())

	if r.verbose {
		fmt.Fprintf(r.out, "\nbusy_pct=%d filtered_cpu=%.2f filtered_mem=%.2f cores=%d\n",
			s.BusyPct, s.FilteredCPU, s.FilteredMem, s.LogicalCores)
		fmt.Fprintf(r.out, "pid gains: Kp=%.2f Ki=%.2f Kd=%.2f alpha=%.2f allocated=%s/%s\n",
			r.gains.Kp, r.gains.Ki, r.gains.Kd, r.filterAlpha,
			units.MiB(s.AllocatedMB).Humanized(), units.MiB(s.TotalMemMB).Humanized())
	}
}

func nonNeg(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// bar renders a width-cell progress bar colored by band: <30 green, <70
// yellow, else red.
func bar(pct float64, width int) string {
	if width <= 0 {
		width = defaultBarWidth
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	cells := strings.Repeat("#", filled) + strings.Repeat(" ", width-filled)

	var c *color.Color
	switch {
	case pct < 30:
		c = color.New(color.FgGreen)
	case pct < 70:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	return c.Sprintf("%s", cells) + fmt.Sprintf(" %5.1f%%", pct)
}

// TerminalWidth returns the current terminal width, falling back to 80
// columns when it cannot be determined (piped output, non-tty).
func TerminalWidth(fd int) int {
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// barWidthForTerminal derives a bar width from the terminal's column
// count: one third of the width, clamped to a sane range so very narrow
// or very wide terminals don't produce unusable bars.
func barWidthForTerminal(fd int) int {
	w := TerminalWidth(fd) / 3
	if w < minBarWidth {
		return minBarWidth
	}
	if w > maxBarWidth {
		return maxBarWidth
	}
	return w
}
