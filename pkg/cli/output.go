package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/devicelab-dev/onboard-runner/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds
const slowThresholdMs = 5000

// colorsEnabled reports whether stdout should get ANSI colors.
func colorsEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return fileInfo.Mode()&os.ModeCharDevice != 0
	}
	return false
}

// progress prints live step output. Warnings arrive before their step
// completes, so they are held until the step line is printed.
type progress struct {
	w        io.Writer
	colors   bool
	warnings map[int]string
}

func newProgress(w io.Writer, colors bool) *progress {
	return &progress{w: w, colors: colors, warnings: make(map[int]string)}
}

func (p *progress) color(c string) string {
	if p.colors {
		return c
	}
	return ""
}

func (p *progress) onScenarioStart(name string, totalSteps int) {
	fmt.Fprintf(p.w, "\n  %s%s%s (%d steps)\n", p.color(colorBold), name, p.color(colorReset), totalSteps)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *progress) onWarning(idx int, desc, message string) {
	p.warnings[idx] = message
}

func (p *progress) onStepComplete(idx int, desc string, status core.StepStatus, durationMs int64, errMsg string) {
	durStr := formatDuration(durationMs)

	switch status {
	case core.StatusPassed:
		durColor := ""
		if durationMs >= slowThresholdMs {
			durColor = p.color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s✓%s %s %s(%s)%s\n",
			p.color(colorGreen), p.color(colorReset), desc, durColor, durStr, p.color(colorReset))
	case core.StatusWarned:
		fmt.Fprintf(p.w, "    %s⚠%s %s (%s)\n", p.color(colorYellow), p.color(colorReset), desc, durStr)
		if msg, ok := p.warnings[idx]; ok {
			fmt.Fprintf(p.w, "      %s╰─ warning:%s %s\n", p.color(colorGray), p.color(colorReset), msg)
			delete(p.warnings, idx)
		}
	default:
		fmt.Fprintf(p.w, "    %s✗%s %s (%s)\n", p.color(colorRed), p.color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s\n", p.color(colorGray), p.color(colorReset), errMsg)
		}
	}
}

func (p *progress) printSummary(result *core.ScenarioResult, reportPath string) {
	counts := result.Counts()

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, strings.Repeat("═", 60))
	if result.Passed() {
		fmt.Fprintf(p.w, "  %s✓ COMPLETED%s %s %s%s%s\n", p.color(colorGreen), p.color(colorReset),
			result.Name, p.color(colorGray), formatDuration(result.Duration.Milliseconds()), p.color(colorReset))
	} else {
		fmt.Fprintf(p.w, "  %s✗ ABORTED%s %s %s%s%s\n", p.color(colorRed), p.color(colorReset),
			result.Name, p.color(colorGray), formatDuration(result.Duration.Milliseconds()), p.color(colorReset))
	}
	fmt.Fprintf(p.w, "  %d passed, %d warned, %d failed, %d skipped\n",
		counts[core.StatusPassed], counts[core.StatusWarned], counts[core.StatusFailed], counts[core.StatusSkipped])
	if reportPath != "" {
		fmt.Fprintf(p.w, "  report: %s\n", reportPath)
	}
	fmt.Fprintln(p.w, strings.Repeat("═", 60))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
