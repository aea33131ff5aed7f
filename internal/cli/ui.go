package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pinaccess/pkg/access/incr"
	"github.com/matzehuels/pinaccess/pkg/access/unique"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/pipeline"
)

// stdout receives all user-facing output. Tests replace it.
var stdout io.Writer = os.Stdout

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary values
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorGray).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented dim line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
	fmt.Fprintln(stdout, keyStyle.Render(key)+" "+StyleValue.Render(value))
}

func num(n int) string { return StyleNumber.Render(strconv.Itoa(n)) }

// =============================================================================
// Summaries
// =============================================================================

// printRunSummary prints the statistics of a planning run.
func printRunSummary(res *pipeline.Result) {
	s := res.Stats
	fmt.Fprintln(stdout, StyleTitle.Render("Pin access"))
	printKeyValue("run", res.RunID)
	printKeyValue("instances", fmt.Sprintf("%s in %s classes (%d skipped)", num(s.Instances), num(s.Classes), s.Skipped))
	printKeyValue("access points", fmt.Sprintf("%s for %s pins", num(s.Gen.Points), num(s.Gen.Pins)))
	printKeyValue("patterns", fmt.Sprintf("%s (%d instances without one)", num(s.Inst.Patterns), s.Inst.SoftFailures))
	printKeyValue("rows", fmt.Sprintf("%s, %d dirty edges", num(s.Rows), s.Row.DirtyEdges))
	printKeyValue("io terminals", num(s.IOTerms))
	printKeyValue("cache", res.CacheInfo.String())
	printKeyValue("time", (s.ClassifyTime + s.PlanTime + s.IOTime + s.RowTime + s.ExportTime).Round(time.Millisecond).String())
	if s.Fallback > 0 {
		printWarning("%d instances used best-effort access", s.Fallback)
	}
	if n := len(res.FailedBatches); n > 0 {
		printWarning("%d batches failed to export", n)
		for _, id := range res.FailedBatches {
			printDetail("%s", id)
		}
	}
}

// printReport prints the outcome of an incremental update.
func printReport(rep incr.Report) {
	fmt.Fprintln(stdout, StyleTitle.Render("Incremental update"))
	printKeyValue("dirty", num(rep.Dirty))
	if rep.Rewired > 0 {
		printKeyValue("rewired", num(rep.Rewired))
	}
	printKeyValue("reclassified", num(rep.Reclassified))
	printKeyValue("classes", fmt.Sprintf("%s new, %s destroyed, %s promoted", num(rep.NewClasses), num(rep.Destroyed), num(rep.Promoted)))
	printKeyValue("replanned", num(rep.Replanned))
	printKeyValue("rows", fmt.Sprintf("%s with %s instances", num(rep.Rows), num(rep.RowInsts)))
	if rep.Fallback > 0 {
		printWarning("%d instances used best-effort access", rep.Fallback)
	}
}

// printClasses prints one table row per unique class.
func printClasses(d *db.Design, classes []*unique.Class) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleDim).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		}).
		Headers("ID", "MASTER", "ORIENT", "REP", "MEMBERS", "PINS", "PATTERNS")
	for _, cls := range classes {
		master := strconv.Itoa(int(cls.Master))
		if int(cls.Master) < len(d.Masters) {
			master = d.Masters[cls.Master].Name
		}
		t.Row(
			strconv.Itoa(cls.ID),
			master,
			cls.Key.Orient.String(),
			d.Instances[cls.Rep].Name,
			strconv.Itoa(len(cls.Members)),
			strconv.Itoa(len(cls.Order)),
			strconv.Itoa(len(cls.Patterns)),
		)
	}
	fmt.Fprintln(stdout, t.Render())
}
