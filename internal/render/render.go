// Package render prints reports, summaries and progress for a terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/hostprobe/internal/collect"
	"github.com/HerbHall/hostprobe/internal/report"
	"github.com/HerbHall/hostprobe/internal/store"
	"github.com/olekukonko/tablewriter"
)

// ANSI color codes.
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorRed   = "\033[31m"
)

// Printer writes user-facing console output. Color is dropped when the
// destination is not a terminal.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter creates a printer for w.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + colorReset
}

// Banner prints the tool name and version.
func (p *Printer) Banner(version string) {
	fmt.Fprintf(p.w, "%s %s\n%s\n\n",
		p.paint(colorBold, "hostprobe"), version,
		p.paint(colorCyan, "Host forensics collector and subnet sweeper"))
}

// Info prints a plain status line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success prints a status line in green.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(colorGreen, fmt.Sprintf(format, args...)))
}

// Error prints a status line in bold red.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(colorBold+colorRed, fmt.Sprintf(format, args...)))
}

// ResultsTable prints one row per collected category with the first line
// of its output, followed by an Active Hosts row when any host answered.
func (p *Printer) ResultsTable(r *report.Report) {
	table := tablewriter.NewWriter(p.w)
	table.SetHeader([]string{"Category", "Details"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(ResultRows(r))
	table.Render()
}

// ResultRows returns the rows ResultsTable prints.
func ResultRows(r *report.Report) [][]string {
	var rows [][]string
	for _, m := range []collect.CollectionMap{r.SystemInfo, r.NetworkInfo} {
		for _, e := range m.Entries() {
			rows = append(rows, []string{e.Label, FirstLine(e.Output)})
		}
	}
	if len(r.ActiveHosts) > 0 {
		rows = append(rows, []string{"Active Hosts", strings.Join(r.ActiveHosts, ", ")})
	}
	return rows
}

// Summary prints the analysis counts. The host count appears only when a
// subnet was swept.
func (p *Printer) Summary(r *report.Report) {
	s := r.Summary()
	fmt.Fprintf(p.w, "\n%s\n", p.paint(colorBold+colorGreen, "Analysis Summary:"))
	fmt.Fprintf(p.w, "  * %d system information items collected\n", s.SystemInfoItems)
	fmt.Fprintf(p.w, "  * %d network information items collected\n", s.NetworkInfoItems)
	if s.SubnetScanned {
		fmt.Fprintf(p.w, "  * %d active hosts found\n", s.ActiveHosts)
	}
	if !r.Complete() {
		fmt.Fprintf(p.w, "  * %s\n", p.paint(colorRed, "report is partial"))
	}
}

// FirstLine returns the first line of s, or "N/A" for empty output.
func FirstLine(s string) string {
	if s == "" {
		return "N/A"
	}
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimRight(line, "\r")
}

// History prints archived runs, newest first.
func (p *Printer) History(runs []store.RunRecord) {
	if len(runs) == 0 {
		p.Info("No archived runs.")
		return
	}
	table := tablewriter.NewWriter(p.w)
	table.SetHeader([]string{"ID", "Started", "Status", "Subnet", "System", "Network", "Hosts", "Digest"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, r := range runs {
		digest := r.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		table.Append([]string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			string(r.Status),
			r.Subnet,
			strconv.Itoa(r.SystemInfoItems),
			strconv.Itoa(r.NetworkInfoItems),
			strconv.Itoa(r.ActiveHosts),
			digest,
		})
	}
	table.Render()
}
