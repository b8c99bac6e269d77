// Package report renders console reports and CSV analyses of Drift datasets.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var million = decimal.NewFromInt(1_000_000)

// Printer writes human-readable report lines.
type Printer struct {
	w       io.Writer
	msg     *message.Printer
	styled  bool
	heading lipgloss.Style
	muted   lipgloss.Style
}

// NewPrinter returns a Printer writing to w. Headings are colored only when styled is true.
func NewPrinter(w io.Writer, styled bool) *Printer {
	return &Printer{
		w:       w,
		msg:     message.NewPrinter(language.English),
		styled:  styled,
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:   lipgloss.NewStyle().Faint(true),
	}
}

// Title prints a top-level "=== title ===" banner.
func (p *Printer) Title(title string) {
	line := "=== " + title + " ==="
	if p.styled {
		line = p.heading.Render(line)
	}
	fmt.Fprintln(p.w, "\n"+line)
}

// Section prints a "-- name --" sub heading.
func (p *Printer) Section(name string) {
	line := "-- " + name + " --"
	if p.styled {
		line = p.heading.Render(line)
	}
	fmt.Fprintln(p.w, "\n"+line)
}

// Note prints a de-emphasised line.
func (p *Printer) Note(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if p.styled {
		line = p.muted.Render(line)
	}
	fmt.Fprintln(p.w, line)
}

func (p *Printer) Linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Rule() {
	fmt.Fprintln(p.w, strings.Repeat("-", 43))
}

// Count formats an integer with thousands separators.
func (p *Printer) Count(n int) string {
	return p.msg.Sprintf("%d", n)
}

// Uint formats an unsigned integer with thousands separators.
func (p *Printer) Uint(v uint64) string {
	return p.msg.Sprintf("%d", v)
}

// Number formats d with the given decimals; values of a million or more get an M suffix.
func (p *Printer) Number(d decimal.Decimal, decimals int) string {
	verb := fmt.Sprintf("%%.%df", decimals)
	if d.Abs().GreaterThanOrEqual(million) {
		return p.msg.Sprintf(verb+"M", d.Div(million).InexactFloat64())
	}
	return p.msg.Sprintf(verb, d.InexactFloat64())
}
