package report

import (
	"time"

	"driftexport/pkg/drift"
)

var fuelLabels = []string{"Insurance", "Deposits", "Borrows", "Positions", "Taker", "Maker"}

// RenderUserFuel prints the FUEL breakdown of a single authority.
func RenderUserFuel(p *Printer, s drift.UserStats, slot uint64) {
	p.Title("FUEL for " + s.Authority)
	p.Linef("UserStats account: %s", s.Address)
	if slot > 0 {
		p.Linef("Slot: %d", slot)
	}
	p.Rule()

	fuel := s.Fuel()
	for i, v := range fuel.Values() {
		p.Linef("  %-10s %s", fuelLabels[i]+":", p.Uint(v))
	}
	p.Rule()
	p.Linef("  %-10s %s", "Total:", p.Uint(fuel.Total()))

	if s.LastFuelIfBonusUpdateTs > 0 {
		ts := time.Unix(int64(s.LastFuelIfBonusUpdateTs), 0).UTC()
		p.Linef("Last insurance bonus update: %s", ts.Format(time.RFC3339))
	}
	if s.FuelOverflowStatus != 0 {
		p.Note("fuel overflow account in use (status %d); totals above exclude overflow", s.FuelOverflowStatus)
	}
}

// FuelPoint is the FUEL total of an authority at one recorded time.
type FuelPoint struct {
	At    time.Time
	Taker int64
	Maker int64
	Total int64
}

// RenderFuelHistory prints recorded FUEL totals oldest first with the change since the previous row.
func RenderFuelHistory(p *Printer, authority string, points []FuelPoint) {
	p.Title("FUEL history for " + authority)
	if len(points) == 0 {
		p.Linef("No recorded states")
		return
	}
	p.Linef("%-19s  %14s  %12s  %12s  %12s", "Captured (UTC)", "Total", "Change", "Taker", "Maker")
	p.Rule()
	for i, pt := range points {
		change := "-"
		if i > 0 {
			change = p.signed(pt.Total - points[i-1].Total)
		}
		p.Linef("%-19s  %14s  %12s  %12s  %12s",
			pt.At.UTC().Format(time.DateTime),
			p.msg.Sprintf("%d", pt.Total),
			change,
			p.msg.Sprintf("%d", pt.Taker),
			p.msg.Sprintf("%d", pt.Maker),
		)
	}
	p.Rule()
	first, last := points[0], points[len(points)-1]
	p.Linef("%s recorded states, FUEL %s over %s",
		p.Count(len(points)),
		p.signed(last.Total-first.Total),
		last.At.Sub(first.At).Round(time.Second),
	)
}

// signed formats n with thousands separators and an explicit sign.
func (p *Printer) signed(n int64) string {
	if n < 0 {
		return p.msg.Sprintf("%d", n)
	}
	return "+" + p.msg.Sprintf("%d", n)
}
