package timing

import (
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"
)

// Deriver computes start/end/finalized/duration for cases of one schema.
type Deriver struct {
	Schema *phase.Schema
	// Now stands in for the end of open cases; defaults to time.Now.
	Now func() time.Time

	start []int
	end   []int
}

func NewDeriver(schema *phase.Schema, now func() time.Time) *Deriver {
	if now == nil {
		now = time.Now
	}
	d := &Deriver{Schema: schema, Now: now}
	d.start = indexes(schema, schema.Start)
	d.end = indexes(schema, schema.End)
	return d
}

func indexes(schema *phase.Schema, keys []string) []int {
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		out = append(out, schema.Index(k))
	}
	return out
}

// Derive fills c.Timing using a fresh "now".
func (d *Deriver) Derive(c *domain.Case) domain.Timing {
	c.Timing = d.derive(c, d.Now())
	return c.Timing
}

// DeriveAll derives every case against a single "now".
func (d *Deriver) DeriveAll(cases []domain.Case) {
	now := d.Now()
	for i := range cases {
		cases[i].Timing = d.derive(&cases[i], now)
	}
}

func (d *Deriver) derive(c *domain.Case, now time.Time) domain.Timing {
	var t domain.Timing

	// first filled candidate in declared order, not the earliest
	for _, i := range d.start {
		if at := c.At(i); at != nil {
			t.StartAt = at
			break
		}
	}
	for n, i := range d.end {
		if at := c.At(i); at != nil {
			t.EndReal = at
			t.TerminalPhase = d.Schema.End[n]
			break
		}
	}

	t.Finalized = t.StartAt != nil && t.EndReal != nil
	if t.EndReal != nil {
		t.EndAt = t.EndReal
	} else {
		n := now
		t.EndAt = &n
	}

	if t.StartAt != nil {
		if delta := t.EndAt.Sub(*t.StartAt); delta >= 0 {
			t.TotalDuration = &delta
		}
	}
	return t
}
