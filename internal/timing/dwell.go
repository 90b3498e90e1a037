package timing

import (
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"
)

// Calculator measures how long a case stayed in a phase: from the phase timestamp
// to the earliest strictly later timestamp among the reference phases.
type Calculator struct {
	schema *phase.Schema
}

func NewCalculator(schema *phase.Schema) *Calculator {
	return &Calculator{schema: schema}
}

// Dwell for one phase; the reference set is every schema phase except the excluded keys.
// nil when the phase is absent or no reference phase comes later.
func (c *Calculator) Dwell(cs *domain.Case, key string, excluded []string) *time.Duration {
	from := cs.At(c.schema.Index(key))
	if from == nil {
		return nil
	}

	skip := make(map[string]bool, len(excluded))
	for _, k := range excluded {
		skip[k] = true
	}

	var next *time.Time
	for i, p := range c.schema.Phases {
		if skip[p.Key] {
			continue
		}
		at := cs.At(i)
		if at == nil || !at.After(*from) {
			continue
		}
		if next == nil || at.Before(*next) {
			next = at
		}
	}
	if next == nil {
		return nil
	}
	d := next.Sub(*from)
	return &d
}

// FamilyDwell one optional duration per family phase, in family order.
// The whole family is left out of the reference set.
func (c *Calculator) FamilyDwell(cs *domain.Case, f phase.Family) []*time.Duration {
	out := make([]*time.Duration, len(f.Phases))
	for i, key := range f.Phases {
		out[i] = c.Dwell(cs, key, f.Phases)
	}
	return out
}

// FamilyTotal sum of the present family dwells, nil when none is present.
func (c *Calculator) FamilyTotal(cs *domain.Case, f phase.Family) *time.Duration {
	return Sum(c.FamilyDwell(cs, f))
}

// Sum of the present durations, nil when none is present.
func Sum(ds []*time.Duration) *time.Duration {
	var total time.Duration
	seen := false
	for _, d := range ds {
		if d == nil {
			continue
		}
		total += *d
		seen = true
	}
	if !seen {
		return nil
	}
	return &total
}
