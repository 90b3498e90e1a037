package ingest

import (
	"strings"
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"
)

// Cases maps table rows onto case records.
// Phase columns missing from the sheet read as absent for every case; unknown columns are ignored.
func (n *Normalizer) Cases(t *Table, schema *phase.Schema) []domain.Case {
	if t == nil {
		return nil
	}
	propIdx := t.Column(schema.Identity.Property)
	contactIdx := t.Column(schema.Identity.Contact)
	createdIdx := t.Column(schema.Identity.Created)

	phaseIdx := make([]int, len(schema.Phases))
	for i, p := range schema.Phases {
		phaseIdx[i] = t.Column(p.Column)
	}

	cases := make([]domain.Case, 0, len(t.Rows))
	for r := range t.Rows {
		c := domain.Case{
			PropertyCode: strings.TrimSpace(t.Cell(r, propIdx)),
			Contact:      strings.TrimSpace(t.Cell(r, contactIdx)),
			CreatedAt:    n.ParseTimestamp(t.Cell(r, createdIdx)),
			Phases:       make([]*time.Time, len(schema.Phases)),
		}
		for i, col := range phaseIdx {
			if col < 0 {
				continue
			}
			c.Phases[i] = n.ParseTimestamp(t.Cell(r, col))
		}
		cases = append(cases, c)
	}
	return cases
}

// MissingColumns lists schema columns the sheet does not carry.
func MissingColumns(t *Table, schema *phase.Schema) []string {
	var missing []string
	for _, col := range append([]string{schema.Identity.Property, schema.Identity.Contact, schema.Identity.Created}, schema.PhaseColumns()...) {
		if t.Column(col) < 0 {
			missing = append(missing, col)
		}
	}
	return missing
}
