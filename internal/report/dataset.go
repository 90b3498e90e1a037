package report

import (
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"
	"vacancy-report/internal/timing"

	"github.com/samber/lo"
)

// Derived columns of the processed workbook
const (
	ColStart     = "Data_inicio_desocupacao"
	ColEnd       = "Data_fim_desocupacao"
	ColTotalText = "Tempo_total_desocupacao"
	ColTotalDays = "Tempo_total_dias"
	ColFinalized = "Finalizado"
	ColTerminal  = "Etapa_final_utilizada"
)

// Dataset derived cases of one upload; read-only once built.
type Dataset struct {
	Name   string
	Schema *phase.Schema
	Cases  []domain.Case

	calc *timing.Calculator
	cls  *Classifier
}

// NewDataset wraps cases whose Timing has already been derived.
func NewDataset(name string, schema *phase.Schema, cases []domain.Case) *Dataset {
	return &Dataset{
		Name:   name,
		Schema: schema,
		Cases:  cases,
		calc:   timing.NewCalculator(schema),
		cls:    NewClassifier(schema),
	}
}

func (ds *Dataset) all() []*domain.Case {
	out := make([]*domain.Case, len(ds.Cases))
	for i := range ds.Cases {
		out[i] = &ds.Cases[i]
	}
	return out
}

func (ds *Dataset) finalized() []*domain.Case {
	return lo.Filter(ds.all(), func(c *domain.Case, _ int) bool { return c.Timing.Finalized })
}

// has reports whether the case carries a timestamp for a phase key.
func (ds *Dataset) has(c *domain.Case, key string) bool {
	if key == phase.CreatedKey {
		return c.CreatedAt != nil
	}
	return c.At(ds.Schema.Index(key)) != nil
}

// Cell value of a named column for one case: identity, phase or derived.
// Absent timestamps come back as nil.
func (ds *Dataset) Cell(c *domain.Case, col string) any {
	s := ds.Schema
	switch col {
	case s.Identity.Property:
		return c.PropertyCode
	case s.Identity.Contact:
		return c.Contact
	case s.Identity.Created:
		return timeCell(c.CreatedAt)
	case ColStart:
		return timeCell(c.Timing.StartAt)
	case ColEnd:
		return timeCell(c.Timing.EndAt)
	case ColTotalText:
		return FormatDuration(c.Timing.TotalDuration)
	case ColTotalDays:
		if c.Timing.TotalDuration == nil {
			return nil
		}
		return Days(*c.Timing.TotalDuration)
	case ColFinalized:
		return c.Timing.Finalized
	case ColTerminal:
		if c.Timing.TerminalPhase == "" {
			return ""
		}
		return s.Column(c.Timing.TerminalPhase)
	}
	if key, ok := s.ResolveKey(col); ok {
		return timeCell(c.At(s.Index(key)))
	}
	return nil
}

func timeCell(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Table tabular slice of the dataset
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (ds *Dataset) table(cols []string, cases []*domain.Case) Table {
	t := Table{Columns: cols, Rows: make([][]any, 0, len(cases))}
	for _, c := range cases {
		row := make([]any, len(cols))
		for i, col := range cols {
			row[i] = ds.Cell(c, col)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ProcessedTable identity columns, every phase column and the derived columns.
func (ds *Dataset) ProcessedTable() Table {
	s := ds.Schema
	cols := []string{s.Identity.Property, s.Identity.Contact, s.Identity.Created}
	cols = append(cols, s.PhaseColumns()...)
	cols = append(cols, ColStart, ColEnd, ColTotalText, ColTotalDays, ColFinalized, ColTerminal)
	return ds.table(cols, ds.all())
}
