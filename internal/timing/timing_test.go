package timing

import (
	"testing"
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ts(day, hour int) *time.Time {
	t := time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func newCase(schema *phase.Schema, set map[string]*time.Time) domain.Case {
	c := domain.Case{PropertyCode: "P1", Phases: make([]*time.Time, len(schema.Phases))}
	for k, v := range set {
		c.Phases[schema.Index(k)] = v
	}
	return c
}

func TestDerive_Finalized(t *testing.T) {
	schema := phase.Default()
	d := NewDeriver(schema, func() time.Time { return fixedNow })

	tests := []struct {
		name      string
		set       map[string]*time.Time
		finalized bool
		terminal  string
	}{
		{"start and end", map[string]*time.Time{"integracao": ts(1, 0), "em_acordo": ts(5, 0)}, true, "em_acordo"},
		{"start only", map[string]*time.Time{"chaves_entregues": ts(1, 0)}, false, ""},
		{"end only", map[string]*time.Time{"desistiu_desocupacao": ts(5, 0)}, false, "desistiu_desocupacao"},
		{"nothing", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCase(schema, tt.set)
			got := d.Derive(&c)
			assert.Equal(t, tt.finalized, got.Finalized)
			assert.Equal(t, tt.terminal, got.TerminalPhase)
			assert.Equal(t, got, c.Timing)
			require.NotNil(t, got.EndAt)
		})
	}
}

func TestDerive_StartIsFirstFilledNotEarliest(t *testing.T) {
	schema := phase.Default()
	d := NewDeriver(schema, func() time.Time { return fixedNow })

	c := newCase(schema, map[string]*time.Time{
		"aviso_desocupacao": ts(10, 0),
		"chaves_entregues":  ts(2, 0),
		"em_acordo":         ts(20, 0),
	})
	got := d.Derive(&c)
	require.NotNil(t, got.StartAt)
	assert.Equal(t, *ts(10, 0), *got.StartAt)
	require.NotNil(t, got.TotalDuration)
	assert.Equal(t, 10*24*time.Hour, *got.TotalDuration)
}

func TestDerive_TerminalPriorityBeatsChronology(t *testing.T) {
	schema := phase.Default()
	d := NewDeriver(schema, func() time.Time { return fixedNow })

	c := newCase(schema, map[string]*time.Time{
		"integracao":              ts(1, 0),
		"finalizado_inadimplente": ts(20, 0),
		"em_acordo":               ts(10, 0),
	})
	got := d.Derive(&c)
	assert.Equal(t, "finalizado_inadimplente", got.TerminalPhase)
	assert.Equal(t, *ts(20, 0), *got.EndReal)
}

func TestDerive_NegativeDurationIsAbsent(t *testing.T) {
	schema := phase.Default()
	d := NewDeriver(schema, func() time.Time { return fixedNow })

	c := newCase(schema, map[string]*time.Time{
		"integracao":            ts(10, 0),
		"finalizado_adimplente": ts(5, 0),
	})
	got := d.Derive(&c)
	assert.True(t, got.Finalized)
	assert.Nil(t, got.TotalDuration)
}

func TestDerive_OpenCaseRunsToNow(t *testing.T) {
	schema := phase.Default()
	d := NewDeriver(schema, func() time.Time { return fixedNow })

	c := newCase(schema, map[string]*time.Time{"integracao": ts(1, 0)})
	got := d.Derive(&c)
	assert.False(t, got.Finalized)
	assert.Nil(t, got.EndReal)
	assert.Equal(t, fixedNow, *got.EndAt)
	assert.Equal(t, fixedNow.Sub(*ts(1, 0)), *got.TotalDuration)
}

func TestDeriveAll_SharesNow(t *testing.T) {
	schema := phase.Default()
	calls := 0
	d := NewDeriver(schema, func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Hour)
	})

	cases := []domain.Case{
		newCase(schema, map[string]*time.Time{"integracao": ts(1, 0)}),
		newCase(schema, map[string]*time.Time{"integracao": ts(2, 0)}),
	}
	d.DeriveAll(cases)
	assert.Equal(t, 1, calls)
	assert.Equal(t, *cases[0].Timing.EndAt, *cases[1].Timing.EndAt)
}

func TestDerive_NonNegativeDurations(t *testing.T) {
	schema := phase.Default()
	d := NewDeriver(schema, func() time.Time { return fixedNow })

	for day := 1; day <= 28; day++ {
		for end := 1; end <= 28; end += 3 {
			c := newCase(schema, map[string]*time.Time{"integracao": ts(day, 0), "em_acordo": ts(end, 0)})
			got := d.Derive(&c)
			if got.TotalDuration != nil {
				assert.GreaterOrEqual(t, *got.TotalDuration, time.Duration(0))
			}
			assert.Equal(t, got.StartAt != nil && got.EndReal != nil, got.Finalized)
		}
	}
}

func TestDwell(t *testing.T) {
	schema := phase.Default()
	calc := NewCalculator(schema)
	insp, _ := schema.Family(phase.FamilyInspection)

	c := newCase(schema, map[string]*time.Time{
		"integracao":        ts(1, 0),
		"vistoria_agendada": ts(3, 0),
		"revistoria":        ts(4, 0),  // same family, ignored as reference
		"orcamento":         ts(6, 0),  // earliest later reference
		"fechamento":        ts(9, 0),
		"vistoria_parcial":  ts(12, 0), // nothing after it
	})

	got := calc.Dwell(&c, "vistoria_agendada", insp.Phases)
	require.NotNil(t, got)
	assert.Equal(t, 3*24*time.Hour, *got)

	assert.Nil(t, calc.Dwell(&c, "vistoria_parcial", insp.Phases))
	assert.Nil(t, calc.Dwell(&c, "vistoria_sem_agendamento", insp.Phases))

	// without exclusions the same-family phase is the next one
	got = calc.Dwell(&c, "vistoria_agendada", nil)
	require.NotNil(t, got)
	assert.Equal(t, 24*time.Hour, *got)
}

func TestDwell_EqualTimestampIsNotLater(t *testing.T) {
	schema := phase.Default()
	calc := NewCalculator(schema)

	c := newCase(schema, map[string]*time.Time{
		"orcamento":  ts(5, 0),
		"fechamento": ts(5, 0),
		"em_acordo":  ts(7, 0),
	})
	got := calc.Dwell(&c, "orcamento", []string{"orcamento"})
	require.NotNil(t, got)
	assert.Equal(t, 48*time.Hour, *got)
}

func TestFamilyTotal(t *testing.T) {
	schema := phase.Default()
	calc := NewCalculator(schema)
	budget, _ := schema.Family(phase.FamilyBudgeting)

	c := newCase(schema, map[string]*time.Time{
		"orcamento":          ts(2, 0),
		"orcamento_aprovado": ts(3, 0),
		"fechamento":         ts(5, 12),
	})
	dwells := calc.FamilyDwell(&c, budget)
	require.Len(t, dwells, 2)
	assert.Equal(t, 84*time.Hour, *dwells[0])
	assert.Equal(t, 60*time.Hour, *dwells[1])

	total := calc.FamilyTotal(&c, budget)
	require.NotNil(t, total)
	assert.Equal(t, 144*time.Hour, *total)

	empty := newCase(schema, nil)
	assert.Nil(t, calc.FamilyTotal(&empty, budget))
}
