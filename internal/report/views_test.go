package report

import (
	"errors"
	"testing"
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"
	"vacancy-report/internal/timing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func buildDataset(t *testing.T, rows ...map[string]time.Time) *Dataset {
	t.Helper()
	schema := phase.Default()
	cases := make([]domain.Case, 0, len(rows))
	for i, set := range rows {
		c := caseWith(schema, nil, set)
		c.PropertyCode = string(rune('A' + i))
		cases = append(cases, *c)
	}
	timing.NewDeriver(schema, func() time.Time { return now }).DeriveAll(cases)
	return NewDataset("test.xlsx", schema, cases)
}

// finalized in January, open since February, no data at all
func scenario(t *testing.T) *Dataset {
	return buildDataset(t,
		map[string]time.Time{"integracao": day(time.January, 1), "finalizado_adimplente": day(time.January, 10)},
		map[string]time.Time{"integracao": day(time.February, 1)},
		map[string]time.Time{},
	)
}

func TestCatalog_Order(t *testing.T) {
	views := Catalog()
	require.Len(t, views, 14)
	assert.Equal(t, ViewVolumeTotal, views[0].ID)
	assert.Equal(t, ViewInspectionRelease, views[13].ID)
	for _, v := range views {
		assert.NotEmpty(t, v.Title)
	}
}

func TestBuild_UnknownView(t *testing.T) {
	_, err := Build(scenario(t), "nope", Query{})
	assert.True(t, errors.Is(err, ErrUnknownView))
}

func TestBuild_EveryViewOnEmptyDataset(t *testing.T) {
	for _, v := range Catalog() {
		r, err := Build(nil, v.ID, Query{})
		require.NoError(t, err, v.ID)
		assert.Equal(t, v.ID, r.View)
		assert.NotNil(t, r.Summary)
		assert.Empty(t, r.Table.Rows, v.ID)
	}
}

func TestMonthlyMean_ScenarioSingleJanuaryBucket(t *testing.T) {
	r, err := Build(scenario(t), ViewMonthlyMean, Query{})
	require.NoError(t, err)

	require.NotNil(t, r.Monthly)
	require.Len(t, r.Monthly.Buckets, 1)
	assert.Equal(t, "2024-01", r.Monthly.Buckets[0].Month)
	assert.InDelta(t, 9.0, r.Monthly.Buckets[0].Mean, 1e-9)
	assert.Nil(t, r.Monthly.StdDev)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "A", r.Table.Rows[0][0])
}

func TestMonthlyMean_MonthDrillDown(t *testing.T) {
	ds := buildDataset(t,
		map[string]time.Time{"integracao": day(time.January, 1), "em_acordo": day(time.January, 10)},
		map[string]time.Time{"integracao": day(time.January, 5), "em_acordo": day(time.February, 10)},
	)
	r, err := Build(ds, ViewMonthlyMean, Query{Months: []string{"fev 2024"}})
	require.NoError(t, err)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "B", r.Table.Rows[0][0])

	r, err = Build(ds, ViewMonthlyMean, Query{Months: []string{"ALL"}})
	require.NoError(t, err)
	assert.Len(t, r.Table.Rows, 2)
}

func TestVolumeTotal_Filters(t *testing.T) {
	ds := scenario(t)

	r, err := Build(ds, ViewVolumeTotal, Query{})
	require.NoError(t, err)
	assert.Equal(t, FilterAll, r.Filter)
	assert.Equal(t, 3, r.Summary["total"])
	assert.Equal(t, 1, r.Summary["finalized"])
	assert.Equal(t, 2, r.Summary["open"])
	assert.Len(t, r.Table.Rows, 3)
	assert.Len(t, r.Series[0].Points, 2)

	r, err = Build(ds, ViewVolumeTotal, Query{Filter: FilterOpen})
	require.NoError(t, err)
	assert.Len(t, r.Table.Rows, 2)
	require.Len(t, r.Series[0].Points, 1)
	assert.Equal(t, FilterOpen, r.Series[0].Points[0].Key)

	r, err = Build(ds, ViewVolumeTotal, Query{Filter: "garbage"})
	require.NoError(t, err)
	assert.Equal(t, FilterAll, r.Filter)
}

func TestVolumeTotal_TableCells(t *testing.T) {
	r, err := Build(scenario(t), ViewVolumeTotal, Query{Filter: FilterFinalized})
	require.NoError(t, err)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, []string{"Código do imóvel", "Contato", ColStart, ColEnd, ColTotalText, ColFinalized}, r.Table.Columns)
	row := r.Table.Rows[0]
	assert.Equal(t, day(time.January, 1), row[2])
	assert.Equal(t, "09 dias 00 horas e 00 minutos", row[4])
	assert.Equal(t, true, row[5])
}

func TestOpenCases_Split(t *testing.T) {
	r, err := Build(scenario(t), ViewOpenCases, Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Summary["in_progress"])
	assert.Equal(t, 1, r.Summary["no_automation"])

	r, err = Build(scenario(t), ViewOpenCases, Query{Filter: FilterNoAutomation})
	require.NoError(t, err)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "C", r.Table.Rows[0][0])
}

func TestRepairs(t *testing.T) {
	ds := buildDataset(t,
		map[string]time.Time{"integracao": day(time.January, 1), "inquilino_ira_executar": day(time.January, 3), "em_acordo": day(time.January, 10)},
		map[string]time.Time{"integracao": day(time.January, 2), "em_acordo": day(time.January, 12)},
		map[string]time.Time{"integracao": day(time.March, 2), "roque_servicos": day(time.March, 4), "em_acordo": day(time.March, 12)},
	)

	r, err := Build(ds, ViewTenantRepairs, Query{})
	require.NoError(t, err)
	require.NotNil(t, r.Ratio)
	require.Len(t, r.Ratio.Buckets, 2)
	assert.Equal(t, 2, r.Ratio.Buckets[0].Total)
	assert.Equal(t, 1, r.Ratio.Buckets[0].Flagged)
	assert.InDelta(t, 50.0, r.Ratio.Buckets[0].Percent, 1e-9)
	assert.Equal(t, 1, r.Summary["flagged"])
	assert.Contains(t, r.Table.Columns, "[Desocupação] Etapa - Inquilino Irá Executar")

	r, err = Build(ds, ViewTenantRepairs, Query{Series: SeriesFlagged})
	require.NoError(t, err)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "A", r.Table.Rows[0][0])

	r, err = Build(ds, ViewAgencyRepairs, Query{Months: []string{"2024-03"}})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Ratio.Total)
	assert.Equal(t, 1, r.Ratio.Flagged)
}

func TestInspection_PhaseDwell(t *testing.T) {
	ds := buildDataset(t,
		map[string]time.Time{
			"integracao":        day(time.January, 1),
			"vistoria_agendada": day(time.January, 2),
			"revistoria":        day(time.January, 3),
			"orcamento":         day(time.January, 5),
			"em_acordo":         day(time.January, 9),
		},
		// open cases are left out
		map[string]time.Time{"vistoria_agendada": day(time.January, 2), "orcamento": day(time.January, 20)},
	)

	r, err := Build(ds, ViewInspection, Query{})
	require.NoError(t, err)
	require.Len(t, r.Series, 2)
	totals := r.Series[0].Points
	require.Len(t, totals, 4)
	assert.Equal(t, "vistoria_agendada", totals[0].Key)
	assert.InDelta(t, 3.0, totals[0].Value, 1e-9)
	assert.Equal(t, "3d 0h 0m", totals[0].Text)
	assert.InDelta(t, 2.0, totals[3].Value, 1e-9)
	assert.Zero(t, totals[1].Value)
	assert.InDelta(t, 5.0, r.Summary["total_days"].(float64), 1e-9)
	assert.Len(t, r.Table.Columns, 6)

	r, err = Build(ds, ViewInspection, Query{Phase: "Revistoria"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Código do imóvel", "Contato", "[Desocupação] Etapa - Revistoria"}, r.Table.Columns)
}

func TestBudgetingMonthly(t *testing.T) {
	ds := buildDataset(t,
		map[string]time.Time{"integracao": day(time.January, 1), "orcamento": day(time.January, 2), "fechamento": day(time.January, 6), "em_acordo": day(time.January, 8)},
		map[string]time.Time{"integracao": day(time.January, 1), "orcamento": day(time.January, 2), "orcamento_aprovado": day(time.January, 4), "em_acordo": day(time.January, 10)},
		map[string]time.Time{"integracao": day(time.February, 1), "em_acordo": day(time.February, 8)},
	)

	r, err := Build(ds, ViewBudgetingMonthly, Query{})
	require.NoError(t, err)
	require.NotNil(t, r.Monthly)
	// the case without budgeting phases contributes no sample
	require.Len(t, r.Monthly.Buckets, 1)
	assert.Equal(t, 2, r.Monthly.Buckets[0].Count)
	// case A: 4 days; case B: 8 days in orcamento (next non-budget is em_acordo) + 6 days in aprovado
	assert.InDelta(t, 9.0, r.Monthly.Buckets[0].Mean, 1e-9)
	assert.Len(t, r.Table.Rows, 3)
}

func TestNoPendingViews(t *testing.T) {
	ds := buildDataset(t,
		map[string]time.Time{"integracao": day(time.January, 1), "chaves_entregues": day(time.January, 2), "imovel_sem_pendencias": day(time.January, 3)},
		map[string]time.Time{"orcamento": day(time.January, 5), "revistoria": day(time.January, 4), "imovel_sem_pendencias": day(time.January, 6)},
		map[string]time.Time{"roque_servicos": day(time.January, 5), "imovel_sem_pendencias": day(time.January, 6)},
		map[string]time.Time{"integracao": day(time.January, 1)},
	)

	r, err := Build(ds, ViewNoPending, Query{Filter: FilterMissedPending})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Summary["with"])
	assert.Equal(t, 1, r.Summary["without"])
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "D", r.Table.Rows[0][0])

	r, err = Build(ds, ViewNoPendingPath, Query{})
	require.NoError(t, err)
	require.NotNil(t, r.Classification)
	counts := map[string]int{}
	for _, c := range r.Classification.Milestones {
		counts[c.Key] = c.Count
	}
	assert.Equal(t, 1, counts["roque_servicos"])
	assert.Equal(t, 1, counts["revistoria"])
	assert.Equal(t, 1, counts["chaves_entregues"])
	assert.Equal(t, 0, counts["orcamento"])
	assert.Len(t, r.Series[0].Points, len(r.Classification.Milestones))

	r, err = Build(ds, ViewNoPendingPath, Query{Groups: []string{"Revistoria"}})
	require.NoError(t, err)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "B", r.Table.Rows[0][0])

	r, err = Build(ds, ViewInspectionRelease, Query{})
	require.NoError(t, err)
	require.Len(t, r.Classification.Groups, 3)
	assert.Equal(t, 1, r.Classification.Groups[0].Count)
	assert.Equal(t, 0, r.Classification.Groups[1].Count)
	assert.Equal(t, 2, r.Classification.Groups[2].Count)

	r, err = Build(ds, ViewInspectionRelease, Query{Groups: []string{"before_inspection"}})
	require.NoError(t, err)
	require.Len(t, r.Table.Rows, 1)
	assert.Equal(t, "A", r.Table.Rows[0][0])
}

func TestProcessedTable(t *testing.T) {
	ds := scenario(t)
	table := ds.ProcessedTable()
	require.Len(t, table.Rows, 3)
	assert.Len(t, table.Columns, 3+26+6)
	last := len(table.Columns) - 1
	assert.Equal(t, ColTerminal, table.Columns[last])
	assert.Equal(t, "[Desocupação] Etapa - Finalizado Adimplente", table.Rows[0][last])
	assert.Equal(t, "", table.Rows[2][last])
	// no start: duration absent
	assert.Nil(t, table.Rows[2][last-2])
}
