package report

import (
	"testing"
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(m time.Month) time.Time {
	return time.Date(2024, m, 15, 0, 0, 0, 0, time.UTC)
}

func TestFormatDuration(t *testing.T) {
	d := func(v time.Duration) *time.Duration { return &v }

	assert.Equal(t, "01 dias 02 horas e 03 minutos", FormatDuration(d(93780*time.Second)))
	assert.Equal(t, "01 dias 00 horas e 00 minutos", FormatDuration(d(23*time.Hour+59*time.Minute+31*time.Second)))
	assert.Equal(t, "00 dias 00 horas e 00 minutos", FormatDuration(d(0)))
	assert.Equal(t, "00 dias 01 horas e 00 minutos", FormatDuration(d(59*time.Minute+45*time.Second)))
	// exact half minute rounds to even
	assert.Equal(t, "00 dias 00 horas e 02 minutos", FormatDuration(d(2*time.Minute+30*time.Second)))
	assert.Equal(t, "00 dias 00 horas e 04 minutos", FormatDuration(d(3*time.Minute+30*time.Second)))
	assert.Equal(t, "", FormatDuration(nil))
}

func TestFormatShort(t *testing.T) {
	assert.Equal(t, "1d 2h 3m", FormatShort(93780*time.Second))
	assert.Equal(t, "0d 23h 59m", FormatShort(23*time.Hour+59*time.Minute+59*time.Second))
	assert.Equal(t, "0d 0h 0m", FormatShort(0))
}

func TestDaysAndMonthLabels(t *testing.T) {
	assert.InDelta(t, 1.5, Days(36*time.Hour), 1e-9)
	assert.Equal(t, "2024-03", MonthKey(month(time.March)))
	assert.Equal(t, "mar 2024", MonthLabel("2024-03"))
	assert.Equal(t, "fev 2024", MonthLabel("2024-02"))
	assert.Equal(t, "dez 2023", MonthLabel("2023-12"))
	assert.Equal(t, "bogus", MonthLabel("bogus"))
}

func TestFitLine(t *testing.T) {
	slope, intercept := FitLine(nil)
	assert.Zero(t, slope)
	assert.Zero(t, intercept)

	slope, intercept = FitLine([]float64{7})
	assert.Zero(t, slope)
	assert.Equal(t, 7.0, intercept)

	slope, intercept = FitLine([]float64{1, 3, 5})
	assert.InDelta(t, 2.0, slope, 1e-9)
	assert.InDelta(t, 1.0, intercept, 1e-9)
}

func TestMonthlyMeanTrend_FiveMonths(t *testing.T) {
	var samples []Sample
	means := []float64{10, 20, 15, 30, 25}
	for i, v := range means {
		// two samples per month averaging to v
		samples = append(samples,
			Sample{At: month(time.Month(i + 1)), Days: v - 2},
			Sample{At: month(time.Month(i + 1)).Add(24 * time.Hour), Days: v + 2},
		)
	}

	m := MonthlyMeanTrend(samples)
	require.Len(t, m.Buckets, 5)
	for i, b := range m.Buckets {
		assert.InDelta(t, means[i], b.Mean, 1e-9)
		assert.Equal(t, 2, b.Count)
	}
	assert.Equal(t, "2024-01", m.Buckets[0].Month)
	assert.InDelta(t, 4.0, m.Slope, 1e-9)
	assert.InDelta(t, 12.0, m.Intercept, 1e-9)
	assert.InDelta(t, 12.0, m.Buckets[0].Trend, 1e-9)
	assert.InDelta(t, 28.0, m.Buckets[4].Trend, 1e-9)

	require.NotNil(t, m.Max)
	require.NotNil(t, m.Min)
	assert.Equal(t, "2024-04", m.Max.Month)
	assert.Equal(t, "2024-01", m.Min.Month)

	require.NotNil(t, m.Mean)
	require.NotNil(t, m.StdDev)
	assert.InDelta(t, 20.0, *m.Mean, 1e-9)
	assert.InDelta(t, 7.905694, *m.StdDev, 1e-6)
}

func TestMonthlyMeanTrend_Sparse(t *testing.T) {
	m := MonthlyMeanTrend(nil)
	assert.Empty(t, m.Buckets)
	assert.Nil(t, m.Mean)
	assert.Nil(t, m.StdDev)
	assert.Nil(t, m.Max)

	m = MonthlyMeanTrend([]Sample{{At: month(time.May), Days: 4}})
	require.Len(t, m.Buckets, 1)
	assert.Zero(t, m.Slope)
	assert.Equal(t, 4.0, m.Intercept)
	assert.Equal(t, 4.0, m.Buckets[0].Trend)
	assert.Nil(t, m.StdDev)
}

func TestMonthlyMeanTrend_ChronologicalAcrossYears(t *testing.T) {
	m := MonthlyMeanTrend([]Sample{
		{At: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Days: 1},
		{At: time.Date(2023, 12, 3, 0, 0, 0, 0, time.UTC), Days: 2},
	})
	require.Len(t, m.Buckets, 2)
	assert.Equal(t, "2023-12", m.Buckets[0].Month)
	assert.Equal(t, "2024-01", m.Buckets[1].Month)
}

func caseWith(schema *phase.Schema, created *time.Time, set map[string]time.Time) *domain.Case {
	c := &domain.Case{CreatedAt: created, Phases: make([]*time.Time, len(schema.Phases))}
	for k, v := range set {
		v := v
		c.Phases[schema.Index(k)] = &v
	}
	return c
}

func TestClassify_MostAdvancedMilestone(t *testing.T) {
	schema := phase.Default()
	cl := NewClassifier(schema)
	list, _ := schema.MilestoneList(phase.MilestonesNoPendingPath)
	when := month(time.February)

	// the 3rd listed milestone outranks the 5th regardless of timestamps
	third, fifth := list.Phases[2], list.Phases[4]
	c := caseWith(schema, nil, map[string]time.Time{third: when, fifth: when.Add(-time.Hour)})
	assert.Equal(t, third, cl.Milestone(c, list))

	created := when
	onlyCreated := caseWith(schema, &created, nil)
	assert.Equal(t, phase.CreatedKey, cl.Milestone(onlyCreated, list))

	nothing := caseWith(schema, nil, nil)
	assert.Equal(t, "", cl.Milestone(nothing, list))

	res := cl.Classify([]*domain.Case{c, onlyCreated, nothing}, list)
	require.Len(t, res.Milestones, len(list.Phases))
	assert.Equal(t, third, res.Milestones[2].Key)
	assert.Equal(t, 1, res.Milestones[2].Count)
	assert.Equal(t, 0, res.Milestones[4].Count)
	assert.Equal(t, 1, res.Milestones[len(list.Phases)-1].Count)
	assert.Equal(t, 1, res.Unmatched)
	assert.Empty(t, res.Groups)
}

func TestClassify_Groups(t *testing.T) {
	schema := phase.Default()
	cl := NewClassifier(schema)
	list, _ := schema.MilestoneList(phase.MilestonesInspectionRelease)
	when := month(time.March)

	cases := []*domain.Case{
		caseWith(schema, nil, map[string]time.Time{"chaves_entregues": when}),
		caseWith(schema, nil, map[string]time.Time{"orcamento": when, "integracao": when}),
		caseWith(schema, nil, map[string]time.Time{"roque_servicos": when}),
		caseWith(schema, nil, nil),
		caseWith(schema, &when, map[string]time.Time{"imovel_sem_pendencias": when}),
	}
	res := cl.Classify(cases, list)
	require.Len(t, res.Groups, 3)
	assert.Equal(t, Count{Key: "before_inspection", Label: "Antes da Vistoria", Count: 2}, res.Groups[0])
	assert.Equal(t, "after_inspection", res.Groups[1].Key)
	assert.Equal(t, 1, res.Groups[1].Count)
	assert.Equal(t, Count{Key: "other", Label: "Outras Fases", Count: 2}, res.Groups[2])

	assert.Equal(t, "after_inspection", cl.Group(cases[1], list))
	// creation is the only milestone reached
	assert.Equal(t, phase.CreatedKey, cl.Milestone(cases[4], list))
	assert.Equal(t, "before_inspection", cl.Group(cases[4], list))
}

func TestMonthlyRatio(t *testing.T) {
	jan, feb := month(time.January), month(time.February)
	cases := []*domain.Case{
		{Timing: domain.Timing{StartAt: &jan}},
		{Timing: domain.Timing{StartAt: &jan}, PropertyCode: "flag"},
		{Timing: domain.Timing{StartAt: &feb}},
		{},
	}
	r := MonthlyRatio(cases,
		func(c *domain.Case) *time.Time { return c.Timing.StartAt },
		func(c *domain.Case) bool { return c.PropertyCode == "flag" },
	)
	require.Len(t, r.Buckets, 2)
	assert.Equal(t, RatioBucket{Month: "2024-01", Label: "jan 2024", Total: 2, Flagged: 1, Percent: 50}, r.Buckets[0])
	assert.Equal(t, 0.0, r.Buckets[1].Percent)
	assert.Equal(t, 3, r.Total)
	assert.InDelta(t, 33.333, r.Percent, 1e-3)
}
