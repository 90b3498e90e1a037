package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"

	"github.com/samber/lo"
)

var ErrUnknownView = errors.New("unknown report view")

// View identifiers in tab order
const (
	ViewVolumeTotal       = "volume-total"
	ViewOpenCases         = "open-cases"
	ViewMonthlyMean       = "monthly-mean"
	ViewAgencyRepairs     = "agency-repairs"
	ViewTenantRepairs     = "tenant-repairs"
	ViewInspection        = "inspection"
	ViewInspectionMonthly = "inspection-monthly"
	ViewBudgeting         = "budgeting"
	ViewBudgetingMonthly  = "budgeting-monthly"
	ViewVacancy           = "vacancy"
	ViewVacancyMonthly    = "vacancy-monthly"
	ViewNoPending         = "no-pending"
	ViewNoPendingPath     = "no-pending-path"
	ViewInspectionRelease = "inspection-release"
)

// Filter values accepted by the split views
const (
	FilterAll           = "todos"
	FilterFinalized     = "finalizadas"
	FilterOpen          = "nao_finalizadas"
	FilterInProgress    = "andamento"
	FilterNoAutomation  = "sem_automacao"
	FilterNoPending     = "passaram_sem_pendencia"
	FilterMissedPending = "nao_passou_fase"

	SeriesFlagged = "flagged"
	allMonths     = "ALL"
)

// Query drill-down selections of one view request
type Query struct {
	Filter string   `json:"filter,omitempty"`
	Months []string `json:"months,omitempty"`
	Phase  string   `json:"phase,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Series string   `json:"series,omitempty"`
}

// Point one chart value
type Point struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Text  string  `json:"text,omitempty"`
}

// Series named list of chart points
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Result everything a view hands to rendering
type Result struct {
	View           string          `json:"view"`
	Title          string          `json:"title"`
	Filter         string          `json:"filter,omitempty"`
	Summary        map[string]any  `json:"summary"`
	Series         []Series        `json:"series"`
	Monthly        *Monthly        `json:"monthly,omitempty"`
	Ratio          *Ratio          `json:"ratio,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Table          Table           `json:"table"`
}

// ViewInfo catalog entry
type ViewInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type view struct {
	ViewInfo
	build func(ds *Dataset, q Query) *Result
}

var catalog = []view{
	{ViewInfo{ViewVolumeTotal, "Volume Total de Desocupações"}, volumeTotal},
	{ViewInfo{ViewOpenCases, "Desocupações Não Finalizadas"}, openCases},
	{ViewInfo{ViewMonthlyMean, "Evolução da Média Mensal do Tempo de Desocupação"}, monthlyMean},
	{ViewInfo{ViewAgencyRepairs, "Reparos Roque Serviços"}, repairs(func(s *phase.Schema) string { return s.Flags.AgencyRepairs })},
	{ViewInfo{ViewTenantRepairs, "Inquilino Fez por Conta"}, repairs(func(s *phase.Schema) string { return s.Flags.TenantRepairs })},
	{ViewInfo{ViewInspection, "Análise de Tempo nas Fases de Vistoria"}, familyPhases(phase.FamilyInspection)},
	{ViewInfo{ViewInspectionMonthly, "Média Mensal das Fases de Vistoria"}, familyMonthly(phase.FamilyInspection)},
	{ViewInfo{ViewBudgeting, "Análise de Tempo nas Fases de Orçamento"}, familyPhases(phase.FamilyBudgeting)},
	{ViewInfo{ViewBudgetingMonthly, "Média Mensal das Fases de Orçamento"}, familyMonthly(phase.FamilyBudgeting)},
	{ViewInfo{ViewVacancy, "Análise de Tempo nas Fases de Desocupação"}, familyPhases(phase.FamilyVacancy)},
	{ViewInfo{ViewVacancyMonthly, "Média Mensal das Fases de Desocupação"}, familyMonthly(phase.FamilyVacancy)},
	{ViewInfo{ViewNoPending, "Imóveis Sem Pendências"}, noPending},
	{ViewInfo{ViewNoPendingPath, "Fase Anterior ao Imóvel Sem Pendências"}, milestonePath},
	{ViewInfo{ViewInspectionRelease, "Liberação Após Vistoria"}, inspectionRelease},
}

// Catalog views in tab order.
func Catalog() []ViewInfo {
	return lo.Map(catalog, func(v view, _ int) ViewInfo { return v.ViewInfo })
}

// Build computes one view; a nil dataset yields an empty result.
func Build(ds *Dataset, id string, q Query) (*Result, error) {
	v, ok := lo.Find(catalog, func(v view) bool { return v.ID == id })
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, id)
	}
	if ds == nil {
		ds = NewDataset("", phase.Default(), nil)
	}
	r := v.build(ds, q)
	r.View = v.ID
	if r.Title == "" {
		r.Title = v.Title
	}
	if r.Summary == nil {
		r.Summary = map[string]any{}
	}
	if r.Series == nil {
		r.Series = []Series{}
	}
	return r, nil
}

func pick(filter string, allowed ...string) string {
	if lo.Contains(allowed, filter) {
		return filter
	}
	return FilterAll
}

// monthSelected treats an empty selection or "ALL" as every month; keys and labels both match.
func monthSelected(months []string, t *time.Time) bool {
	if len(months) == 0 || lo.Contains(months, allMonths) {
		return true
	}
	if t == nil {
		return false
	}
	key := MonthKey(*t)
	label := MonthLabel(key)
	return lo.ContainsBy(months, func(m string) bool {
		m = strings.TrimSpace(m)
		return m == key || strings.EqualFold(m, label)
	})
}

func volumeTotal(ds *Dataset, q Query) *Result {
	s := ds.Schema
	filter := pick(q.Filter, FilterFinalized, FilterOpen)
	all := ds.all()
	finalized := lo.CountBy(all, func(c *domain.Case) bool { return c.Timing.Finalized })
	open := len(all) - finalized

	points := []Point{
		{Key: FilterFinalized, Label: "Desocupações Finalizadas", Value: float64(finalized)},
		{Key: FilterOpen, Label: "Desocupações Não Finalizadas", Value: float64(open)},
	}
	rows := all
	title := "Todas as Desocupações"
	switch filter {
	case FilterFinalized:
		points = points[:1]
		rows = ds.finalized()
		title = "Desocupações Finalizadas"
	case FilterOpen:
		points = points[1:]
		rows = lo.Filter(all, func(c *domain.Case, _ int) bool { return !c.Timing.Finalized })
		title = "Desocupações Não Finalizadas"
	}

	return &Result{
		Filter: filter,
		Summary: map[string]any{
			"total":       len(all),
			"finalized":   finalized,
			"open":        open,
			"table_title": title,
		},
		Series: []Series{{Name: "volume", Points: points}},
		Table:  ds.table([]string{s.Identity.Property, s.Identity.Contact, ColStart, ColEnd, ColTotalText, ColFinalized}, rows),
	}
}

func openCases(ds *Dataset, q Query) *Result {
	s := ds.Schema
	filter := pick(q.Filter, FilterInProgress, FilterNoAutomation)
	open := lo.Filter(ds.all(), func(c *domain.Case, _ int) bool { return !c.Timing.Finalized })
	inProgress, noAutomation := lo.FilterReject(open, func(c *domain.Case, _ int) bool { return c.AnyPhase() })

	points := []Point{
		{Key: FilterInProgress, Label: "Desocupações em Andamento", Value: float64(len(inProgress))},
		{Key: FilterNoAutomation, Label: "Desocupações sem Automação", Value: float64(len(noAutomation))},
	}
	rows := open
	switch filter {
	case FilterInProgress:
		points, rows = points[:1], inProgress
	case FilterNoAutomation:
		points, rows = points[1:], noAutomation
	}

	return &Result{
		Filter: filter,
		Summary: map[string]any{
			"total":         len(open),
			"in_progress":   len(inProgress),
			"no_automation": len(noAutomation),
		},
		Series: []Series{{Name: "open", Points: points}},
		Table:  ds.table([]string{s.Identity.Property, s.Identity.Contact, ColStart, ColEnd, ColFinalized}, rows),
	}
}

func monthlySeries(m Monthly) []Series {
	mean := Series{Name: "Média Mensal", Points: make([]Point, 0, len(m.Buckets))}
	trend := Series{Name: "Tendência", Points: make([]Point, 0, len(m.Buckets))}
	for _, b := range m.Buckets {
		mean.Points = append(mean.Points, Point{Key: b.Month, Label: b.Label, Value: b.Mean, Text: fmt.Sprintf("%.1f", b.Mean)})
		trend.Points = append(trend.Points, Point{Key: b.Month, Label: b.Label, Value: b.Trend})
	}
	return []Series{mean, trend}
}

func monthlySummary(m Monthly) map[string]any {
	sum := map[string]any{"months": len(m.Buckets)}
	if m.Mean != nil {
		sum["mean_days"] = *m.Mean
	}
	if m.StdDev != nil {
		sum["std_dev_days"] = *m.StdDev
	}
	if m.Max != nil {
		sum["max_month"] = m.Max.Month
		sum["max_days"] = m.Max.Mean
	}
	if m.Min != nil {
		sum["min_month"] = m.Min.Month
		sum["min_days"] = m.Min.Mean
	}
	return sum
}

func monthlyMean(ds *Dataset, q Query) *Result {
	s := ds.Schema
	finalized := ds.finalized()
	samples := make([]Sample, 0, len(finalized))
	for _, c := range finalized {
		if c.Timing.TotalDuration == nil || c.Timing.EndAt == nil {
			continue
		}
		samples = append(samples, Sample{At: *c.Timing.EndAt, Days: Days(*c.Timing.TotalDuration)})
	}
	m := MonthlyMeanTrend(samples)

	rows := lo.Filter(finalized, func(c *domain.Case, _ int) bool { return monthSelected(q.Months, c.Timing.EndAt) })
	return &Result{
		Summary: monthlySummary(m),
		Series:  monthlySeries(m),
		Monthly: &m,
		Table:   ds.table([]string{s.Identity.Property, s.Identity.Contact, ColStart, ColEnd, ColFinalized}, rows),
	}
}

func repairs(flag func(*phase.Schema) string) func(ds *Dataset, q Query) *Result {
	return func(ds *Dataset, q Query) *Result {
		s := ds.Schema
		key := flag(s)
		flagged := func(c *domain.Case) bool { return key != "" && ds.has(c, key) }

		base := lo.Filter(ds.finalized(), func(c *domain.Case, _ int) bool { return monthSelected(q.Months, c.Timing.StartAt) })
		ratio := MonthlyRatio(base, func(c *domain.Case) *time.Time { return c.Timing.StartAt }, flagged)

		label := s.Label(key)
		total := Series{Name: "Total de Desocupações"}
		hits := Series{Name: label}
		share := Series{Name: "% " + label}
		for _, b := range ratio.Buckets {
			total.Points = append(total.Points, Point{Key: b.Month, Label: b.Label, Value: float64(b.Total)})
			hits.Points = append(hits.Points, Point{Key: b.Month, Label: b.Label, Value: float64(b.Flagged)})
			share.Points = append(share.Points, Point{Key: b.Month, Label: b.Label, Value: b.Percent, Text: fmt.Sprintf("%.1f%%", b.Percent)})
		}

		rows := base
		if q.Series == SeriesFlagged {
			rows = lo.Filter(rows, func(c *domain.Case, _ int) bool { return flagged(c) })
		}
		return &Result{
			Summary: map[string]any{
				"total":   ratio.Total,
				"flagged": ratio.Flagged,
				"percent": ratio.Percent,
			},
			Series: []Series{total, hits, share},
			Ratio:  &ratio,
			Table:  ds.table([]string{s.Identity.Property, s.Identity.Contact, ColStart, s.Column(key), ColEnd, ColFinalized}, rows),
		}
	}
}

func familyPhases(familyKey string) func(ds *Dataset, q Query) *Result {
	return func(ds *Dataset, q Query) *Result {
		s := ds.Schema
		fam, ok := s.Family(familyKey)
		if !ok {
			return &Result{Table: Table{Columns: []string{}, Rows: [][]any{}}}
		}
		finalized := ds.finalized()

		sums := make([]time.Duration, len(fam.Phases))
		counts := make([]int, len(fam.Phases))
		for _, c := range finalized {
			for i, d := range ds.calc.FamilyDwell(c, fam) {
				if d == nil {
					continue
				}
				sums[i] += *d
				counts[i]++
			}
		}

		var cumulative time.Duration
		totals := Series{Name: "Tempo Total por Fase"}
		means := Series{Name: "Tempo Médio por Fase"}
		for i, key := range fam.Phases {
			cumulative += sums[i]
			var mean time.Duration
			if counts[i] > 0 {
				mean = sums[i] / time.Duration(counts[i])
			}
			label := s.Label(key)
			totals.Points = append(totals.Points, Point{Key: key, Label: label, Value: Days(sums[i]), Text: FormatShort(sums[i])})
			means.Points = append(means.Points, Point{Key: key, Label: label, Value: Days(mean), Text: FormatShort(mean)})
		}

		cols := []string{s.Identity.Property, s.Identity.Contact}
		if key, ok := s.ResolveKey(q.Phase); ok && lo.Contains(fam.Phases, key) {
			cols = append(cols, s.Column(key))
		} else {
			cols = append(cols, lo.Map(fam.Phases, func(k string, _ int) string { return s.Column(k) })...)
		}

		return &Result{
			Title: "Análise de Tempo nas Fases de " + fam.Label,
			Summary: map[string]any{
				"cases":      len(finalized),
				"total_days": Days(cumulative),
				"total_text": FormatShort(cumulative),
			},
			Series: []Series{totals, means},
			Table:  ds.table(cols, finalized),
		}
	}
}

func familyMonthly(familyKey string) func(ds *Dataset, q Query) *Result {
	return func(ds *Dataset, q Query) *Result {
		s := ds.Schema
		fam, ok := s.Family(familyKey)
		if !ok {
			return &Result{Table: Table{Columns: []string{}, Rows: [][]any{}}}
		}
		finalized := ds.finalized()
		samples := make([]Sample, 0, len(finalized))
		for _, c := range finalized {
			total := ds.calc.FamilyTotal(c, fam)
			if total == nil || c.Timing.EndAt == nil {
				continue
			}
			samples = append(samples, Sample{At: *c.Timing.EndAt, Days: Days(*total)})
		}
		m := MonthlyMeanTrend(samples)

		cols := []string{s.Identity.Property, s.Identity.Contact}
		cols = append(cols, lo.Map(fam.Phases, func(k string, _ int) string { return s.Column(k) })...)
		cols = append(cols, ColEnd, ColFinalized)
		rows := lo.Filter(finalized, func(c *domain.Case, _ int) bool { return monthSelected(q.Months, c.Timing.EndAt) })

		return &Result{
			Title:   "Média Mensal das Fases de " + fam.Label,
			Summary: monthlySummary(m),
			Series:  monthlySeries(m),
			Monthly: &m,
			Table:   ds.table(cols, rows),
		}
	}
}

func noPending(ds *Dataset, q Query) *Result {
	s := ds.Schema
	key := s.Flags.NoPending
	filter := pick(q.Filter, FilterNoPending, FilterMissedPending)
	with, without := lo.FilterReject(ds.all(), func(c *domain.Case, _ int) bool { return key != "" && ds.has(c, key) })

	points := []Point{
		{Key: FilterNoPending, Label: "Passaram por " + s.Label(key), Value: float64(len(with))},
		{Key: FilterMissedPending, Label: "Não passaram pela fase", Value: float64(len(without))},
	}
	rows := ds.all()
	switch filter {
	case FilterNoPending:
		points, rows = points[:1], with
	case FilterMissedPending:
		points, rows = points[1:], without
	}

	return &Result{
		Filter: filter,
		Summary: map[string]any{
			"total":   len(ds.Cases),
			"with":    len(with),
			"without": len(without),
		},
		Series: []Series{{Name: "no_pending", Points: points}},
		Table:  ds.table([]string{s.Identity.Property, s.Identity.Contact, ColStart, s.Column(key), ColEnd, ColFinalized}, rows),
	}
}

// reachedNoPending cases that went through the no-pending phase
func (ds *Dataset) reachedNoPending() []*domain.Case {
	key := ds.Schema.Flags.NoPending
	if key == "" {
		return nil
	}
	return lo.Filter(ds.all(), func(c *domain.Case, _ int) bool { return ds.has(c, key) })
}

// selectedKeys resolves group/milestone selections given as keys or labels.
func selectedKeys(sel []string, known []Count) []string {
	var out []string
	for _, v := range sel {
		v = strings.TrimSpace(v)
		for _, k := range known {
			if v == k.Key || v == k.Label {
				out = append(out, k.Key)
			}
		}
	}
	return lo.Uniq(out)
}

func countSeries(name string, counts []Count) Series {
	return Series{Name: name, Points: lo.Map(counts, func(c Count, _ int) Point {
		return Point{Key: c.Key, Label: c.Label, Value: float64(c.Count)}
	})}
}

func milestonePath(ds *Dataset, q Query) *Result {
	s := ds.Schema
	list, ok := s.MilestoneList(phase.MilestonesNoPendingPath)
	if !ok {
		return &Result{Table: Table{Columns: []string{}, Rows: [][]any{}}}
	}
	population := ds.reachedNoPending()
	cl := ds.cls.Classify(population, list)

	rows := population
	if keys := selectedKeys(q.Groups, cl.Milestones); len(keys) > 0 {
		rows = lo.Filter(population, func(c *domain.Case, _ int) bool {
			return lo.Contains(keys, ds.cls.Milestone(c, list))
		})
	}

	cols := []string{s.Identity.Property, s.Identity.Contact, s.Identity.Created}
	for _, p := range s.Phases {
		if lo.Contains(list.Phases, p.Key) {
			cols = append(cols, p.Column)
		}
	}
	if flag := s.Flags.NoPending; flag != "" && !lo.Contains(list.Phases, flag) {
		cols = append(cols, s.Column(flag))
	}
	cols = append(cols, ColFinalized)

	return &Result{
		Summary: map[string]any{
			"total":     len(population),
			"unmatched": cl.Unmatched,
		},
		Series:         []Series{countSeries("milestones", cl.Milestones)},
		Classification: &cl,
		Table:          ds.table(cols, rows),
	}
}

func inspectionRelease(ds *Dataset, q Query) *Result {
	s := ds.Schema
	list, ok := s.MilestoneList(phase.MilestonesInspectionRelease)
	if !ok {
		return &Result{Table: Table{Columns: []string{}, Rows: [][]any{}}}
	}
	population := ds.reachedNoPending()
	cl := ds.cls.Classify(population, list)

	rows := population
	if keys := selectedKeys(q.Groups, cl.Groups); len(keys) > 0 {
		rows = lo.Filter(population, func(c *domain.Case, _ int) bool {
			return lo.Contains(keys, ds.cls.Group(c, list))
		})
	}

	return &Result{
		Summary: map[string]any{
			"total": len(population),
		},
		Series:         []Series{countSeries("groups", cl.Groups)},
		Classification: &cl,
		Table:          ds.table([]string{s.Identity.Property, s.Identity.Contact, ColStart, s.Column(s.Flags.NoPending), ColEnd, ColTotalText, ColFinalized}, rows),
	}
}
