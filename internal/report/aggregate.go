package report

import (
	"math"
	"sort"
	"time"

	"vacancy-report/internal/domain"
	"vacancy-report/internal/phase"
)

// Sample one metric value (days) attributed to a point in time.
type Sample struct {
	At   time.Time
	Days float64
}

// Bucket monthly aggregate
type Bucket struct {
	Month string  `json:"month"`
	Label string  `json:"label"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Trend float64 `json:"trend"`
}

// Monthly mean-per-month series with its least-squares trend.
type Monthly struct {
	Buckets   []Bucket `json:"buckets"`
	Slope     float64  `json:"slope"`
	Intercept float64  `json:"intercept"`
	Max       *Bucket  `json:"max,omitempty"`
	Min       *Bucket  `json:"min,omitempty"`
	// mean and sample standard deviation of the bucket means
	Mean   *float64 `json:"mean,omitempty"`
	StdDev *float64 `json:"std_dev,omitempty"`
}

// MonthlyMeanTrend groups samples by calendar month (in the sample's own location),
// averages each month and fits a line over the bucket index.
func MonthlyMeanTrend(samples []Sample) Monthly {
	type acc struct {
		sum   float64
		count int
	}
	byMonth := make(map[string]*acc)
	for _, s := range samples {
		if math.IsNaN(s.Days) || math.IsInf(s.Days, 0) {
			continue
		}
		k := MonthKey(s.At)
		a, ok := byMonth[k]
		if !ok {
			a = &acc{}
			byMonth[k] = a
		}
		a.sum += s.Days
		a.count++
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := Monthly{Buckets: make([]Bucket, 0, len(keys))}
	if len(keys) == 0 {
		return m
	}

	means := make([]float64, len(keys))
	for i, k := range keys {
		a := byMonth[k]
		means[i] = a.sum / float64(a.count)
		m.Buckets = append(m.Buckets, Bucket{Month: k, Label: MonthLabel(k), Count: a.count, Mean: means[i]})
	}

	m.Slope, m.Intercept = FitLine(means)
	maxIdx, minIdx := 0, 0
	for i := range m.Buckets {
		m.Buckets[i].Trend = m.Intercept + m.Slope*float64(i)
		// first occurrence wins on ties
		if means[i] > means[maxIdx] {
			maxIdx = i
		}
		if means[i] < means[minIdx] {
			minIdx = i
		}
	}
	maxB, minB := m.Buckets[maxIdx], m.Buckets[minIdx]
	m.Max, m.Min = &maxB, &minB

	mean := meanOf(means)
	m.Mean = &mean
	if len(means) > 1 {
		var ss float64
		for _, v := range means {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / float64(len(means)-1))
		m.StdDev = &std
	}
	return m
}

// FitLine ordinary least squares over x = 0..n-1.
// A single point gives a flat line through it; no points give zeros.
func FitLine(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	switch len(ys) {
	case 0:
		return 0, 0
	case 1:
		return 0, ys[0]
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func meanOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var s float64
	for _, v := range vs {
		s += v
	}
	return s / float64(len(vs))
}

// Count one labelled tally
type Count struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Classification milestone tallies in declared order, zero counts included.
type Classification struct {
	Milestones []Count `json:"milestones"`
	Groups     []Count `json:"groups,omitempty"`
	// cases where no listed milestone is present
	Unmatched int `json:"unmatched"`
}

// Classifier finds the most advanced milestone a case reached.
type Classifier struct {
	schema *phase.Schema
}

func NewClassifier(schema *phase.Schema) *Classifier {
	return &Classifier{schema: schema}
}

// Milestone first present key of the priority list, "" when none.
func (cl *Classifier) Milestone(c *domain.Case, m phase.Milestones) string {
	for _, key := range m.Phases {
		if key == phase.CreatedKey {
			if c.CreatedAt != nil {
				return key
			}
			continue
		}
		if c.At(cl.schema.Index(key)) != nil {
			return key
		}
	}
	return ""
}

// Group the milestone group a case rolls up into, "" when the list has no groups.
func (cl *Classifier) Group(c *domain.Case, m phase.Milestones) string {
	if len(m.Groups) == 0 && m.Fallback == nil {
		return ""
	}
	g, _ := m.GroupOf(cl.Milestone(c, m))
	return g.Key
}

func (cl *Classifier) Classify(cases []*domain.Case, m phase.Milestones) Classification {
	counts := make(map[string]int, len(m.Phases))
	groups := make(map[string]int)
	unmatched := 0
	for _, c := range cases {
		key := cl.Milestone(c, m)
		if key == "" {
			unmatched++
		} else {
			counts[key]++
		}
		if g, ok := m.GroupOf(key); ok {
			groups[g.Key]++
		}
	}

	out := Classification{Unmatched: unmatched}
	for _, key := range m.Phases {
		out.Milestones = append(out.Milestones, Count{Key: key, Label: cl.schema.Label(key), Count: counts[key]})
	}
	for _, g := range m.Groups {
		out.Groups = append(out.Groups, Count{Key: g.Key, Label: g.Label, Count: groups[g.Key]})
	}
	if m.Fallback != nil {
		out.Groups = append(out.Groups, Count{Key: m.Fallback.Key, Label: m.Fallback.Label, Count: groups[m.Fallback.Key]})
	}
	return out
}

// RatioBucket per-month share of flagged cases
type RatioBucket struct {
	Month   string  `json:"month"`
	Label   string  `json:"label"`
	Total   int     `json:"total"`
	Flagged int     `json:"flagged"`
	Percent float64 `json:"percent"`
}

// Ratio per-month and overall share of flagged cases
type Ratio struct {
	Buckets []RatioBucket `json:"buckets"`
	Total   int           `json:"total"`
	Flagged int           `json:"flagged"`
	Percent float64       `json:"percent"`
}

// MonthlyRatio buckets cases by the month of at() and counts those flagged.
// Cases without a timestamp are skipped.
func MonthlyRatio(cases []*domain.Case, at func(*domain.Case) *time.Time, flagged func(*domain.Case) bool) Ratio {
	byMonth := make(map[string]*RatioBucket)
	var r Ratio
	for _, c := range cases {
		t := at(c)
		if t == nil {
			continue
		}
		k := MonthKey(*t)
		b, ok := byMonth[k]
		if !ok {
			b = &RatioBucket{Month: k, Label: MonthLabel(k)}
			byMonth[k] = b
		}
		b.Total++
		r.Total++
		if flagged(c) {
			b.Flagged++
			r.Flagged++
		}
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r.Buckets = make([]RatioBucket, 0, len(keys))
	for _, k := range keys {
		b := byMonth[k]
		b.Percent = percent(b.Flagged, b.Total)
		r.Buckets = append(r.Buckets, *b)
	}
	r.Percent = percent(r.Flagged, r.Total)
	return r
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
