package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet serial dates count days from this epoch (the 1900 leap-year bug folded in).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Day-first layouts come before year-first ones: "03/04/2024" is 3 April.
var timestampLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"2/1/06 15:04",
	"2/1/06",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// Normalizer turns raw cell values into optional timestamps.
type Normalizer struct {
	// Location for values without zone information; nil means time.Local.
	Location *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{Location: loc}
}

func (n *Normalizer) loc() *time.Location {
	if n == nil || n.Location == nil {
		return time.Local
	}
	return n.Location
}

// ParseTimestamp never fails: anything it cannot read is absent.
func (n *Normalizer) ParseTimestamp(v any) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		t := x.In(n.loc())
		return &t
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil
		}
		t := x.In(n.loc())
		return &t
	case float64:
		return n.fromSerial(x)
	case float32:
		return n.fromSerial(float64(x))
	case int:
		return n.fromSerial(float64(x))
	case int64:
		return n.fromSerial(float64(x))
	case int32:
		return n.fromSerial(float64(x))
	case string:
		return n.parseString(x)
	default:
		return nil
	}
}

func (n *Normalizer) parseString(s string) *time.Time {
	s = cleanCell(s)
	if s == "" {
		return nil
	}
	if isYear(s) {
		year, _ := strconv.Atoi(s)
		t := time.Date(year, time.January, 1, 0, 0, 0, 0, n.loc())
		return &t
	}
	if looksNumeric(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return n.fromSerial(f)
	}
	// zoned values are moved into the configured zone so every timestamp shares one wall clock
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(n.loc())
		return &t
	}
	loc := n.loc()
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

func (n *Normalizer) fromSerial(days float64) *time.Time {
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return nil
	}
	ms := int64(math.Round(days * 86400 * 1000))
	base := serialEpoch.Add(time.Duration(ms) * time.Millisecond)
	// serial values carry wall-clock time; re-anchor in the configured zone
	t := time.Date(base.Year(), base.Month(), base.Day(), base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), n.loc())
	return &t
}

// cleanCell drops the non-breaking spaces and line breaks exports tend to carry.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}

// isYear a bare four-digit year ("2024"); serial day numbers that short predate 1928.
func isYear(s string) bool {
	if len(s) != 4 || s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func looksNumeric(s string) bool {
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		case r == '-' && i == 0 && len(s) > 1:
		default:
			return false
		}
	}
	return s != "." && s != "-"
}
