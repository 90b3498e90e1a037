package report

import (
	"fmt"
	"math"
	"time"
)

const secondsPerDay = 86400

// Days duration as fractional days.
func Days(d time.Duration) float64 {
	return d.Seconds() / secondsPerDay
}

// FormatDuration renders "DD dias HH horas e MM minutos".
// Minutes are rounded half to even and carried into hours and days; nil renders "".
func FormatDuration(d *time.Duration) string {
	if d == nil || *d < 0 {
		return ""
	}
	days := int64(*d / (24 * time.Hour))
	rest := *d - time.Duration(days)*24*time.Hour
	hours := int64(rest / time.Hour)
	rest -= time.Duration(hours) * time.Hour
	minutes := int64(math.RoundToEven(rest.Minutes()))

	if minutes == 60 {
		minutes = 0
		hours++
	}
	if hours == 24 {
		hours = 0
		days++
	}
	return fmt.Sprintf("%02d dias %02d horas e %02d minutos", days, hours, minutes)
}

// FormatShort renders "Nd Nh Nm", truncating to whole minutes.
func FormatShort(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%dd %dh %dm", secs/secondsPerDay, (secs%secondsPerDay)/3600, (secs%3600)/60)
}

// MonthKey calendar month bucket key, e.g. "2024-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

var monthAbbr = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// MonthLabel short Portuguese label of a month key, e.g. "fev 2024".
// Keys that do not parse are returned unchanged.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%s %d", monthAbbr[t.Month()-1], t.Year())
}
