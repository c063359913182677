// Package format turns numbers, dates and durations into the strings shown in embeds.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02 15:04:05"

// Number adds thousands separators: 1234567 -> 1,234,567
func Number(n int64) string {
	sign := ""
	magnitude := uint64(n)
	if n < 0 {
		sign = "-"
		magnitude = -magnitude // two's complement, also right for math.MinInt64
	}
	digits := strconv.FormatUint(magnitude, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

// Float rounds to the given decimals and separates thousands in the integer part
func Float(f float64, decimals int) string {
	s := strconv.FormatFloat(math.Abs(f), 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	n, _ := strconv.ParseInt(intPart, 10, 64)
	out := Number(n)
	if frac != "" {
		out += "." + frac
	}
	if f < 0 && strings.Trim(out, "0.,") != "" {
		out = "-" + out
	}
	return out
}

// Compact shortens large values: 1200 -> 1.2k, 3450000 -> 3.45m
func Compact(n float64) string {
	units := []struct {
		value  float64
		suffix string
	}{
		{1e12, "t"},
		{1e9, "b"},
		{1e6, "m"},
		{1e3, "k"},
	}
	abs := math.Abs(n)
	for _, unit := range units {
		if abs >= unit.value {
			return trimZeros(strconv.FormatFloat(n/unit.value, 'f', 2, 64)) + unit.suffix
		}
	}
	return trimZeros(strconv.FormatFloat(n, 'f', 2, 64))
}

func Money(n int64) string {
	if n < 0 {
		return "-$" + Number(-n)
	}
	return "$" + Number(n)
}

// Percent always carries a sign: +8.00%, -2.50%
func Percent(p float64) string {
	return fmt.Sprintf("%+.2f%%", p)
}

// Duration keeps the two most significant units: 3d 4h, 2h 5m, 45s
func Duration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func Date(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func RelativeAge(now time.Time, t time.Time) string {
	days := int64(now.Sub(t).Hours()) / 24
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
