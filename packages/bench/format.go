package bench

import (
	"fmt"
	"strconv"
	"time"
)

// ms converts d to fractional milliseconds with microsecond precision
func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// formatDuration renders run lengths: "850ms", "12.5s", "3m", "1m 05s".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	case d < time.Minute:
		return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
	}
	d = d.Truncate(time.Second)
	m, s := int(d/time.Minute), int(d%time.Minute/time.Second)
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

// formatLatency picks the coarsest unit that keeps a whole number
func formatLatency(d time.Duration) string {
	switch {
	case d >= time.Second:
		return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
	case d >= time.Millisecond:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	default:
		return strconv.FormatInt(d.Microseconds(), 10) + "μs"
	}
}

// formatLatencyMs prints milliseconds with fewer decimals as values grow
func formatLatencyMs(d time.Duration) string {
	v := ms(d)
	prec := 0
	if v < 1 {
		prec = 2
	} else if v < 10 {
		prec = 1
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

var byteUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

func formatBytes(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[i])
}

// formatNumber groups digits in threes: 1234567 -> "1,234,567"
func formatNumber(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return sign + string(out)
}
