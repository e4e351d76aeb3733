package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpaquero/alpaquero/market"
)

var timeLayouts = []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"}

func parseBarTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func isHeader(first string) bool {
	first = strings.TrimSpace(first)
	return strings.EqualFold(first, "time") || strings.EqualFold(first, "date")
}

// parseBarRow turns one CSV row into a bar. Blank and short rows are
// skipped (ok=false), malformed values are errors.
func parseBarRow(symbol string, row []string) (market.Bar, bool, error) {
	// Need at least: time,open,high,low,close
	if len(row) < 5 {
		return market.Bar{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Bar{}, false, nil
	}
	t, err := parseBarTime(ts)
	if err != nil {
		return market.Bar{}, false, err
	}

	vals := make([]float64, 4)
	for i, name := range []string{"open", "high", "low", "close"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bad %s %q: %w", name, row[i+1], err)
		}
		vals[i] = v
	}

	b := market.Bar{
		Symbol: symbol,
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
	}
	if b.High < b.Low {
		return market.Bar{}, false, fmt.Errorf("bad range at %s: high %g below low %g", ts, b.High, b.Low)
	}

	if len(row) >= 6 {
		vol := strings.TrimSpace(row[5])
		if vol != "" {
			v, err := strconv.ParseFloat(vol, 64)
			if err != nil {
				return market.Bar{}, false, fmt.Errorf("bad volume %q: %w", row[5], err)
			}
			b.Volume = v
		}
	}
	return b, true, nil
}

func formatBarRow(b market.Bar) []string {
	return []string{
		b.Time.UTC().Format(time.RFC3339),
		strconv.FormatFloat(b.Open, 'g', -1, 64),
		strconv.FormatFloat(b.High, 'g', -1, 64),
		strconv.FormatFloat(b.Low, 'g', -1, 64),
		strconv.FormatFloat(b.Close, 'g', -1, 64),
		strconv.FormatFloat(b.Volume, 'g', -1, 64),
	}
}
