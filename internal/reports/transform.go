package reports

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transformer normalises raw store rows into display records.
type Transformer struct {
	// DateTimeField holds a combined timestamp that is split into DateField and
	// TimeField. Empty disables splitting.
	DateTimeField string
	DateField     string
	TimeField     string
	// RoundFields are rounded to two decimals, ties away from zero.
	RoundFields []string
}

// Transform returns a new row; the input is left untouched.
func (t Transformer) Transform(raw Row) Row {
	out := raw.Clone()
	if t.DateTimeField != "" {
		date, clock := splitTimestamp(raw[t.DateTimeField])
		out[t.dateField()] = date
		out[t.timeField()] = clock
	}
	for _, field := range t.RoundFields {
		v, ok := raw[field]
		if !ok || v == nil {
			continue
		}
		if d, ok := numeric(v); ok {
			out[field] = Round2(d).InexactFloat64()
		}
	}
	return out
}

// TransformAll maps Transform over rows.
func (t Transformer) TransformAll(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = t.Transform(r)
	}
	return out
}

func (t Transformer) dateField() string {
	if t.DateField != "" {
		return t.DateField
	}
	return t.DateTimeField
}

func (t Transformer) timeField() string {
	if t.TimeField != "" {
		return t.TimeField
	}
	return "hora"
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func splitTimestamp(v any) (string, string) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return "", ""
		}
		return val.Format(time.DateOnly), val.Format(time.TimeOnly)
	case nil:
		return "", ""
	}
	raw := strings.TrimSpace(Stringify(v))
	idx := strings.IndexAny(raw, "T ")
	if idx < 0 {
		return raw, ""
	}
	clock := strings.TrimSpace(raw[idx+1:])
	// Drop a fractional second or zone suffix the display never shows.
	if cut := strings.IndexAny(clock, ".Z+-"); cut >= 0 {
		clock = clock[:cut]
	}
	return raw[:idx], clock
}
