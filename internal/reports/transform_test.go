package reports_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tablero-sucursales/tablero/internal/reports"
)

func TestTransformSplitsCombinedTimestamp(t *testing.T) {
	tr := reports.Cortes().Transformer
	cases := []struct {
		name      string
		value     any
		wantDate  string
		wantClock string
	}{
		{"space delimited", "2025-03-04 18:22:10", "2025-03-04", "18:22:10"},
		{"iso with zone", "2025-03-04T18:22:10.123Z", "2025-03-04", "18:22:10"},
		{"date only", "2025-03-04", "2025-03-04", ""},
		{"time value", time.Date(2025, 3, 4, 7, 5, 0, 0, time.UTC), "2025-03-04", "07:05:00"},
		{"missing", nil, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := tr.Transform(reports.Row{"fecha": tc.value})
			assert.Equal(t, tc.wantDate, out["fecha"])
			assert.Equal(t, tc.wantClock, out["hora"])
		})
	}
}

func TestTransformRoundsHalfAwayFromZero(t *testing.T) {
	tr := reports.Transformer{RoundFields: []string{"total", "diferencia", "texto"}}

	out := tr.Transform(reports.Row{"total": 2.345, "diferencia": -0.005, "texto": "n/a"})

	assert.Equal(t, 2.35, out["total"])
	assert.Equal(t, -0.01, out["diferencia"])
	assert.Equal(t, "n/a", out["texto"])
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	raw := reports.Row{"fecha": "2025-03-04 10:00:00", "monto": 1.005}

	_ = reports.Salidas().Transformer.Transform(raw)

	assert.Equal(t, reports.Row{"fecha": "2025-03-04 10:00:00", "monto": 1.005}, raw)
}
