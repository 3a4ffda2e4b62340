package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/internal/reports/memstore"
)

const fanoutBranches = 12

func seededMerger(tb testing.TB, limit int) (*reports.Merger, []reports.BranchID, reports.DateWindow) {
	tb.Helper()
	store := memstore.New()
	ids := make([]string, 0, fanoutBranches)
	for i := 0; i < fanoutBranches; i++ {
		ids = append(ids, fmt.Sprintf("s%02d", i))
	}
	catalog, err := reports.NewCatalog(ids)
	if err != nil {
		tb.Fatalf("catalog: %v", err)
	}
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	memstore.SeedDemo(store, "configuracion", catalog.Branches(), now)
	window := reports.DateWindow{Start: now.AddDate(0, 0, -6), End: now.Add(24*time.Hour - time.Second)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return reports.NewMerger(reports.NewExecutor(store, logger), limit), catalog.Branches(), window
}

func TestFanoutLatencyTargets(t *testing.T) {
	merger, branches, window := seededMerger(t, 4)
	def := reports.Kardex("VENTA")

	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		started := time.Now()
		rows, status := merger.QueryAll(context.Background(), def, branches, window, "fecha")
		samples = append(samples, time.Since(started))
		if status.IsDegraded() {
			t.Fatalf("unexpected degraded fan-out: %v", status.Err())
		}
		if want := fanoutBranches * 7 * 4; len(rows) != want {
			t.Fatalf("expected %d rows, got %d", want, len(rows))
		}
	}

	if p95 := percentile95(samples); p95 > 500*time.Millisecond {
		t.Fatalf("fan-out latency regression: p95=%s threshold=500ms", p95)
	}
}

func BenchmarkFanoutAllBranches(b *testing.B) {
	for _, limit := range []int{1, 4, fanoutBranches} {
		b.Run(fmt.Sprintf("limit=%d", limit), func(b *testing.B) {
			merger, branches, window := seededMerger(b, limit)
			def := reports.Salidas()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				merger.QueryAll(context.Background(), def, branches, window, "fecha")
			}
		})
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
