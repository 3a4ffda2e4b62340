package reports_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/internal/reports/memstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(n int) time.Time {
	return time.Date(2025, 3, n, 12, 0, 0, 0, time.UTC)
}

func testWindow() reports.DateWindow {
	return reports.DateWindow{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
	}
}

func testCatalog(t *testing.T, ids ...string) *reports.Catalog {
	t.Helper()
	c, err := reports.NewCatalog(ids)
	require.NoError(t, err)
	return c
}

type countingMetrics struct {
	mu       sync.Mutex
	failures map[string]int
	stale    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{failures: map[string]int{}}
}

func (m *countingMetrics) QueryFailed(report, branch string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[report+"/"+branch]++
}

func (m *countingMetrics) StaleDiscarded(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}

func (m *countingMetrics) staleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

// gateWindow stays pending until release is called.
type gateWindow struct {
	mu     sync.Mutex
	window *reports.DateWindow
	done   chan struct{}
}

func newGateWindow() *gateWindow {
	return &gateWindow{done: make(chan struct{})}
}

func (g *gateWindow) Resolve(context.Context) {}

func (g *gateWindow) Window() (reports.DateWindow, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.window == nil {
		return reports.DateWindow{}, false
	}
	return *g.window, true
}

func (g *gateWindow) Done() <-chan struct{} {
	return g.done
}

func (g *gateWindow) release(w reports.DateWindow) {
	g.mu.Lock()
	g.window = &w
	g.mu.Unlock()
	close(g.done)
}

func resolvedWindow(w reports.DateWindow) *gateWindow {
	g := newGateWindow()
	g.release(w)
	return g
}

func newDeps(store reports.Store, catalog *reports.Catalog, window reports.WindowSource, metrics reports.Instrumentation) reports.ViewDeps {
	exec := reports.NewExecutor(store, quietLogger(), reports.WithInstrumentation(metrics))
	return reports.ViewDeps{
		Catalog:  catalog,
		Window:   window,
		Executor: exec,
		Merger:   reports.NewMerger(exec, 2),
		PageSize: 2,
		Metrics:  metrics,
		Logger:   quietLogger(),
	}
}

func seedSalidas(store *memstore.Store, branch string, days ...int) {
	for _, d := range days {
		store.Insert("salidas_"+branch, reports.Row{
			"id":       branch + "-" + day(d).Format("02"),
			"fecha":    day(d),
			"concepto": "PAGO " + branch,
			"monto":    float64(d) * 10.125,
		})
	}
}
