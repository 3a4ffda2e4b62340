package reports_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/internal/reports/memstore"
)

func TestExecutorWindowBoundsAreInclusive(t *testing.T) {
	w := testWindow()
	store := memstore.New()
	store.Insert("salidas_centro",
		reports.Row{"id": "at-start", "fecha": w.Start},
		reports.Row{"id": "at-end", "fecha": w.End},
		reports.Row{"id": "before", "fecha": w.Start.Add(-time.Microsecond)},
		reports.Row{"id": "after", "fecha": w.End.Add(time.Microsecond)},
	)
	exec := reports.NewExecutor(store, quietLogger())

	page, status := exec.Query(context.Background(), reports.BranchQuery{
		Report: reports.Salidas(),
		Branch: "centro",
		Window: &w,
		Sort:   reports.Sort{Field: "fecha", Direction: reports.Asc},
	})

	require.False(t, status.IsDegraded())
	ids := make([]any, 0, len(page.Rows))
	for _, r := range page.Rows {
		ids = append(ids, r["id"])
	}
	assert.Equal(t, []any{"at-start", "at-end"}, ids)
	assert.Nil(t, page.TotalCount)
}

func TestExecutorPaginationIsConsistent(t *testing.T) {
	w := testWindow()
	store := memstore.New()
	seedSalidas(store, "centro", 1, 2, 3, 4, 5, 6, 7)
	exec := reports.NewExecutor(store, quietLogger())
	const size = 3

	seen := 0
	for index := 1; index <= 3; index++ {
		page, status := exec.Query(context.Background(), reports.BranchQuery{
			Report: reports.Salidas(),
			Branch: "centro",
			Window: &w,
			Sort:   reports.Salidas().DefaultSort(),
			Page:   &reports.PageRequest{Index: index, Size: size},
		})
		require.False(t, status.IsDegraded())
		require.NotNil(t, page.TotalCount)
		assert.Equal(t, 7, *page.TotalCount, "page %d", index)
		assert.LessOrEqual(t, len(page.Rows), size)
		assert.Equal(t, index, page.PageIndex)
		seen += len(page.Rows)
	}
	assert.Equal(t, 7, seen)
}

func TestExecutorSwallowsStoreFailures(t *testing.T) {
	w := testWindow()
	store := memstore.New()
	store.Fail("cortes_sur", errors.New("connection reset"))
	metrics := newCountingMetrics()
	exec := reports.NewExecutor(store, quietLogger(), reports.WithInstrumentation(metrics))

	page, status := exec.Query(context.Background(), reports.BranchQuery{
		Report: reports.Cortes(),
		Branch: "sur",
		Window: &w,
		Page:   &reports.PageRequest{Index: 1, Size: 10},
	})

	assert.Empty(t, page.Rows)
	assert.NotNil(t, page.Rows)
	assert.Nil(t, page.TotalCount)
	require.True(t, status.IsDegraded())
	assert.Equal(t, reports.KindQueryFailed, status.Causes[0].Kind)
	assert.ErrorIs(t, status.Err(), reports.ErrQueryFailed)
	assert.Equal(t, 1, metrics.failures["cortes/sur"])
}

func TestExecutorRejectsPreconditionViolations(t *testing.T) {
	store := memstore.New()
	exec := reports.NewExecutor(store, quietLogger())
	w := testWindow()

	_, status := exec.Query(context.Background(), reports.BranchQuery{Report: reports.Cortes(), Branch: reports.AllBranches, Window: &w})
	assert.ErrorIs(t, status.Err(), reports.ErrAggregateBranch)

	_, status = exec.Query(context.Background(), reports.BranchQuery{Report: reports.Cortes(), Branch: "centro"})
	assert.ErrorIs(t, status.Err(), reports.ErrWindowPending)

	assert.Zero(t, store.TotalCalls())
}

func TestExecutorAppliesEqualityFilter(t *testing.T) {
	w := testWindow()
	store := memstore.New()
	store.Insert("kardex_centro",
		reports.Row{"id": 1, "fecha": day(2), "tipo": "VENTA"},
		reports.Row{"id": 2, "fecha": day(3), "tipo": "DEVOLUCION"},
	)
	exec := reports.NewExecutor(store, quietLogger())

	page, _ := exec.Query(context.Background(), reports.BranchQuery{Report: reports.Kardex("VENTA"), Branch: "centro", Window: &w})

	require.Len(t, page.Rows, 1)
	assert.Equal(t, 1, page.Rows[0]["id"])
}

func TestMergerSortsAcrossBranchesDescending(t *testing.T) {
	store := memstore.New()
	seedSalidas(store, "a", 1, 3)
	seedSalidas(store, "b", 2, 4)
	exec := reports.NewExecutor(store, quietLogger())
	merger := reports.NewMerger(exec, 2)

	rows, status := merger.QueryAll(context.Background(), reports.Salidas(), []reports.BranchID{"a", "b"}, testWindow(), "fecha")

	require.False(t, status.IsDegraded())
	got := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		got = append(got, r["fecha"].(time.Time))
	}
	assert.Equal(t, []time.Time{day(4), day(3), day(2), day(1)}, got)
}

func TestMergerDropsFailedBranches(t *testing.T) {
	store := memstore.New()
	seedSalidas(store, "a", 1, 3)
	seedSalidas(store, "b", 2, 4)
	store.Fail("salidas_b", errors.New("timeout"))
	merger := reports.NewMerger(reports.NewExecutor(store, quietLogger()), 1)

	rows, status := merger.QueryAll(context.Background(), reports.Salidas(), []reports.BranchID{"a", "b"}, testWindow(), "fecha")

	assert.Len(t, rows, 2)
	require.True(t, status.IsDegraded())
	require.Len(t, status.Causes, 1)
	assert.Equal(t, reports.KindPartialFanoutFailure, status.Causes[0].Kind)
	assert.Equal(t, reports.BranchID("b"), status.Causes[0].Branch)
	assert.ErrorIs(t, status.Err(), reports.ErrPartialFanout)
}

func TestMergerIsDeterministicForEqualKeys(t *testing.T) {
	store := memstore.New()
	store.Insert("salidas_a", reports.Row{"id": "a1", "fecha": day(5)})
	store.Insert("salidas_b", reports.Row{"id": "b1", "fecha": day(5)})
	merger := reports.NewMerger(reports.NewExecutor(store, quietLogger()), 2)

	for i := 0; i < 20; i++ {
		rows, _ := merger.QueryAll(context.Background(), reports.Salidas(), []reports.BranchID{"a", "b"}, testWindow(), "fecha")
		require.Len(t, rows, 2)
		assert.Equal(t, "a1", rows[0]["id"])
		assert.Equal(t, "b1", rows[1]["id"])
	}
}
