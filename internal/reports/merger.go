package reports

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

const defaultFanout = 4

// Merger fans one report out over several branches and merges the results.
// It never paginates: the aggregate view always materialises the full range.
type Merger struct {
	exec  *Executor
	limit int
}

// NewMerger builds a Merger running at most limit branch queries at once.
func NewMerger(exec *Executor, limit int) *Merger {
	if limit <= 0 {
		limit = defaultFanout
	}
	return &Merger{exec: exec, limit: limit}
}

// QueryAll collects every branch's full range and sorts the concatenation by
// sortField, descending. Failed branches contribute no rows; they are reported
// in the status as partial fan-out failures.
func (m *Merger) QueryAll(ctx context.Context, def Definition, branches []BranchID, window DateWindow, sortField string) ([]Row, Status) {
	results := make([][]Row, len(branches))
	statuses := make([]Status, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)
	for i, branch := range branches {
		g.Go(func() error {
			page, status := m.exec.Query(gctx, BranchQuery{
				Report: def,
				Branch: branch,
				Window: &window,
				Sort:   Sort{Field: sortField, Direction: Desc},
			})
			results[i] = page.Rows
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, rows := range results {
		total += len(rows)
	}
	merged := make([]Row, 0, total)
	status := Ready()
	for i, rows := range results {
		merged = append(merged, rows...)
		for _, c := range statuses[i].Causes {
			c.Kind = KindPartialFanoutFailure
			c.Err = fmt.Errorf("%w: %w", ErrPartialFanout, c.Err)
			status = status.Merge(Degraded(c))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return compareValues(merged[i][sortField], merged[j][sortField]) > 0
	})
	return merged, status
}
