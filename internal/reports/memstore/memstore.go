// Package memstore keeps report tables in memory. It backs tests and the demo
// mode of the server.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tablero-sucursales/tablero/internal/reports"
)

// ErrNoTable is returned for tables that were never created.
var ErrNoTable = errors.New("memstore: table does not exist")

// Store is a concurrency-safe in-memory reports.Store.
type Store struct {
	mu       sync.RWMutex
	tables   map[string][]reports.Row
	failures map[string]error
	calls    map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tables:   make(map[string][]reports.Row),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Insert appends rows to a table, creating it when needed.
func (s *Store) Insert(table string, rows ...reports.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], r.Clone())
	}
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = []reports.Row{}
	}
}

// Fail makes every call against table return err. A nil err clears it.
func (s *Store) Fail(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, table)
		return
	}
	s.failures[table] = err
}

// Calls returns how many queries hit table.
func (s *Store) Calls(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[table]
}

// TotalCalls returns the number of queries across all tables.
func (s *Store) TotalCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// QueryRange implements reports.Store.
func (s *Store) QueryRange(ctx context.Context, q reports.RangeQuery) (reports.RangeResult, error) {
	rows, err := s.snapshot(ctx, q.Table)
	if err != nil {
		return reports.RangeResult{}, err
	}

	matched := make([]reports.Row, 0, len(rows))
	for _, row := range rows {
		t, ok := asTime(row[q.Field])
		if !ok || t.Before(q.Start) || t.After(q.End) {
			continue
		}
		if !matchesEquals(row, q.Equals) {
			continue
		}
		matched = append(matched, row)
	}

	if q.Sort != nil && q.Sort.Field != "" {
		field, desc := q.Sort.Field, q.Sort.Direction == reports.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			c := reports.CompareValues(matched[i][field], matched[j][field])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Page == nil {
		return reports.RangeResult{Rows: matched}, nil
	}
	count := len(matched)
	start := min(q.Page.Offset(), count)
	end := min(start+q.Page.Size, count)
	return reports.RangeResult{Rows: matched[start:end], Count: &count}, nil
}

// QueryOne implements reports.Store.
func (s *Store) QueryOne(ctx context.Context, table string) (reports.Row, error) {
	rows, err := s.snapshot(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: %s has %d", reports.ErrNotSingleRecord, table, len(rows))
	}
	return rows[0], nil
}

func (s *Store) snapshot(ctx context.Context, table string) ([]reports.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[table]++
	if err := s.failures[table]; err != nil {
		return nil, err
	}
	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	out := make([]reports.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func matchesEquals(row reports.Row, equals []reports.Equality) bool {
	for _, eq := range equals {
		if reports.CompareValues(row[eq.Field], eq.Value) != 0 {
			return false
		}
	}
	return true
}

func asTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
