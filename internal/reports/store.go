package reports

import (
	"context"
	"errors"
	"time"
)

// ErrNotSingleRecord is returned by QueryOne when the table does not hold
// exactly one record.
var ErrNotSingleRecord = errors.New("reports: expected exactly one record")

// Equality is an exact-match column filter.
type Equality struct {
	Field string
	Value any
}

// RangeQuery selects rows whose Field lies in [Start, End], both ends inclusive.
// Count is only computed when Page is set.
type RangeQuery struct {
	Table  string
	Field  string
	Start  time.Time
	End    time.Time
	Equals []Equality
	Sort   *Sort
	Page   *PageRequest
}

// RangeResult carries the fetched rows and, for paginated queries, the number of
// rows matching the filter over the whole range.
type RangeResult struct {
	Rows  []Row
	Count *int
}

// Store is the data-store capability the report core consumes.
type Store interface {
	QueryRange(ctx context.Context, q RangeQuery) (RangeResult, error)
	QueryOne(ctx context.Context, table string) (Row, error)
}
