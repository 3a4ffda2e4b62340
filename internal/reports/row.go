package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is a report record keyed by column name. Its shape depends on the report.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Direction is the sort direction requested from the store.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort describes a single-field ordering.
type Sort struct {
	Field     string
	Direction Direction
}

// PageRequest selects a 1-based page of Size rows.
type PageRequest struct {
	Index int
	Size  int
}

// Offset returns the number of rows skipped before the page.
func (p PageRequest) Offset() int {
	if p.Index <= 1 {
		return 0
	}
	return (p.Index - 1) * p.Size
}

// Page is the materialised result of a report query. TotalCount is nil when the
// row count is not tracked server-side, which is always the case for the
// aggregate fan-out.
type Page struct {
	Rows       []Row `json:"rows"`
	PageIndex  int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount *int  `json:"total_count"`
}

// compareValues orders two column values. Mismatched or unknown types fall back
// to their string form so ordering stays total.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	if b == nil {
		return 1
	}
	if ad, ok := numeric(a); ok {
		if bd, ok := numeric(b); ok {
			return ad.Cmp(bd)
		}
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

// CompareValues exposes the ordering used by the merger to store implementations.
func CompareValues(a, b any) int {
	return compareValues(a, b)
}

func numeric(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt32(val), true
	case int64:
		return decimal.NewFromInt(val), true
	case uint32:
		return decimal.NewFromInt(int64(val)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// Stringify coerces a column value for display and matching. nil becomes "".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.DateTime)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case decimal.Decimal:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
