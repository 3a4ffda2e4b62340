// Package pgstore implements the report store capability over PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tablero-sucursales/tablero/internal/platform/db"
	"github.com/tablero-sucursales/tablero/internal/reports"
)

// ErrUndefinedTable is returned when a branch table does not exist.
var ErrUndefinedTable = errors.New("pgstore: undefined table")

const pgUndefinedTable = "42P01"

type dbtx interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store reads report tables through a pgx pool.
type Store struct {
	db dbtx
}

// New wraps a pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// QueryRange implements reports.Store.
func (s *Store) QueryRange(ctx context.Context, q reports.RangeQuery) (reports.RangeResult, error) {
	query, countQuery, args, pageArgs := buildRangeSQL(q)

	var result reports.RangeResult
	if q.Page != nil {
		var total int
		if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return reports.RangeResult{}, classify(q.Table, err)
		}
		result.Count = &total
	}

	rows, err := s.db.Query(ctx, query, append(args, pageArgs...)...)
	if err != nil {
		return reports.RangeResult{}, classify(q.Table, err)
	}
	result.Rows, err = collect(rows)
	if err != nil {
		return reports.RangeResult{}, classify(q.Table, err)
	}
	return result, nil
}

// QueryOne implements reports.Store.
func (s *Store) QueryOne(ctx context.Context, table string) (reports.Row, error) {
	rows, err := s.db.Query(ctx, "SELECT * FROM "+db.Ident(table)+" LIMIT 2")
	if err != nil {
		return nil, classify(table, err)
	}
	records, err := collect(rows)
	if err != nil {
		return nil, classify(table, err)
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("%w: %s", reports.ErrNotSingleRecord, table)
	}
	return records[0], nil
}

// buildRangeSQL returns the row query, the count query, the shared filter
// arguments and the trailing LIMIT/OFFSET arguments.
func buildRangeSQL(q reports.RangeQuery) (string, string, []any, []any) {
	args := []any{q.Start, q.End}
	field := db.Ident(q.Field)
	where := []string{field + " >= $1", field + " <= $2"}
	for _, eq := range q.Equals {
		args = append(args, eq.Value)
		where = append(where, db.Ident(eq.Field)+" = $"+strconv.Itoa(len(args)))
	}
	from := " FROM " + db.Ident(q.Table) + " WHERE " + strings.Join(where, " AND ")

	query := "SELECT *" + from
	if q.Sort != nil && q.Sort.Field != "" {
		dir := "ASC"
		if q.Sort.Direction == reports.Desc {
			dir = "DESC"
		}
		query += " ORDER BY " + db.Ident(q.Sort.Field) + " " + dir
	}

	var pageArgs []any
	if q.Page != nil {
		n := len(args)
		query += " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
		pageArgs = []any{q.Page.Size, q.Page.Offset()}
	}
	return query, "SELECT COUNT(*)" + from, args, pageArgs
}

func collect(rows pgx.Rows) ([]reports.Row, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := []reports.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(reports.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = normalize(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalize(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid || val.NaN || val.InfinityModifier != pgtype.Finite || val.Int == nil {
			return nil
		}
		return decimal.NewFromBigInt(val.Int, val.Exp)
	case [16]byte:
		return uuid.UUID(val).String()
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	default:
		return v
	}
}

func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrUndefinedTable, table)
	}
	return fmt.Errorf("pgstore: %s: %w", table, err)
}
