package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Instrumentation receives counters for swallowed failures and discarded
// responses. A nil Instrumentation is valid.
type Instrumentation interface {
	QueryFailed(report string, branch string)
	StaleDiscarded(report string)
}

type noopInstrumentation struct{}

func (noopInstrumentation) QueryFailed(string, string) {}
func (noopInstrumentation) StaleDiscarded(string)      {}

// BranchQuery is one request against a single concrete branch.
type BranchQuery struct {
	Report Definition
	Branch BranchID
	Window *DateWindow
	Sort   Sort
	Page   *PageRequest
}

// Executor runs range queries against one branch table and converts every
// failure into an empty page.
type Executor struct {
	store   Store
	logger  *slog.Logger
	metrics Instrumentation
	timeout time.Duration
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithInstrumentation attaches failure counters.
func WithInstrumentation(m Instrumentation) ExecutorOption {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithQueryTimeout bounds each store call.
func WithQueryTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// NewExecutor wires an Executor over a Store.
func NewExecutor(store Store, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{store: store, logger: logger, metrics: noopInstrumentation{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query fetches one branch's rows. Without a page request the full range is
// returned and TotalCount stays nil.
func (e *Executor) Query(ctx context.Context, q BranchQuery) (Page, Status) {
	page := Page{Rows: []Row{}}
	if q.Page != nil {
		page.PageIndex = q.Page.Index
		page.PageSize = q.Page.Size
	}

	if q.Branch.IsAggregate() {
		return page, e.fail(q, ErrAggregateBranch, slog.LevelError)
	}
	if q.Window == nil {
		return page, e.fail(q, ErrWindowPending, slog.LevelError)
	}

	rq := RangeQuery{
		Table:  q.Report.TableFor(q.Branch),
		Field:  q.Report.DateField,
		Start:  q.Window.Start,
		End:    q.Window.End,
		Equals: q.Report.Equals,
		Page:   q.Page,
	}
	if q.Sort.Field != "" {
		s := q.Sort
		rq.Sort = &s
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := e.store.QueryRange(ctx, rq)
	if err != nil {
		return page, e.fail(q, fmt.Errorf("%s: %w", rq.Table, err), slog.LevelWarn)
	}
	if res.Rows != nil {
		page.Rows = res.Rows
	}
	if q.Page != nil {
		page.TotalCount = res.Count
	}
	return page, Ready()
}

func (e *Executor) fail(q BranchQuery, err error, level slog.Level) Status {
	e.logger.Log(context.Background(), level, "report query failed",
		slog.String("report", q.Report.Name),
		slog.String("branch", q.Branch.String()),
		slog.Any("error", err),
	)
	e.metrics.QueryFailed(q.Report.Name, q.Branch.String())
	return Degraded(Cause{Kind: KindQueryFailed, Branch: q.Branch, Err: fmt.Errorf("%w: %w", ErrQueryFailed, err)})
}
