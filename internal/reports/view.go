package reports

import (
	"context"
	"log/slog"
	"sync"
)

// State is the lifecycle position of a View.
type State string

const (
	StateUninitialized  State = "uninitialized"
	StateAwaitingWindow State = "awaiting_window"
	StateLoading        State = "loading"
	StateReady          State = "ready"
)

// Selection is the user-controlled part of a view.
type Selection struct {
	Branch BranchID `json:"branch"`
	Page   int      `json:"page"`
	Query  string   `json:"query"`
}

// Snapshot is an immutable copy of what a view currently displays.
type Snapshot struct {
	Report     string         `json:"report"`
	State      State          `json:"state"`
	Selection  Selection      `json:"selection"`
	Window     *DateWindow    `json:"window,omitempty"`
	Page       Page           `json:"page"`
	Loaded     int            `json:"loaded"`
	Totals     *RoundedTotals `json:"totals,omitempty"`
	Status     Status         `json:"-"`
	Generation uint64         `json:"generation"`
}

// ViewDeps are the collaborators a View needs.
type ViewDeps struct {
	Catalog  *Catalog
	Window   WindowSource
	Executor *Executor
	Merger   *Merger
	PageSize int
	Metrics  Instrumentation
	Logger   *slog.Logger
}

type loadKey struct {
	branch BranchID
	page   int
	window DateWindow
}

// View owns the state of one report for one session. Each load is tagged with
// a generation number; a response is only applied if no newer load was issued
// in the meantime, so the displayed page always matches the latest selection.
type View struct {
	def  Definition
	deps ViewDeps

	mu         sync.Mutex
	state      State
	sel        Selection
	generation uint64
	loaded     *loadKey
	window     *DateWindow
	raw        Page
	summary    []Row
	status     Status
}

// NewView creates an uninitialised view.
func NewView(def Definition, deps ViewDeps) *View {
	if deps.Metrics == nil {
		deps.Metrics = noopInstrumentation{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = 50
	}
	return &View{
		def:   def,
		deps:  deps,
		state: StateUninitialized,
		sel:   Selection{Branch: AllBranches, Page: 1},
		raw:   Page{Rows: []Row{}},
	}
}

// Preselect sets the selection the first load cycle will use. It has no effect
// once the view left Uninitialized.
func (v *View) Preselect(sel Selection) {
	sel = v.normalize(sel)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateUninitialized {
		v.sel = sel
	}
}

// Mount moves the view to AwaitingWindow and, once the window resolves, runs
// exactly one load cycle for the selection current at that moment. The channel
// receives that cycle's snapshot; it is closed without a value if ctx ends
// first.
func (v *View) Mount(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	v.mu.Lock()
	if v.state == StateUninitialized {
		v.state = StateAwaitingWindow
	}
	v.mu.Unlock()

	go func() {
		defer close(out)
		v.deps.Window.Resolve(ctx)
		select {
		case <-v.deps.Window.Done():
		case <-ctx.Done():
			return
		}
		v.mu.Lock()
		sel := v.sel
		v.mu.Unlock()
		out <- v.Select(ctx, sel)
	}()
	return out
}

// Select applies a new selection. Branch, page or window changes trigger a
// store round trip; a query-only change re-filters the materialised page.
func (v *View) Select(ctx context.Context, sel Selection) Snapshot {
	sel = v.normalize(sel)
	v.deps.Window.Resolve(ctx)
	window, ok := v.deps.Window.Window()

	v.mu.Lock()
	if !ok {
		v.sel = sel
		v.state = StateAwaitingWindow
		snap := v.snapshotLocked()
		v.mu.Unlock()
		return snap
	}
	key := loadKey{branch: sel.Branch, page: sel.Page, window: window}
	if v.state == StateReady && v.loaded != nil && *v.loaded == key {
		v.sel = sel
		snap := v.snapshotLocked()
		v.mu.Unlock()
		return snap
	}
	v.generation++
	gen := v.generation
	v.sel = sel
	v.window = &window
	v.state = StateLoading
	v.mu.Unlock()

	page, summary, status := v.load(ctx, sel, window)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		v.deps.Metrics.StaleDiscarded(v.def.Name)
		v.deps.Logger.Debug("discarded stale report response",
			slog.String("report", v.def.Name),
			slog.Uint64("generation", gen),
			slog.Uint64("current", v.generation),
		)
		return v.snapshotLocked()
	}
	v.raw = page
	v.summary = summary
	v.status = status
	v.loaded = &key
	v.state = StateReady
	return v.snapshotLocked()
}

// Snapshot returns the current display state without loading anything.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) normalize(sel Selection) Selection {
	if sel.Branch == "" {
		sel.Branch = AllBranches
	}
	if sel.Page < 1 || sel.Branch.IsAggregate() {
		sel.Page = 1
	}
	return sel
}

// load fetches the rows for sel. For aggregated reports it also returns the
// full filtered range of the selection, so totals never depend on page size.
func (v *View) load(ctx context.Context, sel Selection, window DateWindow) (Page, []Row, Status) {
	order := v.def.DefaultSort()
	if sel.Branch.IsAggregate() {
		rows, status := v.deps.Merger.QueryAll(ctx, v.def, v.deps.Catalog.Branches(), window, order.Field)
		rows = v.def.Transformer.TransformAll(rows)
		return Page{Rows: rows, PageIndex: 1, PageSize: len(rows)}, rows, status
	}
	q := BranchQuery{Report: v.def, Branch: sel.Branch, Window: &window, Sort: order}
	req := PageRequest{Index: sel.Page, Size: v.deps.PageSize}
	if v.def.Aggregate == nil {
		q.Page = &req
		page, status := v.deps.Executor.Query(ctx, q)
		page.Rows = v.def.Transformer.TransformAll(page.Rows)
		return page, nil, status
	}
	full, status := v.deps.Executor.Query(ctx, q)
	rows := v.def.Transformer.TransformAll(full.Rows)
	if status.IsDegraded() {
		return Page{Rows: rows}, rows, status
	}
	return paginate(rows, req), rows, status
}

// paginate cuts one page out of a fully loaded range.
func paginate(rows []Row, req PageRequest) Page {
	total := len(rows)
	start := min(req.Offset(), total)
	end := min(start+req.Size, total)
	return Page{Rows: rows[start:end], PageIndex: req.Index, PageSize: req.Size, TotalCount: &total}
}

func (v *View) snapshotLocked() Snapshot {
	rows := Filter(v.raw.Rows, v.sel.Query)
	snap := Snapshot{
		Report:     v.def.Name,
		State:      v.state,
		Selection:  v.sel,
		Page:       Page{Rows: rows, PageIndex: v.raw.PageIndex, PageSize: v.raw.PageSize, TotalCount: v.raw.TotalCount},
		Loaded:     len(v.raw.Rows),
		Status:     v.status,
		Generation: v.generation,
	}
	if v.window != nil {
		w := *v.window
		snap.Window = &w
	}
	if v.def.Aggregate != nil && v.state == StateReady {
		totals := Summarize(Filter(v.summary, v.sel.Query), *v.def.Aggregate).Rounded()
		snap.Totals = &totals
	}
	return snap
}
