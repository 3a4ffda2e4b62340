// Package reporthttp serves the per-branch reports over HTTP.
package reporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tablero-sucursales/tablero/internal/platform/httpx"
	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/internal/shared"
)

const sessionWindowKey = "reports.window"

var errNoSession = errors.New("reporthttp: session missing from request context")

// Config wires the report pipeline shared by every session.
type Config struct {
	Catalog      *reports.Catalog
	Registry     *reports.Registry
	Store        reports.Store
	Window       reports.WindowConfig
	PageSize     int
	Fanout       int
	QueryTimeout time.Duration
	Metrics      reports.Instrumentation
}

// Handler coordinates report requests.
type Handler struct {
	logger     *slog.Logger
	cfg        Config
	exec       *reports.Executor
	merger     *reports.Merger
	workspaces *Workspaces
	validate   *validator.Validate
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, cfg Config, workspaces *Workspaces) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	exec := reports.NewExecutor(cfg.Store, logger,
		reports.WithInstrumentation(cfg.Metrics),
		reports.WithQueryTimeout(cfg.QueryTimeout),
	)
	return &Handler{
		logger:     logger,
		cfg:        cfg,
		exec:       exec,
		merger:     reports.NewMerger(exec, cfg.Fanout),
		workspaces: workspaces,
		validate:   validator.New(),
	}
}

type selectionParams struct {
	Branch string `validate:"max=64"`
	Page   int    `validate:"gte=0,lte=100000"`
	Query  string `validate:"max=200"`
}

type causeBody struct {
	Kind   reports.FailureKind `json:"kind"`
	Branch reports.BranchID    `json:"branch,omitempty"`
	Error  string              `json:"error"`
}

type statusBody struct {
	Degraded bool        `json:"degraded"`
	Causes   []causeBody `json:"causes"`
}

type reportResponse struct {
	Title string `json:"title"`
	reports.Snapshot
	Pagination *shared.Pagination `json:"pagination,omitempty"`
	Status     *statusBody        `json:"status,omitempty"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	def, snap, err := h.render(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := reportResponse{Title: def.Title, Snapshot: snap}
	if snap.Page.TotalCount != nil {
		p := shared.NewPagination(snap.Page.PageIndex, snap.Page.PageSize, *snap.Page.TotalCount)
		resp.Pagination = &p
	}
	if wantStatus(r.URL.Query()) {
		resp.Status = statusFor(snap.Status)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBranches(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"branches":  h.cfg.Catalog.Branches(),
		"aggregate": reports.AllBranches,
	})
}

func (h *Handler) handleWindow(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.respondError(w, errNoSession)
		return
	}
	ws := h.workspace(sess)
	if err := resolveWindow(r.Context(), ws); err != nil {
		h.respondError(w, err)
		return
	}
	window, ok := ws.Window().Window()
	if !ok {
		body := map[string]any{"state": "pending"}
		if err := ws.Window().Err(); err != nil && wantStatus(r.URL.Query()) {
			body["status"] = statusFor(reports.Degraded(reports.Cause{Kind: reports.KindConfigUnavailable, Err: err}))
		}
		httpx.JSON(w, http.StatusOK, body)
		return
	}
	h.persistWindow(sess, window)
	httpx.JSON(w, http.StatusOK, map[string]any{"state": "resolved", "window": window})
}

// render resolves the selection for the request, runs it through the
// session's view and persists what the session should remember.
func (h *Handler) render(r *http.Request) (reports.Definition, reports.Snapshot, error) {
	name := chi.URLParam(r, "report")
	def, ok := h.cfg.Registry.Lookup(name)
	if !ok {
		return reports.Definition{}, reports.Snapshot{}, fmt.Errorf("report %q: %w", name, httpx.ErrNotFound)
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return def, reports.Snapshot{}, errNoSession
	}
	sel, err := h.selection(r.URL.Query(), sess, def.Name)
	if err != nil {
		return def, reports.Snapshot{}, err
	}

	ctx := r.Context()
	ws := h.workspace(sess)
	if err := resolveWindow(ctx, ws); err != nil {
		return def, reports.Snapshot{}, err
	}
	view, created := ws.view(def, h.newView)
	var snap reports.Snapshot
	if created {
		view.Preselect(sel)
		mounted := view.Mount(ws.ctx)
		snap = view.Snapshot()
		if _, resolved := ws.Window().Window(); resolved {
			select {
			case s, ok := <-mounted:
				if ok {
					snap = s
				}
			case <-ctx.Done():
				return def, reports.Snapshot{}, ctx.Err()
			}
		}
	} else {
		snap = view.Select(ctx, sel)
	}

	if window, ok := ws.Window().Window(); ok {
		h.persistWindow(sess, window)
	}
	if err := ws.Window().Err(); err != nil {
		snap.Status = snap.Status.Merge(reports.Degraded(reports.Cause{Kind: reports.KindConfigUnavailable, Err: err}))
	}
	persistSelection(sess, def.Name, snap.Selection)
	return def, snap, nil
}

// selection merges explicit query parameters over the selection the session
// remembers for this report.
func (h *Handler) selection(q url.Values, sess *shared.Session, report string) (reports.Selection, error) {
	sel := restoreSelection(sess, report)
	params := selectionParams{Branch: string(sel.Branch), Page: sel.Page, Query: sel.Query}
	if q.Has("branch") {
		params.Branch = strings.TrimSpace(q.Get("branch"))
		if !q.Has("page") {
			params.Page = 1
		}
	}
	if q.Has("page") {
		page, err := strconv.Atoi(q.Get("page"))
		if err != nil {
			return sel, fmt.Errorf("page %q: %w", q.Get("page"), httpx.ErrValidation)
		}
		params.Page = page
	}
	if q.Has("q") {
		params.Query = q.Get("q")
	}
	if err := h.validate.Struct(params); err != nil {
		return sel, fmt.Errorf("%s: %w", err.Error(), httpx.ErrValidation)
	}
	branch, err := h.cfg.Catalog.Parse(params.Branch)
	switch {
	case err != nil && !q.Has("branch"):
		// A remembered branch may have left the catalogue since.
		branch, params.Page = reports.AllBranches, 1
	case err != nil:
		return sel, fmt.Errorf("%s: %w", err.Error(), httpx.ErrValidation)
	}
	return reports.Selection{Branch: branch, Page: params.Page, Query: params.Query}, nil
}

func (h *Handler) workspace(sess *shared.Session) *Workspace {
	return h.workspaces.Get(sess.ID, func() *reports.WindowProvider {
		if w, ok := restoreWindow(sess); ok {
			return reports.SeededWindowProvider(w)
		}
		return reports.NewWindowProvider(h.cfg.Store, h.cfg.Window, h.logger)
	})
}

// resolveWindow runs the session's single configuration read under the
// workspace context, so an aborted request cannot spend it. ctx only bounds
// how long the request waits.
func resolveWindow(ctx context.Context, ws *Workspace) error {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ws.Window().Resolve(ws.ctx)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) newView(def reports.Definition, window reports.WindowSource) *reports.View {
	return reports.NewView(def, reports.ViewDeps{
		Catalog:  h.cfg.Catalog,
		Window:   window,
		Executor: h.exec,
		Merger:   h.merger,
		PageSize: h.cfg.PageSize,
		Metrics:  h.cfg.Metrics,
		Logger:   h.logger.With(slog.String("report", def.Name)),
	})
}

func (h *Handler) persistWindow(sess *shared.Session, window reports.DateWindow) {
	if sess.Get(sessionWindowKey) != "" {
		return
	}
	data, err := json.Marshal(window)
	if err != nil {
		h.logger.Error("encode session window", slog.Any("error", err))
		return
	}
	sess.Set(sessionWindowKey, string(data))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrUnavailable):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("report request aborted", slog.Any("error", err))
	default:
		h.logger.Error("report request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func restoreWindow(sess *shared.Session) (reports.DateWindow, bool) {
	raw := sess.Get(sessionWindowKey)
	if raw == "" {
		return reports.DateWindow{}, false
	}
	var w reports.DateWindow
	if err := json.Unmarshal([]byte(raw), &w); err != nil || w.Start.After(w.End) {
		return reports.DateWindow{}, false
	}
	return w, true
}

func selectionKey(report string) string {
	return "reports." + report + ".selection"
}

func restoreSelection(sess *shared.Session, report string) reports.Selection {
	sel := reports.Selection{Branch: reports.AllBranches, Page: 1}
	if raw := sess.Get(selectionKey(report)); raw != "" {
		_ = json.Unmarshal([]byte(raw), &sel)
	}
	return sel
}

func persistSelection(sess *shared.Session, report string, sel reports.Selection) {
	data, err := json.Marshal(sel)
	if err != nil {
		return
	}
	sess.Set(selectionKey(report), string(data))
}

func wantStatus(q url.Values) bool {
	on, _ := strconv.ParseBool(q.Get("status"))
	return on
}

func statusFor(s reports.Status) *statusBody {
	body := &statusBody{Degraded: s.IsDegraded(), Causes: make([]causeBody, 0, len(s.Causes))}
	for _, c := range s.Causes {
		body.Causes = append(body.Causes, causeBody{Kind: c.Kind, Branch: c.Branch, Error: c.Err.Error()})
	}
	return body
}
