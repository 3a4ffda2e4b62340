package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tablero-sucursales/tablero/internal/jobs"
	"github.com/tablero-sucursales/tablero/internal/reports"
)

// BranchProbeJob fans every report out over the branch catalogue for the
// configured window and records which branches could not be read.
type BranchProbeJob struct {
	Registry *reports.Registry
	Catalog  *reports.Catalog
	Store    reports.Store
	Window   reports.WindowConfig
	Merger   *reports.Merger
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// ProbeResult summarises one run.
type ProbeResult struct {
	Window   reports.DateWindow
	Rows     map[string]int
	Degraded []reports.Cause
}

// NewBranchProbeJob wires dependencies for the probe handler.
func NewBranchProbeJob(registry *reports.Registry, catalog *reports.Catalog, store reports.Store, window reports.WindowConfig, merger *reports.Merger, logger *slog.Logger, metrics *jobmetrics.Metrics) *BranchProbeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &BranchProbeJob{
		Registry: registry,
		Catalog:  catalog,
		Store:    store,
		Window:   window,
		Merger:   merger,
		Logger:   logger,
		Metrics:  metrics,
	}
}

// Handle processes branch probe tasks.
func (j *BranchProbeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("branch probe: handler not configured")
	}
	var payload BranchProbePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("branch probe: decode payload: %w: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run executes one probe. A degraded branch is reported, not returned as an
// error; only an unresolvable window or bad payload fails the run.
func (j *BranchProbeJob) Run(ctx context.Context, payload BranchProbePayload) (result ProbeResult, err error) {
	tracker := j.Metrics.Track(TaskBranchProbe)
	defer func() {
		err = tracker.End(err)
	}()

	defs, err := j.definitions(payload.Reports)
	if err != nil {
		return ProbeResult{}, err
	}
	branches, err := j.branches(payload.Branches)
	if err != nil {
		return ProbeResult{}, err
	}

	provider := reports.NewWindowProvider(j.Store, j.Window, j.Logger)
	provider.Resolve(ctx)
	window, ok := provider.Window()
	if !ok {
		return ProbeResult{}, provider.Err()
	}

	result = ProbeResult{Window: window, Rows: make(map[string]int, len(defs))}
	for _, def := range defs {
		rows, status := j.Merger.QueryAll(ctx, def, branches, window, def.DefaultSort().Field)
		result.Rows[def.Name] = len(rows)
		for _, cause := range status.Causes {
			j.Metrics.AddDegraded(def.Name, cause.Branch.String())
			j.Logger.Warn("branch probe degraded",
				slog.String("report", def.Name),
				slog.String("branch", cause.Branch.String()),
				slog.Any("error", cause.Err),
			)
		}
		result.Degraded = append(result.Degraded, status.Causes...)
	}
	j.Logger.Info("branch probe finished",
		slog.Time("window_start", window.Start),
		slog.Time("window_end", window.End),
		slog.Int("reports", len(defs)),
		slog.Int("degraded", len(result.Degraded)),
	)
	return result, nil
}

func (j *BranchProbeJob) definitions(names []string) ([]reports.Definition, error) {
	if len(names) == 0 {
		return j.Registry.All(), nil
	}
	defs := make([]reports.Definition, 0, len(names))
	for _, name := range names {
		def, ok := j.Registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("branch probe: unknown report %q: %w", name, asynq.SkipRetry)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (j *BranchProbeJob) branches(raw []string) ([]reports.BranchID, error) {
	if len(raw) == 0 {
		return j.Catalog.Branches(), nil
	}
	out := make([]reports.BranchID, 0, len(raw))
	for _, r := range raw {
		id, err := j.Catalog.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("branch probe: %w: %w", err, asynq.SkipRetry)
		}
		out = append(out, j.Catalog.Expand(id)...)
	}
	return out, nil
}
