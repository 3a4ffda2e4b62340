package reports

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DateWindow is the session-wide [Start, End] range every report query uses.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies inside the window, bounds included.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// WindowSource is what views need from the provider.
type WindowSource interface {
	Resolve(ctx context.Context)
	Window() (DateWindow, bool)
	Done() <-chan struct{}
}

// WindowConfig names the configuration record holding the window.
type WindowConfig struct {
	Table      string
	StartField string
	EndField   string
}

// WindowProvider fetches the date window once per session. A failed fetch leaves
// it pending for the rest of the session; there is no retry.
type WindowProvider struct {
	store  Store
	cfg    WindowConfig
	logger *slog.Logger

	once   sync.Once
	done   chan struct{}
	mu     sync.RWMutex
	window *DateWindow
	err    error
}

// NewWindowProvider builds a pending provider.
func NewWindowProvider(store Store, cfg WindowConfig, logger *slog.Logger) *WindowProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &WindowProvider{store: store, cfg: cfg, logger: logger, done: make(chan struct{})}
}

// SeededWindowProvider returns a provider that is already resolved, used when a
// session restores a window fetched earlier.
func SeededWindowProvider(w DateWindow) *WindowProvider {
	p := &WindowProvider{done: make(chan struct{}), logger: slog.Default()}
	p.once.Do(func() {
		p.window = &w
		close(p.done)
	})
	return p
}

// Resolve performs the single configuration read. Concurrent and repeated calls
// share the first attempt.
func (p *WindowProvider) Resolve(ctx context.Context) {
	p.once.Do(func() {
		w, err := p.fetch(ctx)
		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.err = fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
			p.logger.Error("resolve date window", slog.String("table", p.cfg.Table), slog.Any("error", err))
			return
		}
		p.window = &w
		close(p.done)
	})
}

// Window returns the resolved window, or false while pending.
func (p *WindowProvider) Window() (DateWindow, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.window == nil {
		return DateWindow{}, false
	}
	return *p.window, true
}

// Done is closed once the window resolves. It never closes after a failure.
func (p *WindowProvider) Done() <-chan struct{} {
	return p.done
}

// Err returns the failure that left the provider pending, if any.
func (p *WindowProvider) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *WindowProvider) fetch(ctx context.Context) (DateWindow, error) {
	record, err := p.store.QueryOne(ctx, p.cfg.Table)
	if err != nil {
		return DateWindow{}, err
	}
	start, err := parseWindowValue(record[p.cfg.StartField])
	if err != nil {
		return DateWindow{}, fmt.Errorf("field %s: %w", p.cfg.StartField, err)
	}
	end, err := parseWindowValue(record[p.cfg.EndField])
	if err != nil {
		return DateWindow{}, fmt.Errorf("field %s: %w", p.cfg.EndField, err)
	}
	if start.After(end) {
		return DateWindow{}, fmt.Errorf("start %s after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return DateWindow{Start: start, End: end}, nil
}

var windowLayouts = []string{time.RFC3339Nano, time.DateTime, "2006-01-02T15:04:05", time.DateOnly}

func parseWindowValue(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, fmt.Errorf("zero timestamp")
		}
		return val, nil
	case string:
		raw := strings.TrimSpace(val)
		for _, layout := range windowLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", val)
	case nil:
		return time.Time{}, fmt.Errorf("missing value")
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
}
