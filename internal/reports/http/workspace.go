package reporthttp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tablero-sucursales/tablero/internal/reports"
)

// Workspace holds one session's date window and report views.
type Workspace struct {
	ctx    context.Context
	cancel context.CancelFunc
	window *reports.WindowProvider

	mu       sync.Mutex
	views    map[string]*reports.View
	lastSeen time.Time
}

// Window exposes the session's window provider.
func (w *Workspace) Window() *reports.WindowProvider {
	return w.window
}

// view returns the view for def, creating it on first use. created reports
// whether the caller must mount it.
func (w *Workspace) view(def reports.Definition, build func(reports.Definition, reports.WindowSource) *reports.View) (*reports.View, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.views[def.Name]; ok {
		return v, false
	}
	v := build(def, w.window)
	w.views[def.Name] = v
	return v, true
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Workspaces keeps per-session state in memory, keyed by session id.
type Workspaces struct {
	idle  time.Duration
	now   func() time.Time
	group singleflight.Group

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaces builds a registry evicting sessions idle for longer than idle.
func NewWorkspaces(idle time.Duration) *Workspaces {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Workspaces{idle: idle, now: time.Now, items: make(map[string]*Workspace)}
}

// Get returns the workspace for a session. newWindow runs once per session
// (concurrent first requests share it) and supplies the session's window.
func (ws *Workspaces) Get(sessionID string, newWindow func() *reports.WindowProvider) *Workspace {
	now := ws.now()
	if w := ws.lookup(sessionID); w != nil {
		w.touch(now)
		return w
	}
	v, _, _ := ws.group.Do(sessionID, func() (any, error) {
		if w := ws.lookup(sessionID); w != nil {
			return w, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		w := &Workspace{
			ctx:      ctx,
			cancel:   cancel,
			window:   newWindow(),
			views:    make(map[string]*reports.View),
			lastSeen: now,
		}
		ws.mu.Lock()
		ws.items[sessionID] = w
		ws.mu.Unlock()
		return w, nil
	})
	w := v.(*Workspace)
	w.touch(now)
	return w
}

func (ws *Workspaces) lookup(sessionID string) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.items[sessionID]
}

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.items)
}

// Sweep drops workspaces idle for longer than the configured limit and
// cancels their pending mounts.
func (ws *Workspaces) Sweep() int {
	cutoff := ws.now().Add(-ws.idle)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	evicted := 0
	for id, w := range ws.items {
		if w.idleSince().Before(cutoff) {
			w.cancel()
			delete(ws.items, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps on every tick until ctx ends.
func (ws *Workspaces) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.Sweep()
		}
	}
}
