package reporthttp

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tablero-sucursales/tablero/internal/platform/httpx"
	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/internal/reports/export"
)

var csvPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	def, snap, err := h.render(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if snap.State != reports.StateReady {
		h.respondError(w, fmt.Errorf("report %s is waiting for its date window: %w", def.Name, httpx.ErrUnavailable))
		return
	}

	buf := csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		csvPool.Put(buf)
	}()

	if err := export.WriteRowsCSV(buf, def.Columns, snap.Page.Rows); err != nil {
		h.respondError(w, fmt.Errorf("write %s csv: %w", def.Name, err))
		return
	}
	if snap.Totals != nil {
		buf.WriteString("\n")
		if err := export.WriteTotalsCSV(buf, *snap.Totals); err != nil {
			h.respondError(w, fmt.Errorf("write %s totals csv: %w", def.Name, err))
			return
		}
	}

	filename := fmt.Sprintf("%s-%s-%s.csv", def.Name, snap.Selection.Branch, snap.Window.Start.Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.String("report", def.Name), slog.Any("error", err))
	}
}
