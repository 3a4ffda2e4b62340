package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablero-sucursales/tablero/internal/platform/db"
	"github.com/tablero-sucursales/tablero/internal/reports"
	"github.com/tablero-sucursales/tablero/internal/reports/memstore"
	"github.com/tablero-sucursales/tablero/internal/reports/pgstore"
)

// Backend bundles the report pipeline configuration shared by the server and
// the worker.
type Backend struct {
	Store    reports.Store
	Pool     *pgxpool.Pool
	Catalog  *reports.Catalog
	Registry *reports.Registry
	Window   reports.WindowConfig
}

// OpenBackend connects the report store. With DEMO_SEED the store lives in
// memory and Pool stays nil.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	catalog, err := reports.NewCatalog(cfg.Branches)
	if err != nil {
		return nil, fmt.Errorf("app: branch catalogue: %w", err)
	}
	b := &Backend{
		Catalog:  catalog,
		Registry: reports.NewRegistry(reports.Cortes(), reports.Salidas(), reports.Kardex(cfg.ReportKardexType)),
		Window: reports.WindowConfig{
			Table:      cfg.ReportConfigTable,
			StartField: cfg.ReportWindowStartField,
			EndField:   cfg.ReportWindowEndField,
		},
	}
	if cfg.DemoSeed {
		store := memstore.New()
		memstore.SeedDemo(store, cfg.ReportConfigTable, catalog.Branches(), time.Now())
		logger.Warn("serving seeded in-memory demo data", slog.Int("branches", len(catalog.Branches())))
		b.Store = store
		return b, nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}
	b.Pool = pool
	b.Store = pgstore.New(pool)
	return b, nil
}

// Close releases the database pool, if any.
func (b *Backend) Close() {
	if b != nil && b.Pool != nil {
		b.Pool.Close()
	}
}
