package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablero-sucursales/tablero/internal/observability"
	"github.com/tablero-sucursales/tablero/internal/reports"
	reporthttp "github.com/tablero-sucursales/tablero/internal/reports/http"
	"github.com/tablero-sucursales/tablero/internal/reports/memstore"
	"github.com/tablero-sucursales/tablero/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}
	catalog, err := reports.NewCatalog([]string{"centro", "norte"})
	require.NoError(t, err)
	store := memstore.New()
	memstore.SeedDemo(store, "configuracion", catalog.Branches(), time.Now())
	metrics := observability.NewMetrics()

	reportHandler := reporthttp.NewHandler(logger, reporthttp.Config{
		Catalog:  catalog,
		Registry: reports.NewRegistry(reports.Cortes(), reports.Salidas(), reports.Kardex("VENTA")),
		Store:    store,
		Window:   reports.WindowConfig{Table: "configuracion", StartField: "fecha_inicio", EndField: "fecha_fin"},
		PageSize: 10,
		Fanout:   2,
		Metrics:  metrics,
	}, reporthttp.NewWorkspaces(time.Hour))

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: shared.NewSessionManager(client, "tablero_session", "secret", time.Hour, false),
		ReportHandler:  reportHandler,
		Metrics:        metrics,
	}), mr
}

func TestRouterHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterReportSetsSessionCookie(t *testing.T) {
	router, mr := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports/cortes?branch=centro", nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tablero_session", cookies[0].Name)

	stored, err := mr.Get("tablero:session:" + cookies[0].Value)
	require.NoError(t, err)
	assert.Contains(t, stored, "reports.window")
	assert.Contains(t, stored, "reports.cortes.selection")

	metrics := httptest.NewRecorder()
	router.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(metrics.Body.String(), `tablero_http_requests_total{code="200",route="/reports/{report}"} 1`), metrics.Body.String())
}
