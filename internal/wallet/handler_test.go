package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPassRouter(t *testing.T) http.Handler {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewStaticCards(demoCard), NewBuilder(testTemplate(t), testSigner(t), Options{}))
	r := chi.NewRouter()
	r.Route("/wallet", h.MountRoutes)
	return r
}

func TestHandlePassSuccess(t *testing.T) {
	router := newPassRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/wallet/pass?passTypeIdentifier=pass.com.tablero.tarjeta&serialNumber=0001", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/vnd.apple.pkpass", rr.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=tarjeta-0001.pkpass", rr.Header().Get("Content-Disposition"))
	files := unzip(t, rr.Body.Bytes())
	assert.Contains(t, files, "signature")
}

func TestHandlePassFailuresAre500(t *testing.T) {
	router := newPassRouter(t)
	cases := map[string]string{
		"missing serial": "/wallet/pass?passTypeIdentifier=pass.com.tablero.tarjeta",
		"missing type":   "/wallet/pass?serialNumber=0001",
		"unknown card":   "/wallet/pass?passTypeIdentifier=pass.com.tablero.tarjeta&serialNumber=9999",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))

			require.Equal(t, http.StatusInternalServerError, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["detail"])
		})
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		default:
			if s, ok := d.(interface{ Scan(any) error }); ok {
				if err := s.Scan(r.values[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	sql  string
	args []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestPGCardSource(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{"0001", "CLIENTE DEMO", int64(120), "centro"}}}
	src := NewPGCardSource(q, "public.tarjetas")

	card, err := src.Card(context.Background(), "0001")
	require.NoError(t, err)
	assert.Equal(t, demoCard, card)
	assert.Equal(t, `SELECT id::text, nombre, puntos, sucursal FROM "public"."tarjetas" WHERE id::text = $1`, q.sql)
	assert.Equal(t, []any{"0001"}, q.args)

	q.row = fakeRow{err: pgx.ErrNoRows}
	_, err = src.Card(context.Background(), "0002")
	assert.ErrorIs(t, err, ErrCardNotFound)

	q.row = fakeRow{err: errors.New("conn closed")}
	_, err = src.Card(context.Background(), "0003")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCardNotFound)
}
