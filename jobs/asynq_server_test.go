package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

type stubEnqueuer struct {
	got BranchProbePayload
}

func (s *stubEnqueuer) EnqueueBranchProbe(_ context.Context, p BranchProbePayload) (*asynq.TaskInfo, error) {
	s.got = p
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestJobsHealth(t *testing.T) {
	rr := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1}}, nil, nil), http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":1,"failed":0}`, rr.Body.String())

	rr = serve(NewHandler(stubInspector{err: errors.New("redis down")}, nil, nil), http.MethodGet, "/jobs/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serve(NewHandler(nil, nil, nil), http.MethodGet, "/jobs/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestJobsProbeEnqueues(t *testing.T) {
	enq := &stubEnqueuer{}
	rr := serve(NewHandler(nil, enq, nil), http.MethodPost, "/jobs/probe", `{"reports":["cortes"]}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"cortes"}, enq.got.Reports)

	rr = serve(NewHandler(nil, enq, nil), http.MethodPost, "/jobs/probe", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(NewHandler(nil, nil, nil), http.MethodPost, "/jobs/probe", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
