package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupsync/internal/domain"
	"groupsync/internal/middleware"
)

type mockRunStore struct {
	SaveReportFunc func(ctx context.Context, report *domain.SyncReport) error
	ListRunsFunc   func(ctx context.Context, limit int) ([]domain.RunSummary, error)
	GetRunFunc     func(ctx context.Context, runID string) (*domain.SyncReport, error)
}

func (m *mockRunStore) SaveReport(ctx context.Context, report *domain.SyncReport) error {
	if m.SaveReportFunc == nil {
		panic("unexpected call to RunStore.SaveReport")
	}
	return m.SaveReportFunc(ctx, report)
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if m.ListRunsFunc == nil {
		panic("unexpected call to RunStore.ListRuns")
	}
	return m.ListRunsFunc(ctx, limit)
}

func (m *mockRunStore) GetRun(ctx context.Context, runID string) (*domain.SyncReport, error) {
	if m.GetRunFunc == nil {
		panic("unexpected call to RunStore.GetRun")
	}
	return m.GetRunFunc(ctx, runID)
}

type fakeReloader struct {
	err    error
	called int
}

func (f *fakeReloader) Reload(context.Context) error {
	f.called++
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(store domain.RunStore, jobsPath string, reloader ScheduleReloader, validator middleware.JWTValidator) http.Handler {
	h := NewHandler(store, jobsPath, reloader, testLogger())
	return NewRouter(h, RouterOptions{
		Validator:          validator,
		CORSAllowedOrigins: []string{"*"},
	})
}

func doGet(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth_Public(t *testing.T) {
	t.Parallel()

	validator, err := middleware.NewHS256Validator("secret")
	require.NoError(t, err)
	handler := testRouter(&mockRunStore{}, "", nil, validator)

	rec := doGet(handler, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	store := &mockRunStore{
		ListRunsFunc: func(_ context.Context, limit int) ([]domain.RunSummary, error) {
			return []domain.RunSummary{
				{RunID: "run-2", TargetGroup: "T", Added: 3, StartedAt: now, FinishedAt: now},
				{RunID: "run-1", TargetGroup: "T", Failed: 1, StartedAt: now.Add(-time.Hour), FinishedAt: now},
			}, nil
		},
	}
	handler := testRouter(store, "", nil, nil)

	rec := doGet(handler, "/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	runs, ok := decodeBody(t, rec)["runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 2)

	first, ok := runs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-2", first["run_id"])
	assert.Equal(t, float64(3), first["added"])
}

func TestListRuns_LimitParam(t *testing.T) {
	t.Parallel()

	var gotLimit int
	store := &mockRunStore{
		ListRunsFunc: func(_ context.Context, limit int) ([]domain.RunSummary, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	handler := testRouter(store, "", nil, nil)

	rec := doGet(handler, "/v1/runs?limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)

	doGet(handler, "/v1/runs")
	assert.Equal(t, 50, gotLimit, "limit defaults to 50")
}

func TestListRuns_BadLimit(t *testing.T) {
	t.Parallel()

	handler := testRouter(&mockRunStore{}, "", nil, nil)

	for _, q := range []string{"banana", "-1", "0"} {
		rec := doGet(handler, "/v1/runs?limit="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", q)
		assert.Equal(t, float64(400), decodeBody(t, rec)["code"])
	}
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	store := &mockRunStore{
		GetRunFunc: func(_ context.Context, runID string) (*domain.SyncReport, error) {
			require.Equal(t, "run-1", runID)
			r := &domain.SyncReport{RunID: "run-1", TargetGroup: "T"}
			r.Record(domain.MemberResult{PrincipalID: "u-1", Operation: domain.OpAdd, Outcome: domain.OutcomeAdded})
			return r, nil
		},
	}
	handler := testRouter(store, "", nil, nil)

	rec := doGet(handler, "/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "run-1", body["run_id"])
	members, ok := body["members"].([]any)
	require.True(t, ok)
	assert.Len(t, members, 1)
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()

	store := &mockRunStore{
		GetRunFunc: func(_ context.Context, runID string) (*domain.SyncReport, error) {
			return nil, domain.ErrNotFound("run %q not found", runID)
		},
	}
	handler := testRouter(store, "", nil, nil)

	rec := doGet(handler, "/v1/runs/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ghost")
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  - name: nightly
    schedule: "0 2 * * *"
    groups: [Sales]
    target: T
    mode: users
`), 0644))

	handler := testRouter(&mockRunStore{}, path, nil, nil)

	rec := doGet(handler, "/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs, ok := decodeBody(t, rec)["jobs"].([]any)
	require.True(t, ok)
	require.Len(t, jobs, 1)

	job, ok := jobs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "nightly", job["name"])
	assert.Equal(t, true, job["clear"], "clear defaults to true")
}

func TestListJobs_NoFileConfigured(t *testing.T) {
	t.Parallel()

	handler := testRouter(&mockRunStore{}, "", nil, nil)

	rec := doGet(handler, "/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs, ok := decodeBody(t, rec)["jobs"].([]any)
	require.True(t, ok)
	assert.Empty(t, jobs)
}

func TestReloadSchedule(t *testing.T) {
	t.Parallel()

	reloader := &fakeReloader{}
	handler := testRouter(&mockRunStore{}, "", reloader, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/schedule/reload", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, reloader.called)
}

func TestReloadSchedule_NoScheduler(t *testing.T) {
	t.Parallel()

	handler := testRouter(&mockRunStore{}, "", nil, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/schedule/reload", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code, "route is absent without a scheduler")
}

func TestAuth_Enforced(t *testing.T) {
	t.Parallel()

	validator, err := middleware.NewHS256Validator("secret")
	require.NoError(t, err)
	store := &mockRunStore{
		ListRunsFunc: func(context.Context, int) ([]domain.RunSummary, error) { return nil, nil },
	}
	handler := testRouter(store, "", nil, validator)

	rec := doGet(handler, "/v1/runs")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops-bot",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	handler := testRouter(&mockRunStore{}, "", nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/runs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
