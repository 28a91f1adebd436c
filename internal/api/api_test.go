package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Integrator/internal/configstore"
	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/engine"
	"github.com/shaiso/Integrator/internal/repo"
	"github.com/shaiso/Integrator/internal/runmanager"
	"github.com/shaiso/Integrator/internal/telemetry"
)

type noopEngine struct{}

func (noopEngine) Execute(ctx context.Context, _ engine.Params, emit engine.LogFunc) error {
	return emit(ctx, "Execution completed successfully")
}

type fakeConfigs struct{}

func (fakeConfigs) GetProductList(context.Context) ([]domain.Product, error) {
	return []domain.Product{{ID: "shop", Name: "Shop"}, {ID: "wiki", Name: "Wiki"}}, nil
}

func (fakeConfigs) GetProcedureList(_ context.Context, product string) ([]domain.Procedure, error) {
	if product != "shop" {
		return nil, &configstore.NotFoundError{Kind: configstore.KindProduct, ID: product}
	}
	return []domain.Procedure{{
		ID:   "release",
		Name: "Release",
		Steps: []domain.Step{{
			ID:         "fe-integration",
			StepConfig: domain.StepConfig{Name: "FE integration"},
		}},
	}}, nil
}

type testServer struct {
	server  *httptest.Server
	manager *runmanager.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	manager := runmanager.New(runmanager.Config{
		Runs:      repo.NewMemoryRunStore(),
		Schedules: repo.NewMemoryScheduleStore(),
		Engine:    noopEngine{},
		Logger:    telemetry.Discard(),
	})
	t.Cleanup(func() { _ = manager.Stop(context.Background()) })

	h := NewHandler(Config{Runs: manager, Configs: fakeConfigs{}, Logger: telemetry.Discard()})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, manager: manager}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total *int            `json:"total"`
	Error *ErrorDetail    `json:"error"`
}

func (ts *testServer) post(t *testing.T, path, user string, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUser, user)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func triggerBody(product string) map[string]any {
	return map[string]any{
		"procedureId": "release",
		"product":     product,
		"stepParams": map[string]any{
			"fe-integration": map[string]any{"baselineBranch": "main", "targetBranch": "release/1"},
		},
	}
}

func TestManualTrigger(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.post(t, "/api/run-manage/manual_trigger", "alice", triggerBody("shop"))
	require.Equal(t, http.StatusOK, status)

	var run RunRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Equal(t, domain.TriggerTypeManual, run.TriggerType)
	assert.Equal(t, "alice", run.TriggerBy)
	assert.Equal(t, "shop", run.Input.Product())

	final, err := ts.manager.Wait(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, final.Status)

	status, env = ts.post(t, "/api/run-manage/get_run_record", "", map[string]any{"id": run.ID})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Contains(t, run.Log, "Execution completed successfully")
}

func TestManualTrigger_DefaultUser(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.post(t, "/api/run-manage/manual_trigger", "", triggerBody("shop"))
	require.Equal(t, http.StatusOK, status)

	var run RunRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, domain.DefaultActor, run.TriggerBy)
	_, err := ts.manager.Wait(context.Background(), run.ID)
	require.NoError(t, err)
}

func TestManualTrigger_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"missing product", triggerBody(""), "product is required"},
		{"missing step params", map[string]any{"procedureId": "release", "product": "shop"}, "stepParams is required"},
		{"invalid json", `{"procedureId":`, "invalid request body"},
		{"empty body", nil, "procedureId is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := ts.post(t, "/api/run-manage/manual_trigger", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, ErrCodeBadRequest, env.Error.Code)
			assert.Contains(t, env.Error.Message, tt.message)
		})
	}
}

func TestGetRunRecords(t *testing.T) {
	ts := newTestServer(t)

	for range 12 {
		status, env := ts.post(t, "/api/run-manage/manual_trigger", "", triggerBody("shop"))
		require.Equal(t, http.StatusOK, status)
		var run RunRecordResponse
		require.NoError(t, json.Unmarshal(env.Data, &run))
		_, err := ts.manager.Wait(context.Background(), run.ID)
		require.NoError(t, err)
	}

	status, env := ts.post(t, "/api/run-manage/get_run_records", "", map[string]any{"page": 2, "pageSize": 5})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Total)
	assert.Equal(t, 12, *env.Total)

	var runs []RunRecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, 5)

	// Пустое тело — страница по умолчанию.
	status, env = ts.post(t, "/api/run-manage/get_run_records", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, domain.DefaultPageSize)

	status, _ = ts.post(t, "/api/run-manage/get_run_records", "", map[string]any{"page": 0, "pageSize": 500})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetRunRecord_Errors(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.post(t, "/api/run-manage/get_run_record", "", map[string]any{"id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)

	status, env = ts.post(t, "/api/run-manage/get_run_record", "", map[string]any{"id": "42"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error.Message, "id must be a valid UUID")
}

func TestScheduleLifecycle(t *testing.T) {
	ts := newTestServer(t)

	body := triggerBody("shop")
	body["name"] = "nightly"
	body["description"] = "Nightly release"
	body["cronExpression"] = "0 2 * * *"

	status, env := ts.post(t, "/api/run-manage/create_schedule", "alice", body)
	require.Equal(t, http.StatusOK, status)

	var s ScheduleResponse
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.True(t, s.IsEnabled)
	assert.Equal(t, "alice", s.CreatedBy)
	require.NotNil(t, s.NextRunAt)
	assert.True(t, s.NextRunAt.After(time.Now().Add(-time.Minute)))
	assert.Equal(t, "release", s.Input.ProcedureID())

	// Обновление: input мержится, выключенное расписание без nextRunAt.
	status, env = ts.post(t, "/api/run-manage/update_schedule", "bob", map[string]any{
		"id":        s.ID,
		"isEnabled": false,
		"input":     map[string]any{"product": "wiki"},
	})
	require.Equal(t, http.StatusOK, status)

	var updated ScheduleResponse
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.False(t, updated.IsEnabled)
	assert.Nil(t, updated.NextRunAt)
	assert.Equal(t, "wiki", updated.Input.Product())
	assert.Equal(t, "release", updated.Input.ProcedureID())
	assert.Equal(t, "bob", updated.UpdatedBy)
	assert.Equal(t, "alice", updated.CreatedBy)

	status, env = ts.post(t, "/api/run-manage/get_schedules", "", PageRequest{Page: 1, PageSize: 10})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, *env.Total)

	status, env = ts.post(t, "/api/run-manage/get_schedule", "", map[string]any{"id": s.ID})
	require.Equal(t, http.StatusOK, status)

	status, env = ts.post(t, "/api/run-manage/delete_schedule", "", map[string]any{"id": s.ID})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success": true}`, string(env.Data))

	status, _ = ts.post(t, "/api/run-manage/delete_schedule", "", map[string]any{"id": s.ID})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateSchedule_Invalid(t *testing.T) {
	ts := newTestServer(t)

	body := triggerBody("shop")
	body["name"] = "nightly"
	body["cronExpression"] = "every night"

	status, env := ts.post(t, "/api/run-manage/create_schedule", "", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error.Message, "invalid cron expression")

	delete(body, "name")
	status, env = ts.post(t, "/api/run-manage/create_schedule", "", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error.Message, "name is required")
}

func TestBusinessConfig(t *testing.T) {
	ts := newTestServer(t)

	status, env := ts.post(t, "/api/business-config/get_product_list", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"id":"shop","name":"Shop"},{"id":"wiki","name":"Wiki"}]`, string(env.Data))

	status, env = ts.post(t, "/api/business-config/get_procedure_list", "", map[string]any{"product": "shop"})
	require.Equal(t, http.StatusOK, status)

	var procedures []domain.Procedure
	require.NoError(t, json.Unmarshal(env.Data, &procedures))
	require.Len(t, procedures, 1)
	require.Len(t, procedures[0].Steps, 1)
	assert.Equal(t, "fe-integration", procedures[0].Steps[0].ID)
	assert.Equal(t, "FE integration", procedures[0].Steps[0].Name)

	status, _ = ts.post(t, "/api/business-config/get_procedure_list", "", map[string]any{"product": "unknown"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.post(t, "/api/business-config/get_procedure_list", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp2, err := http.Get(ts.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(ts.server.URL + "/api/run-manage/get_run_records")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(Recovery(telemetry.Discard()), Logging(telemetry.Discard()))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(ErrCodeInternalError))
}
