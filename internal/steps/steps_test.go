package steps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Integrator/internal/telemetry"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())

	r.Register(NewWaitStep())
	assert.Equal(t, 1, r.Count())

	step, err := r.Get("wait")
	require.NoError(t, err)
	assert.Equal(t, "wait", step.ID())

	_, err = r.Get("unknown")
	assert.ErrorIs(t, err, ErrStepNotFound)

	assert.True(t, r.Has("wait"))
	assert.False(t, r.Has("unknown"))
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(Deps{Logger: telemetry.Discard()})

	assert.Equal(t, []string{"fe-integration", "wait", "webhook"}, r.IDs())
}

// Webhook Step Tests

func TestWebhookStep_Execute(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer xxx", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var logs []string
	req := NewRequest("web", "release", map[string]any{
		"url":     srv.URL,
		"message": "integration done",
		"headers": map[string]any{"Authorization": "Bearer xxx"},
	}, func(_ context.Context, msg string) error {
		logs = append(logs, msg)
		return nil
	})

	step := NewWebhookStep(nil)
	require.NoError(t, step.Validate(req))
	require.NoError(t, step.Execute(context.Background(), req))

	assert.Equal(t, webhookPayload{Product: "web", ProcedureID: "release", Message: "integration done"}, got)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0], "Webhook delivered")
}

func TestWebhookStep_DefaultMessage(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	err := NewWebhookStep(nil).Execute(context.Background(), NewRequest("web", "release", map[string]any{"url": srv.URL}, nil))
	require.NoError(t, err)
	assert.Equal(t, "Procedure release for web", got.Message)
}

func TestWebhookStep_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	err := NewWebhookStep(nil).Execute(context.Background(), NewRequest("web", "release", map[string]any{"url": srv.URL}, nil))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Equal(t, "bad gateway", httpErr.Body)
}

func TestWebhookStep_Validate(t *testing.T) {
	step := NewWebhookStep(nil)

	err := step.Validate(NewRequest("web", "release", nil, nil))
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "url is required")

	err = step.Validate(NewRequest("web", "release", map[string]any{"url": "not a url"}, nil))
	assert.ErrorIs(t, err, ErrValidation)
}

// Wait Step Tests

func TestWaitStep_Execute(t *testing.T) {
	step := NewWaitStep()

	start := time.Now()
	err := step.Execute(context.Background(), NewRequest("web", "release", map[string]any{"durationMs": float64(50)}, nil))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitStep_Cancelled(t *testing.T) {
	step := NewWaitStep()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := step.Execute(ctx, NewRequest("web", "release", map[string]any{"durationSec": 10}, nil))
	assert.ErrorIs(t, err, ErrStepCancelled)
}

func TestWaitStep_Validate(t *testing.T) {
	step := NewWaitStep()

	tests := []struct {
		name   string
		params map[string]any
		ok     bool
	}{
		{name: "seconds", params: map[string]any{"durationSec": 5}, ok: true},
		{name: "millis", params: map[string]any{"durationMs": 500}, ok: true},
		{name: "missing", params: map[string]any{}},
		{name: "negative", params: map[string]any{"durationSec": -1}},
		{name: "too long", params: map[string]any{"durationSec": 7200}},
		{name: "max", params: map[string]any{"durationSec": 3600}, ok: true},
		{name: "overflowing seconds", params: map[string]any{"durationSec": 9223372037}},
		{name: "overflowing millis", params: map[string]any{"durationMs": 9223372036855}},
		{name: "wrong type", params: map[string]any{"durationSec": "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := step.Validate(NewRequest("web", "release", tt.params, nil))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

// YAML Tests

func TestRewritePackageInfo_KeepsNumericLookingVersionAsString(t *testing.T) {
	data := []byte("package:\n  name: portal\n  version: 1.0.0\n")

	out, err := rewritePackageInfo(data, packageInfo{Name: "portal", Version: "1.10"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `version: "1.10"`)

	info, err := parsePackageInfo(out)
	require.NoError(t, err)
	assert.Equal(t, "1.10", info.Version)
}

func TestRewritePackageInfo_ScopedNameStaysValid(t *testing.T) {
	tests := map[string]string{
		"quoted": "package:\n  name: \"@web/portal\"\n  version: 1.0.0\n",
		"plain":  "package:\n  name: portal\n  version: 1.0.0\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := rewritePackageInfo([]byte(doc), packageInfo{Name: "@scope/pkg", Version: "2.0.0"})
			require.NoError(t, err)

			info, err := parsePackageInfo(out)
			require.NoError(t, err, string(out))
			assert.Equal(t, packageInfo{Name: "@scope/pkg", Version: "2.0.0"}, info)
		})
	}
}

func TestParsePackageInfo_Missing(t *testing.T) {
	for _, doc := range []string{"", "package: portal\n", "package:\n  version: 1.0.0\n", "- a\n- b\n"} {
		_, err := parsePackageInfo([]byte(doc))
		assert.Error(t, err, doc)
	}
}
