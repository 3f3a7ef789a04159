package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/aicomply/internal/domain"
)

func TestScriptedReplaysSequence(t *testing.T) {
	be := NewScripted(
		Invoke(domain.ToolInvocation{Name: "query_decision_log", Args: map[string]any{"start_date": "2026-02-16"}}),
		FinalJSON(map[string]any{"status": "PUBLISHED"}),
	)
	ctx := context.Background()
	transcript := domain.NewTranscript("run weekly bias monitoring", nil)

	reply, err := be.Send(ctx, transcript, nil)
	require.NoError(t, err)
	require.Len(t, reply.Invocations, 1)
	assert.Equal(t, "query_decision_log", reply.Invocations[0].Name)
	assert.NotEmpty(t, reply.Invocations[0].InvocationID)

	reply, err = be.Send(ctx, transcript, nil)
	require.NoError(t, err)
	assert.Empty(t, reply.Invocations)
	assert.JSONEq(t, `{"status":"PUBLISHED"}`, reply.Final)

	_, err = be.Send(ctx, transcript, nil)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestScriptedRepeatLast(t *testing.T) {
	be := NewScripted(Invoke(domain.ToolInvocation{Name: "check_annex_iii"}))
	be.RepeatLast = true
	ctx := context.Background()
	transcript := domain.NewTranscript("classify", nil)

	for i := 0; i < 5; i++ {
		reply, err := be.Send(ctx, transcript, nil)
		require.NoError(t, err)
		require.Len(t, reply.Invocations, 1)
	}
}

func TestScriptedStepSeesTranscript(t *testing.T) {
	be := NewScripted(func(tr *domain.Transcript) (*Reply, error) {
		task := tr.Task()
		require.NotNil(t, task)
		return &Reply{Invocations: []domain.ToolInvocation{{
			InvocationID: NewInvocationID(),
			Name:         "query_decision_log",
			Args:         map[string]any{"start_date": task.Params["period_start"]},
		}}}, nil
	})

	transcript := domain.NewTranscript("run", map[string]any{"period_start": "2026-02-16"})
	reply, err := be.Send(context.Background(), transcript, nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-16", reply.Invocations[0].Args["start_date"])
}

func TestProxySend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/respond", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tool_calls":[{"id":"ti_1","name":"check_annex_iii","args":{"system_purpose":"credit scoring"}}]}`))
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, "test-key", 5*time.Second, 0)
	reply, err := p.Send(context.Background(), domain.NewTranscript("classify", nil), []domain.ToolDefinition{
		{Name: "check_annex_iii", Description: "Annex III matching"},
	})
	require.NoError(t, err)
	require.Len(t, reply.Invocations, 1)
	assert.Equal(t, "ti_1", reply.Invocations[0].InvocationID)
	assert.Equal(t, "credit scoring", reply.Invocations[0].Args["system_purpose"])
}

func TestProxyFinalAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"final":"{\"risk_tier\":\"HIGH_RISK\"}"}`))
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, "", 5*time.Second, 0)
	reply, err := p.Send(context.Background(), domain.NewTranscript("classify", nil), nil)
	require.NoError(t, err)
	assert.Empty(t, reply.Invocations)
	assert.JSONEq(t, `{"risk_tier":"HIGH_RISK"}`, reply.Final)
}

func TestProxyServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, "", 5*time.Second, 0)
	_, err := p.Send(context.Background(), domain.NewTranscript("classify", nil), nil)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestProxyTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, "", 20*time.Millisecond, 0)
	_, err := p.Send(context.Background(), domain.NewTranscript("classify", nil), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackendTimeout), "timeout must map to ErrBackendTimeout, got %v", err)
}
