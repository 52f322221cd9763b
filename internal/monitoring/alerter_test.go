package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magalhaes24/scout/internal/config"
)

func testAlerter(webhook string) *Alerter {
	return NewAlerter(config.MonitoringConfig{
		WebhookURL:           webhook,
		FailureRateThreshold: 0.5,
		ErrorRateThreshold:   0.25,
	})
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	snap := &MetricsSnapshot{
		RunsTotal:     10,
		RunsComplete:  9,
		RunsFailed:    1,
		RunFailRate:   0.1,
		RowsProcessed: 500,
		RowsErrored:   10,
		RowErrorRate:  0.02,
		LookbackHours: 24,
	}

	assert.Empty(t, testAlerter("").Evaluate(snap))
}

func TestAlerter_Evaluate_RunFailureRate(t *testing.T) {
	snap := &MetricsSnapshot{
		RunsTotal:     5,
		RunsComplete:  1,
		RunsCancelled: 1,
		RunsFailed:    3,
		RunFailRate:   0.6,
		LookbackHours: 24,
	}

	alerts := testAlerter("").Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "60.0%")
	assert.Equal(t, 5, alerts[0].Details["finished"])
}

func TestAlerter_Evaluate_RowErrorRate(t *testing.T) {
	snap := &MetricsSnapshot{
		RunsTotal:     1,
		RunsComplete:  1,
		RowsProcessed: 100,
		RowsErrored:   40,
		RowErrorRate:  0.4,
		FallbackShare: 0.9,
		LookbackHours: 24,
	}

	alerts := testAlerter("").Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRowErrorRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40 errored / 100 rows")
	assert.Equal(t, 0.9, alerts[0].Details["fallback_share"])
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	snap := &MetricsSnapshot{
		RunsComplete:  1,
		RunsFailed:    3,
		RunFailRate:   0.75,
		RowsProcessed: 50,
		RowsErrored:   25,
		RowErrorRate:  0.5,
		LookbackHours: 24,
	}

	alerts := testAlerter("").Evaluate(snap)
	require.Len(t, alerts, 2)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertRunFailureRate])
	assert.True(t, types[AlertRowErrorRate])
}

func TestAlerter_Evaluate_MinimumSamplesRequired(t *testing.T) {
	// Two finished runs and ten rows are below the minimum sample sizes.
	snap := &MetricsSnapshot{
		RunsComplete:  1,
		RunsFailed:    1,
		RunFailRate:   0.5001,
		RowsProcessed: 10,
		RowsErrored:   10,
		RowErrorRate:  1,
		LookbackHours: 24,
	}

	assert.Empty(t, testAlerter("").Evaluate(snap))
}

func TestAlerter_Evaluate_ZeroThresholdDisables(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		RunsFailed:    10,
		RunFailRate:   1,
		RowsProcessed: 100,
		RowsErrored:   100,
		RowErrorRate:  1,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	alerts := []Alert{
		{Type: AlertRunFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertRowErrorRate, Severity: "medium", Message: "test alert 2"},
	}

	sent := testAlerter(ts.URL).SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	sent := testAlerter("").SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	sent := testAlerter("http://example.com").SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	alerts := []Alert{
		{Type: AlertRunFailureRate, Message: "test"},
	}

	sent := testAlerter(ts.URL).SendAlerts(context.Background(), alerts)
	assert.Equal(t, 0, sent)
}
