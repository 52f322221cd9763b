package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magalhaes24/scout/internal/config"
	"github.com/Magalhaes24/scout/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(testCollector(&mockRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	// Let it start then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Run returned.
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(testCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, 5*time.Minute, checker.Interval())

	checker = NewChecker(testCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{
		CheckIntervalSecs: 30,
	})
	assert.Equal(t, 30*time.Second, checker.Interval())
}

func TestChecker_RunCancelledSkipsCheck(t *testing.T) {
	st := &mockRuns{}
	checker := NewChecker(testCollector(st), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Zero(t, st.filter.Limit)
}

func TestChecker_RunChecksImmediately(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	st := &mockRuns{runs: []model.Run{
		{ID: "3", Status: model.RunStatusFailed, StartedAt: collectNow.Add(-time.Hour)},
		{ID: "2", Status: model.RunStatusFailed, StartedAt: collectNow.Add(-2 * time.Hour)},
		{ID: "1", Status: model.RunStatusFailed, StartedAt: collectNow.Add(-3 * time.Hour)},
	}}
	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		FailureRateThreshold: 0.5,
		LookbackWindowHours:  24,
		CheckIntervalSecs:    3600,
	}
	checker := NewChecker(testCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return received.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	st := &mockRuns{runs: []model.Run{
		{ID: "3", Status: model.RunStatusFailed, StartedAt: collectNow.Add(-time.Hour)},
		{ID: "2", Status: model.RunStatusFailed, StartedAt: collectNow.Add(-2 * time.Hour)},
		{ID: "1", Status: model.RunStatusComplete, StartedAt: collectNow.Add(-3 * time.Hour)},
	}}
	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		FailureRateThreshold: 0.5,
		LookbackWindowHours:  24,
	}

	alerts := NewChecker(testCollector(st), NewAlerter(cfg), cfg).Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{FailureRateThreshold: 0.5}
	checker := NewChecker(testCollector(&mockRuns{listErr: errors.New("db down")}), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.Check(context.Background()))
}
