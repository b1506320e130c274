package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/events"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/florch"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/metrics"
	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/model"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewPrometheus(registry, "")
	require.NoError(t, err)

	bus := events.NewEventBus()
	handler := NewHandler(hclog.NewNullLogger(), bus, collector)
	ts := httptest.NewServer(NewRouter(handler, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	t.Cleanup(func() {
		handler.StopAll()
		ts.Close()
	})

	return ts, handler
}

func startRequest(t *testing.T, rounds int) []byte {
	t.Helper()
	dir := t.TempDir()

	body := map[string]interface{}{
		"configuration": map[string]interface{}{
			"numClients":     3,
			"rounds":         rounds,
			"batchSize":      16,
			"learningRate":   0.1,
			"outputPath":     filepath.Join(dir, "global_model.json"),
			"metricsLogPath": filepath.Join(dir, "results.csv"),
			"model":          map[string]interface{}{"architecture": common.ARCHITECTURE_SOFTMAX},
			"dataset": map[string]interface{}{
				"synthetic": map[string]interface{}{
					"numSamples": 120, "numFeatures": 4, "numClasses": 3, "spread": 0.5, "seed": 5,
				},
			},
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return data
}

func post(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStartFlRunsToCompletion(t *testing.T) {
	ts, handler := newTestServer(t)

	resp := post(t, ts.URL+"/fl/start", startRequest(t, 2))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	started := StartFlResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.RunId)

	orch := handler.orchestrator(started.RunId)
	require.NotNil(t, orch)
	require.NoError(t, orch.Wait())

	resp = get(t, ts.URL+"/fl/status/"+started.RunId)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := florch.FlStatus{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "done", status.State)
	require.Equal(t, 2, status.CompletedRounds)

	resp = get(t, ts.URL+"/fl/history/"+started.RunId)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := []model.RoundRecord{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 2)
	require.Equal(t, 1, history[1].RoundIndex)

	resp = post(t, ts.URL+"/fl/stop/"+started.RunId, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = get(t, ts.URL+"/fl/runs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := []florch.FlStatus{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)

	resp = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "flsim_rounds_completed_total 2")
}

func TestStopFlEndsRun(t *testing.T) {
	ts, handler := newTestServer(t)

	resp := post(t, ts.URL+"/fl/start", startRequest(t, 100000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := StartFlResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	require.Eventually(t, func() bool {
		return handler.orchestrator(started.RunId).Status().CompletedRounds > 0
	}, 10*time.Second, 10*time.Millisecond)

	resp = post(t, ts.URL+"/fl/stop/"+started.RunId, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	orch := handler.orchestrator(started.RunId)
	require.NoError(t, orch.Wait())
	require.Equal(t, "done", orch.Status().State)
	require.Less(t, orch.Status().CompletedRounds, 100000)
}

func TestStartFlRejectsInvalidConfiguration(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := post(t, ts.URL+"/fl/start", []byte(`{"configuration": {"clientFraction": 1.5}}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, body := range []string{
		`{"configuration": {"numClients": 0}}`,
		`{"configuration": {"clientFraction": 0}}`,
		`{"configuration": {"rounds": 0}}`,
	} {
		resp = post(t, ts.URL+"/fl/start", []byte(body))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	resp = post(t, ts.URL+"/fl/start", []byte(`{"unknown": true}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/fl/start", []byte(`not json`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRunIsNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/fl/status/%s", "/fl/history/%s"} {
		resp := get(t, ts.URL+fmt.Sprintf(path, "missing"))
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp := post(t, ts.URL+"/fl/stop/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	errorResponse := ErrorResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errorResponse))
	require.True(t, strings.Contains(errorResponse.Message, "no run"))
}

func TestFinishedRunIsReleasedAndEvicted(t *testing.T) {
	ts, handler := newTestServer(t)
	handler.SetRunRetention(0)

	finished := make(chan events.Event, 1)
	handler.eventBus.Subscribe(common.FL_FINISHED_EVENT_TYPE, finished)

	resp := post(t, ts.URL+"/fl/start", startRequest(t, 1))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := StartFlResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	select {
	case event := <-finished:
		require.Equal(t, started.RunId, event.Data.(events.FlFinishedEvent).RunId)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}

	require.Eventually(t, func() bool {
		return handler.orchestrator(started.RunId) == nil
	}, 10*time.Second, 10*time.Millisecond)

	resp = get(t, ts.URL+"/fl/status/"+started.RunId)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFinishedRunStaysQueryableWithinRetention(t *testing.T) {
	ts, handler := newTestServer(t)

	resp := post(t, ts.URL+"/fl/start", startRequest(t, 1))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := StartFlResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	require.Eventually(t, func() bool {
		handler.mu.RLock()
		defer handler.mu.RUnlock()
		run := handler.runs[started.RunId]
		return run != nil && run.released && !run.finishedAt.IsZero()
	}, 10*time.Second, 10*time.Millisecond)

	handler.evictExpired(time.Now())
	require.NotNil(t, handler.orchestrator(started.RunId))

	handler.evictExpired(time.Now().Add(2 * DEFAULT_RUN_RETENTION))
	require.Nil(t, handler.orchestrator(started.RunId))
}
