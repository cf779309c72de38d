package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finchat/pkg/tools"
)

func TestBatchClientStartRun(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"runId": "run-1", "status": "started"})
	}))
	defer srv.Close()

	client := NewBatchClient(srv.URL, time.Second)
	resp, err := client.StartRun(context.Background(), "CCAR", "Base", "20243112", "default_group")
	require.NoError(t, err)

	assert.Equal(t, "POST /runs", gotPath)
	assert.Equal(t, "CCAR", gotBody["runType"])
	assert.Equal(t, "Base", gotBody["runScenario"])
	assert.Equal(t, "run-1", resp["runId"])
}

func TestBatchClientRunStatusAndKill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /runs/run-1":
			json.NewEncoder(w).Encode(map[string]any{"status": "RUNNING"})
		case "DELETE /runs/run-1":
			json.NewEncoder(w).Encode(map[string]any{"status": "KILLED"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewBatchClient(srv.URL, time.Second)

	status, err := client.RunStatus(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", status["status"])

	killed, err := client.KillRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "KILLED", killed["status"])
}

func TestBatchClientRunLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs/run-1/log", r.URL.Path)
		w.Write([]byte("step 1 ok\nstep 2 ok\n"))
	}))
	defer srv.Close()

	client := NewBatchClient(srv.URL, time.Second)
	log, err := client.RunLog(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Contains(t, log, "step 2 ok")
}

func TestBatchClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "run not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewBatchClient(srv.URL, time.Second)
	_, err := client.RunStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "run not found")
}

func TestResultsClientQueries(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{"downloadId": "dl-1", "link": "http://files/DS2.xlsx"})
	}))
	defer srv.Close()

	client := NewResultsClient(srv.URL, time.Second)

	resp, err := client.StressResults(context.Background(), "CCAR", "20243112", "Base")
	require.NoError(t, err)
	assert.Equal(t, "/stressResults", gotPath)
	assert.Contains(t, gotQuery, "runtype=CCAR")
	assert.Contains(t, gotQuery, "cob=20243112")
	assert.Contains(t, gotQuery, "scenario=Base")
	assert.Equal(t, "dl-1", resp["downloadId"])

	_, err = client.AllowanceResults(context.Background(), "CCAR", "20243112", "Base")
	require.NoError(t, err)
	assert.Equal(t, "/allowanceResults", gotPath)
}

func TestRegisterBatchToolsAppliesDefaults(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"runId": "run-1"})
	}))
	defer srv.Close()

	inv := tools.NewInvoker()
	require.NoError(t, RegisterBatchTools(inv, NewBatchClient(srv.URL, time.Second)))

	resp := inv.Execute(context.Background(), tools.ToolStartBatchRun,
		map[string]any{"runType": "Stress"})
	require.Equal(t, tools.StatusSuccess, resp.Status)

	assert.Equal(t, "Stress", gotBody["runType"])
	assert.Equal(t, "Base", gotBody["runScenario"])
	assert.Equal(t, "20243112", gotBody["cobDate"])
	assert.Equal(t, "default_group", gotBody["runGroup"])
}

func TestRegisterResultsTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"downloadId": "dl-2"})
	}))
	defer srv.Close()

	inv := tools.NewInvoker()
	require.NoError(t, RegisterResultsTools(inv, NewResultsClient(srv.URL, time.Second)))

	for _, name := range []string{tools.ToolGetStressResults, tools.ToolGetAllowanceResults} {
		resp := inv.Execute(context.Background(), name,
			map[string]any{"runtype": "CCAR", "cob": "20243112", "scenario": "Base"})
		require.Equal(t, tools.StatusSuccess, resp.Status, name)
	}
}

func TestToolHandlerReportsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	inv := tools.NewInvoker()
	require.NoError(t, RegisterBatchTools(inv, NewBatchClient(srv.URL, time.Second)))

	resp := inv.Execute(context.Background(), tools.ToolGetRunStatus,
		map[string]any{"runId": "run-1"})
	assert.Equal(t, tools.StatusError, resp.Status)
}
