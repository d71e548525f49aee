package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cwbudde/soilfit/internal/fit"
	"github.com/cwbudde/soilfit/internal/server"
)

func statusServer(t *testing.T) *httptest.Server {
	t.Helper()
	job := server.Job{
		ID:        "job-1",
		State:     server.StateCompleted,
		Method:    "powell",
		Completed: 10,
		Total:     10,
		Best:      &fit.Trial{Params: fit.Params{P1: 100, P2: 300, H1: 5}, MSE: 0.25},
		Result:    &fit.Result{Params: fit.Params{P1: 100, P2: 300, H1: 5}, MSE: 0.25, Method: "powell"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]server.Job{job})
	})
	mux.HandleFunc("/api/v1/jobs/job-1/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobStatus{Job: job, Elapsed: 1.5})
	})
	mux.HandleFunc("/api/v1/jobs/missing/status", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Job not found", http.StatusNotFound)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestListJobs(t *testing.T) {
	ts := statusServer(t)

	var buf bytes.Buffer
	if err := listJobs(&buf, ts.URL+"/api/v1/jobs"); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"Found 1 job(s)", "Job ID: job-1", "State: completed", "Progress: 10/10 starts", "Best MSE: 0.25"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestGetJobStatus(t *testing.T) {
	ts := statusServer(t)

	var buf bytes.Buffer
	if err := getJobStatus(&buf, ts.URL+"/api/v1/jobs/job-1/status", "job-1"); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"Job: job-1", "Method: powell", "Elapsed: 1.5s", "Resistivity p2 [ohms.m]: 300.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	err := getJobStatus(&buf, ts.URL+"/api/v1/jobs/missing/status", "missing")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("Expected job not found, got %v", err)
	}
}
