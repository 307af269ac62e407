package jobs

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/load-tester-api/internal/config"
	"github.com/load-tester-api/internal/storage"
	"github.com/load-tester-api/internal/types"
)

func testEngineConfig() config.EngineConfig {
	var cfg config.Config
	cfg.ApplyDefaults()
	cfg.Engine.RandomSeed = 42
	return cfg.Engine
}

func waitFinished(t *testing.T, m *Manager, id string) types.JobRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := m.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		switch record.Status {
		case types.JobCompleted, types.JobCancelled, types.JobFailed:
			return record
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return types.JobRecord{}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(nil, nil, testEngineConfig(), 0)
	defer m.Close()

	id, err := m.Submit(Submission{
		TargetURL:   srv.URL,
		NumRequests: 10,
		NumWorkers:  2,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	record := waitFinished(t, m, id)
	if record.Status != types.JobCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", record.Status, record.Error)
	}
	if record.StartedAt == nil || record.FinishedAt == nil {
		t.Error("started/finished timestamps not set")
	}

	report, ok := m.Results(id)
	if !ok {
		t.Fatal("Results not available after completion")
	}
	if report.Completed != 10 {
		t.Errorf("Completed = %d, want 10", report.Completed)
	}
	tr, ok := report.Targets[srv.URL]
	if !ok || tr.Succeeded != 10 {
		t.Errorf("target report = %+v", tr)
	}

	logs, cursor, ok := m.Logs(id, 0)
	if !ok || len(logs) == 0 {
		t.Fatal("expected log entries")
	}
	if cursor != len(logs) {
		t.Errorf("cursor = %d, want %d", cursor, len(logs))
	}
	// A second read from the cursor returns only what came after.
	more, cursor2, _ := m.Logs(id, cursor)
	if len(more) != 0 || cursor2 != cursor {
		t.Errorf("incremental read after end = %d entries, cursor %d", len(more), cursor2)
	}
}

func TestSubmitValidation(t *testing.T) {
	m := NewManager(nil, nil, testEngineConfig(), 0)
	defer m.Close()

	if _, err := m.Submit(Submission{}); err == nil {
		t.Error("expected error without url or url_list")
	}
	if _, err := m.Submit(Submission{TargetURL: "example.com", Method: "DELETE"}); err == nil {
		t.Error("expected error for unsupported method")
	}
	if _, err := m.Submit(Submission{TargetURL: "example.com", NumRequests: 1 << 30}); err == nil {
		t.Error("expected error above the request ceiling")
	}
	if _, err := m.Submit(Submission{TargetURL: "example.com", NumWorkers: 1 << 20}); err == nil {
		t.Error("expected error above the worker ceiling")
	}
}

func TestSubmitInvalidTargetFailsJob(t *testing.T) {
	m := NewManager(nil, nil, testEngineConfig(), 0)
	defer m.Close()

	id, err := m.Submit(Submission{TargetURL: "https://", NumRequests: 5, NumWorkers: 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	record := waitFinished(t, m, id)
	if record.Status != types.JobFailed {
		t.Errorf("status = %s, want failed", record.Status)
	}
	if record.Error == "" {
		t.Error("expected an error message on the failed record")
	}
	if _, ok := m.Results(id); ok {
		t.Error("failed job must not expose results")
	}
}

func TestCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(nil, nil, testEngineConfig(), 0)
	defer m.Close()

	id, err := m.Submit(Submission{TargetURL: srv.URL, NumRequests: 500, NumWorkers: 2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Give the job a moment to leave pending, then cancel.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := m.Cancel(id); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("could not cancel running job")
		}
		time.Sleep(10 * time.Millisecond)
	}

	record := waitFinished(t, m, id)
	if record.Status != types.JobCancelled {
		t.Errorf("status = %s, want cancelled", record.Status)
	}
	if record.Report == nil {
		t.Error("cancelled job should still carry a partial report")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	m := NewManager(nil, nil, testEngineConfig(), 0)
	defer m.Close()

	if err := m.Cancel("20990101_000000_001"); err == nil {
		t.Error("expected error for unknown job id")
	}
}

func TestListNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(nil, nil, testEngineConfig(), 0)
	defer m.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.Submit(Submission{TargetURL: srv.URL, NumRequests: 1, NumWorkers: 1})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, id)
		waitFinished(t, m, id)
		time.Sleep(5 * time.Millisecond)
	}

	records := m.List()
	if len(records) != 3 {
		t.Fatalf("List = %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].SubmittedAt.After(records[i-1].SubmittedAt) {
			t.Error("records not sorted newest first")
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "jobs.json")
	store, err := storage.NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	m := NewManager(store, nil, testEngineConfig(), 0)
	id, err := m.Submit(Submission{TargetURL: srv.URL, NumRequests: 5, NumWorkers: 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFinished(t, m, id)
	m.Close()

	restored := NewManager(store, nil, testEngineConfig(), 0)
	defer restored.Close()
	if err := restored.LoadFromStorage(); err != nil {
		t.Fatalf("LoadFromStorage: %v", err)
	}

	record, ok := restored.Get(id)
	if !ok {
		t.Fatalf("job %s not restored", id)
	}
	if record.Status != types.JobCompleted {
		t.Errorf("restored status = %s, want completed", record.Status)
	}
	if report, ok := restored.Results(id); !ok || report.Completed != 5 {
		t.Errorf("restored results = %+v, ok=%v", report, ok)
	}
}
