package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/load-tester-api/internal/types"
)

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "jobs.json")
	fs, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	defer fs.Close()

	archive := &types.Archive{
		Jobs: []types.JobRecord{
			{ID: "20260101_120000_001", Status: types.JobCompleted},
			{ID: "20260101_120500_002", Status: types.JobCancelled},
		},
		Updated: time.Now(),
	}
	if err := fs.Save(archive); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || len(loaded.Jobs) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Jobs[0].ID != "20260101_120000_001" || loaded.Jobs[1].Status != types.JobCancelled {
		t.Errorf("jobs = %+v", loaded.Jobs)
	}
}

func TestFileStorageLoadMissing(t *testing.T) {
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	archive, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if archive != nil {
		t.Errorf("expected nil archive before first save, got %+v", archive)
	}
}

func TestNewStorageUnknownType(t *testing.T) {
	if _, err := NewStorage("etcd", ""); err == nil {
		t.Error("expected error for unknown storage type")
	}
}
