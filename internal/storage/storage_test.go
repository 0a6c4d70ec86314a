package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, "callquality.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.Close()
}

func TestNew_InvalidPath(t *testing.T) {
	// a regular file cannot hold the database directory
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(filepath.Join(file, "data"))
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePrediction_AssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)

	rec := &PredictionRecord{Operator: "Airtel", State: "Karnataka", Rating: 4.12}
	if err := store.StorePrediction(rec); err != nil {
		t.Fatalf("Failed to store prediction: %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("Expected ID 1, got %d", rec.ID)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	second := &PredictionRecord{Operator: "VI", Rating: 2}
	if err := store.StorePrediction(second); err != nil {
		t.Fatalf("Failed to store prediction: %v", err)
	}
	if second.ID != 2 {
		t.Errorf("Expected ID 2, got %d", second.ID)
	}

	n, err := store.CountPredictions()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 predictions, got %d", n)
	}
}

func TestRecentPredictions_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	for i, op := range []string{"Airtel", "RJio", "VI", "BSNL"} {
		rec := &PredictionRecord{Operator: op, Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := store.StorePrediction(rec); err != nil {
			t.Fatalf("Failed to store prediction: %v", err)
		}
	}

	recent, err := store.RecentPredictions(3)
	if err != nil {
		t.Fatalf("Failed to get recent predictions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(recent))
	}
	want := []string{"BSNL", "VI", "RJio"}
	for i, op := range want {
		if recent[i].Operator != op {
			t.Errorf("Position %d: expected %s, got %s", i, op, recent[i].Operator)
		}
	}

	all, err := store.RecentPredictions(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 predictions, got %d", len(all))
	}

	none, err := store.RecentPredictions(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no predictions for limit 0, got %d", len(none))
	}
}

func TestRecentPredictions_SameTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts := time.Now()
	for _, op := range []string{"first", "second"} {
		if err := store.StorePrediction(&PredictionRecord{Operator: op, Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := store.RecentPredictions(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Operator != "second" {
		t.Errorf("Expected both records newest first, got %+v", recent)
	}
}

func TestPredictionsInRange(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	offsets := []time.Duration{-time.Hour, 0, time.Second, 10 * time.Second}
	for i, off := range offsets {
		rec := &PredictionRecord{Rating: float64(i + 1), Timestamp: now.Add(off)}
		if err := store.StorePrediction(rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.PredictionsInRange(now.Add(-time.Second), now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("Range query failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 predictions in range, got %d", len(records))
	}
	if records[0].Rating != 2 || records[1].Rating != 3 {
		t.Errorf("Unexpected records %+v", records)
	}

	empty, err := store.PredictionsInRange(now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty result, got %d", len(empty))
	}
}

func TestTrainingRuns(t *testing.T) {
	store := newTestStore(t)

	latest, err := store.LatestTrainingRun()
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Error("Expected no training run in a fresh store")
	}

	for _, best := range []string{"Random Forest", "Gradient Boosting"} {
		run := &TrainingRun{
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
			Rows:       1000,
			BestModel:  best,
			Models:     []ModelRun{{Name: best, TestR2: 0.4}},
		}
		if err := store.StoreTrainingRun(run); err != nil {
			t.Fatalf("Failed to store training run: %v", err)
		}
	}

	runs, err := store.ListTrainingRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].BestModel != "Gradient Boosting" || runs[0].ID != 2 {
		t.Errorf("Expected newest run first, got %+v", runs[0])
	}

	latest, err = store.LatestTrainingRun()
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != 2 {
		t.Errorf("Expected latest run id 2, got %+v", latest)
	}
	if len(latest.Models) != 1 || latest.Models[0].TestR2 != 0.4 {
		t.Errorf("Model scores not persisted: %+v", latest.Models)
	}
}
