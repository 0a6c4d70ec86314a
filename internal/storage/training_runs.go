package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// ModelRun holds the scores of one candidate model in a training run.
type ModelRun struct {
	Name    string  `json:"name"`
	TrainR2 float64 `json:"train_r2"`
	TestR2  float64 `json:"test_r2"`
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
	CVMean  float64 `json:"cv_r2_mean"`
	CVStd   float64 `json:"cv_r2_std"`
}

// TrainingRun summarizes one execution of the training pipeline.
type TrainingRun struct {
	ID         uint64     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Rows       int        `json:"rows"`
	TopStates  []string   `json:"top_states"`
	BestModel  string     `json:"best_model"`
	Models     []ModelRun `json:"models"`
	BundlePath string     `json:"bundle_path,omitempty"`
	Version    string     `json:"version,omitempty"`
}

// StoreTrainingRun appends a training run and assigns its ID.
func (s *Store) StoreTrainingRun(run *TrainingRun) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(trainingRunsBucket))

		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next training run id: %w", err)
		}
		run.ID = id

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal training run: %w", err)
		}
		return b.Put(idKey(id), data)
	})
}

// ListTrainingRuns returns all runs, newest first.
func (s *Store) ListTrainingRuns() ([]TrainingRun, error) {
	runs := make([]TrainingRun, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(trainingRunsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run TrainingRun
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// LatestTrainingRun returns the most recent run, or nil when none exist.
func (s *Store) LatestTrainingRun() (*TrainingRun, error) {
	var run *TrainingRun
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket([]byte(trainingRunsBucket)).Cursor().Last()
		if v == nil {
			return nil
		}
		run = &TrainingRun{}
		return json.Unmarshal(v, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func idKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}
