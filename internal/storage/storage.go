// Package storage provides persistent storage for the call-quality service.
// It uses BoltDB to keep a log of served predictions and a history of
// training runs, with ordered keys for efficient recent and range queries.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	predictionsBucket  = "predictions"   // Bucket name for served predictions
	trainingRunsBucket = "training_runs" // Bucket name for training run summaries

	dbFileName = "callquality.db"
)

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID           uint64    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Operator     string    `json:"operator"`
	NetworkType  string    `json:"network_type"`
	Location     string    `json:"inout_travelling"`
	Quality      string    `json:"calldrop_category"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	State        string    `json:"state_name"`
	Month        string    `json:"month"`
	Rating       float64   `json:"predicted_rating"`
	Raw          float64   `json:"raw"`
	StateMatched bool      `json:"state_matched"`
	Model        string    `json:"model"`
}

// New opens (or creates) the database under dataPath and ensures its buckets.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trainingRunsBucket)); err != nil {
			return fmt.Errorf("create training runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction appends a prediction. ID is assigned from the bucket
// sequence and the zero Timestamp is replaced with the current time.
func (s *Store) StorePrediction(rec *PredictionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next prediction id: %w", err)
		}
		rec.ID = id

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		return b.Put(timeKey(rec.Timestamp, id), data)
	})
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(limit int) ([]PredictionRecord, error) {
	records := make([]PredictionRecord, 0)
	if limit <= 0 {
		return records, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// PredictionsInRange returns predictions with start <= Timestamp <= end, oldest first.
func (s *Store) PredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	records := make([]PredictionRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		endPrefix := []byte(fmt.Sprintf("%020d", end.UnixNano()))

		for k, v := c.Seek(timeKey(start, 0)); k != nil && string(k[:20]) <= string(endPrefix); k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// CountPredictions returns the number of stored predictions.
func (s *Store) CountPredictions() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// timeKey orders records by time, then by id for equal timestamps.
func timeKey(ts time.Time, id uint64) []byte {
	return []byte(fmt.Sprintf("%020d_%020d", ts.UnixNano(), id))
}
