package serve

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const servedBucket = "served_predictions"

// PredictionLog appends every served prediction to BoltDB so picks can be
// labeled and folded back into training once their games resolve.
type PredictionLog struct {
	db *bbolt.DB
}

// loggedPrediction is the stored shape: the input as received and the output
// as served.
type loggedPrediction struct {
	ServedAt time.Time         `json:"served_at"`
	Input    *GameInput        `json:"input"`
	Output   *PredictionOutput `json:"output"`
}

// OpenPredictionLog opens (or creates) the log under dataPath.
func OpenPredictionLog(dataPath string) (*PredictionLog, error) {
	dbPath := filepath.Join(dataPath, "sportsml-served.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open prediction log: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(servedBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create served bucket: %w", err)
	}

	return &PredictionLog{db: db}, nil
}

// Close closes the underlying database.
func (l *PredictionLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Append stores one served prediction keyed by sport and serve time.
func (l *PredictionLog) Append(in *GameInput, out *PredictionOutput) error {
	entry := loggedPrediction{ServedAt: time.Now().UTC(), Input: in, Output: out}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal served prediction: %w", err)
	}

	key := fmt.Sprintf("%s_%020d_%s@%s", in.Sport, entry.ServedAt.UnixNano(), in.AwayTeam, in.HomeTeam)
	return l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(servedBucket)).Put([]byte(key), data)
	})
}

// Count returns the number of logged predictions.
func (l *PredictionLog) Count() (int, error) {
	var n int
	err := l.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(servedBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
