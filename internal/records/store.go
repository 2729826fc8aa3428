package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

// Store persists prediction records locally in BoltDB so the pipeline can
// train without a database connection and the scoring service can append the
// predictions it serves for future labeling.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (or creates) the record store under dataPath.
func OpenStore(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "sportsml-records.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores one record keyed by sport and the time the prediction was made.
// Re-putting an updated record (e.g. once its outcome resolves) overwrites
// the earlier copy.
func (s *Store) Put(rec RawRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}

		return b.Put(storeKey(rec.Sport, rec.MadeAt, rec.GameID), data)
	})
}

// PutBatch stores records in a single transaction.
func (s *Store) PutBatch(recs []RawRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		for i := range recs {
			data, err := json.Marshal(recs[i])
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			if err := b.Put(storeKey(recs[i].Sport, recs[i].MadeAt, recs[i].GameID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns records for a sport made within [since, until], ordered by
// key (sport, then made-at time). Malformed entries are skipped.
func (s *Store) Load(sport string, since, until time.Time) ([]RawRecord, error) {
	var recs []RawRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		c := b.Cursor()

		prefix := []byte(sport + "_")
		startKey := storeKey(sport, since, "")
		endKey := storeKey(sport, until, "\xff")

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var r RawRecord
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			recs = append(recs, r)
		}
		return nil
	})

	return recs, err
}

func storeKey(sport string, ts time.Time, gameID string) []byte {
	ns := ts.UnixNano()
	if ts.IsZero() || ns < 0 {
		ns = 0
	}
	return []byte(fmt.Sprintf("%s_%020d_%s", sport, ns, gameID))
}
