package fingerprint

import (
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore keeps fingerprint records in a local key-value file, one bucket
// per namespace. Useful when the graph database is shared and runs should not
// write bookkeeping nodes into it.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) HasProcessed(ctx context.Context, namespace, docID, hash string) (bool, error) {
	var match bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(docID))
		if data == nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		match = rec.Hash == hash
		return nil
	})
	return match, err
}

// Put overwrites any prior record in one transaction.
func (s *BoltStore) Put(ctx context.Context, namespace, docID, hash string, processedAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		data, err := json.Marshal(Record{DocID: docID, Hash: hash, ProcessedAt: processedAt.UTC()})
		if err != nil {
			return err
		}
		return b.Put([]byte(docID), data)
	})
}
