package fingerprint

import (
	"context"
	"time"

	"github.com/latticehq/lattice/internal/graph"
)

// GraphStore keeps fingerprint records as :Fingerprint nodes next to the data
// they guard, so one database holds both and the record travels with backups.
type GraphStore struct {
	Driver graph.Driver
}

func NewGraphStore(driver graph.Driver) *GraphStore {
	return &GraphStore{Driver: driver}
}

func (s *GraphStore) HasProcessed(ctx context.Context, namespace, docID, hash string) (bool, error) {
	res, err := s.Driver.ExecuteQuery(ctx, graph.GetFingerprintQuery, map[string]interface{}{
		"doc_id":    docID,
		"namespace": namespace,
	})
	if err != nil {
		return false, err
	}
	if len(res.Records) == 0 {
		return false, nil
	}
	stored, ok := res.Records[0].Get("hash")
	if !ok {
		return false, nil
	}
	return stored == hash, nil
}

// Put is a single MERGE+SET, atomic from the pipeline's point of view.
func (s *GraphStore) Put(ctx context.Context, namespace, docID, hash string, processedAt time.Time) error {
	_, err := s.Driver.ExecuteQuery(ctx, graph.UpsertFingerprintQuery, map[string]interface{}{
		"doc_id":       docID,
		"namespace":    namespace,
		"hash":         hash,
		"processed_at": processedAt.UTC().Format(time.RFC3339),
	})
	return err
}
