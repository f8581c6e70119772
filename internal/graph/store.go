package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/latticehq/lattice/internal/model"
)

// Store persists documents, entities, and mention links into the graph,
// partitioned by namespace. All failures come back as *model.StoreError.
type Store struct {
	Driver Driver
}

func NewStore(driver Driver) *Store {
	return &Store{Driver: driver}
}

func (s *Store) PersistDocument(ctx context.Context, namespace string, doc model.Document) error {
	params := map[string]interface{}{
		"id":          doc.ID(),
		"namespace":   namespace,
		"title":       doc.Title,
		"breadcrumb":  doc.Breadcrumb,
		"fingerprint": doc.Fingerprint,
		"ingested_at": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveDocumentQuery, params); err != nil {
		return &model.StoreError{DocID: doc.ID(), Err: err}
	}
	return nil
}

// PersistEntities upserts each entity node and returns their UUIDs in input
// order. Entities are identified by (name, type, namespace) so renames from
// accepted merges land on the same node across documents.
func (s *Store) PersistEntities(ctx context.Context, namespace, docID string, entities []model.Entity) ([]string, error) {
	ids := make([]string, 0, len(entities))
	for _, ent := range entities {
		params := map[string]interface{}{
			"name":       ent.Name,
			"type":       ent.Type,
			"namespace":  namespace,
			"uuid":       uuid.New().String(),
			"confidence": ent.Confidence,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		}
		res, err := s.Driver.ExecuteQuery(ctx, SaveEntityQuery, params)
		if err != nil {
			return nil, &model.StoreError{DocID: docID, Err: err}
		}

		id := params["uuid"].(string)
		if len(res.Records) > 0 {
			if v, ok := res.Records[0].Get("uuid"); ok {
				if existing, ok := v.(string); ok && existing != "" {
					id = existing
				}
			}
		}
		ids = append(ids, id)
	}

	for _, ent := range entities {
		for _, rel := range ent.Relations {
			params := map[string]interface{}{
				"source":    ent.Name,
				"target":    rel.Target,
				"kind":      rel.Kind,
				"fact":      rel.Fact,
				"namespace": namespace,
				"doc_id":    docID,
			}
			if _, err := s.Driver.ExecuteQuery(ctx, SaveRelationEdgeQuery, params); err != nil {
				return nil, &model.StoreError{DocID: docID, Err: fmt.Errorf("relation %s-[%s]->%s: %w", ent.Name, rel.Kind, rel.Target, err)}
			}
		}
	}

	return ids, nil
}

func (s *Store) LinkMentions(ctx context.Context, namespace, docID string, entityIDs []string, entities []model.Entity) error {
	for i, id := range entityIDs {
		confidence := 0.0
		if i < len(entities) {
			confidence = entities[i].Confidence
		}
		params := map[string]interface{}{
			"doc_id":      docID,
			"namespace":   namespace,
			"entity_uuid": id,
			"confidence":  confidence,
		}
		if _, err := s.Driver.ExecuteQuery(ctx, SaveMentionEdgeQuery, params); err != nil {
			return &model.StoreError{DocID: docID, Err: err}
		}
	}
	return nil
}

// SearchResult is one row of the entity search surface.
type SearchResult struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Documents []string `json:"documents"`
}

func (s *Store) SearchEntities(ctx context.Context, namespace, query string) ([]SearchResult, error) {
	res, err := s.Driver.ExecuteQuery(ctx, SearchEntitiesQuery, map[string]interface{}{
		"namespace": namespace,
		"query":     query,
	})
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, rec := range res.Records {
		name, _ := rec.Get("name")
		typ, _ := rec.Get("type")
		docsVal, _ := rec.Get("documents")

		var docs []string
		if list, ok := docsVal.([]interface{}); ok {
			for _, d := range list {
				if title, ok := d.(string); ok && title != "" {
					docs = append(docs, title)
				}
			}
		}
		results = append(results, SearchResult{
			Name:      toString(name),
			Type:      toString(typ),
			Documents: docs,
		})
	}
	return results, nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
