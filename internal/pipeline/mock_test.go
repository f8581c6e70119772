package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/latticehq/lattice/internal/model"
)

type mockExtractor struct {
	mu        sync.Mutex
	Responses map[string][]model.Entity
	Errs      map[string]error
	Meta      model.ExtractionMetadata
	Calls     []string
}

func (m *mockExtractor) Extract(ctx context.Context, doc model.Document, allowedTypes []string) ([]model.Entity, model.ExtractionMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, doc.ID())
	if err, ok := m.Errs[doc.ID()]; ok {
		return nil, m.Meta, &model.ExtractionError{DocID: doc.ID(), Err: err}
	}
	ents := m.Responses[doc.ID()]
	out := make([]model.Entity, len(ents))
	copy(out, ents)
	return out, m.Meta, nil
}

type persisted struct {
	Doc      model.Document
	Entities []model.Entity
	Linked   []string
}

type mockStore struct {
	Persisted map[string]*persisted
	FailDocs  map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{Persisted: make(map[string]*persisted)}
}

func (m *mockStore) PersistDocument(ctx context.Context, namespace string, doc model.Document) error {
	if err, ok := m.FailDocs[doc.ID()]; ok {
		return &model.StoreError{DocID: doc.ID(), Err: err}
	}
	m.Persisted[doc.ID()] = &persisted{Doc: doc}
	return nil
}

func (m *mockStore) PersistEntities(ctx context.Context, namespace, docID string, entities []model.Entity) ([]string, error) {
	p := m.Persisted[docID]
	p.Entities = append([]model.Entity(nil), entities...)
	ids := make([]string, len(entities))
	for i := range entities {
		ids[i] = docID + "#" + entities[i].Name
	}
	return ids, nil
}

func (m *mockStore) LinkMentions(ctx context.Context, namespace, docID string, entityIDs []string, entities []model.Entity) error {
	m.Persisted[docID].Linked = entityIDs
	return nil
}

// memFingerprints is an in-memory fingerprint.Store.
type memFingerprints struct {
	mu      sync.Mutex
	records map[string]string
}

func newMemFingerprints() *memFingerprints {
	return &memFingerprints{records: make(map[string]string)}
}

func (m *memFingerprints) HasProcessed(ctx context.Context, namespace, docID, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[namespace+"/"+docID] == hash, nil
}

func (m *memFingerprints) Put(ctx context.Context, namespace, docID, hash string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[namespace+"/"+docID] = hash
	return nil
}

type mockPrompt struct {
	Decision model.Decision
	Err      error
	Asked    []model.MergeProposal
}

func (m *mockPrompt) AskMerge(ctx context.Context, proposal model.MergeProposal) (model.Decision, error) {
	m.Asked = append(m.Asked, proposal)
	if m.Err != nil {
		return model.Decision{}, m.Err
	}
	return m.Decision, nil
}
