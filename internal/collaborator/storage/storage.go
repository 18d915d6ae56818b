// Package storage is a concrete collab.Storage: documents kept in
// memory and mirrored to a JSON file on every write, so a node
// restarting picks its document set back up without standing up a
// real database (SPEC_FULL §6).
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
)

// Store implements collab.Storage. All access is protected by a
// single mutex — document counts in this system are small enough
// that a coarse lock is simpler than anything finer.
type Store struct {
	mu       sync.Mutex
	path     string
	docs     map[string]collab.Document
	nextID   int
}

// New builds a Store that persists to path. If path already exists,
// its contents are not loaded until Start is called.
func New(path string) *Store {
	return &Store{path: path, docs: make(map[string]collab.Document)}
}

// Start loads any previously persisted documents from disk. A missing
// file is not an error — it means this is a fresh store.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: reading %s: %w", s.path, err)
	}

	var docs []collab.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return fmt.Errorf("storage: decoding %s: %w", s.path, err)
	}
	for _, d := range docs {
		s.docs[d.ID] = d
		if id, err := strconv.Atoi(d.ID); err == nil && id >= s.nextID {
			s.nextID = id + 1
		}
	}
	return nil
}

// GetDocuments returns every known document in no particular order.
func (s *Store) GetDocuments(ctx context.Context) ([]collab.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]collab.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

// GetDocument resolves id to a document, or (zero, false, nil) if
// unknown.
func (s *Store) GetDocument(ctx context.Context, id string) (collab.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	return d, ok, nil
}

// CreateDocument assigns the next free numeric ID, persists, and
// returns the new document.
func (s *Store) CreateDocument(ctx context.Context, name string) (collab.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := collab.Document{ID: strconv.Itoa(s.nextID), Name: name}
	s.nextID++
	s.docs[doc.ID] = doc

	if err := s.persistLocked(); err != nil {
		return collab.Document{}, err
	}
	return doc, nil
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	out := make([]collab.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encoding: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", s.path, err)
	}
	return nil
}

var _ collab.Storage = (*Store)(nil)
