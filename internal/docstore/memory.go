package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/fundledger/internal/domain"
)

// MemoryStore is an in-process Store. It is used by tests and the "memory" backend.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]*Document
	revisions []Revision
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
		now:  time.Now,
	}
}

// Read returns a copy of the document at path
func (s *MemoryStore) Read(_ context.Context, path string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
	}
	return &Document{
		Path:    path,
		Content: append([]byte(nil), doc.Content...),
		Version: doc.Version,
	}, nil
}

// Write replaces the document if version matches the current one
func (s *MemoryStore) Write(_ context.Context, path string, content []byte, message, version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[path]
	switch {
	case !exists && version != "":
		return "", fmt.Errorf("write %s: document absent, version %s is stale: %w", path, version, domain.ErrConflict)
	case exists && current.Version != version:
		return "", fmt.Errorf("write %s: version %q is stale: %w", path, version, domain.ErrConflict)
	}

	next := ContentVersion(content)
	s.docs[path] = &Document{
		Path:    path,
		Content: append([]byte(nil), content...),
		Version: next,
	}
	s.revisions = append(s.revisions, Revision{
		Path:      path,
		Version:   next,
		Message:   message,
		CreatedAt: s.now(),
	})
	return next, nil
}

// Revisions returns every accepted write for path, oldest first
func (s *MemoryStore) Revisions(path string) []Revision {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Revision
	for _, r := range s.revisions {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}
