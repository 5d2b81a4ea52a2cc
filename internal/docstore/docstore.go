// Package docstore provides remote versioned document stores with compare-and-swap writes.
//
// Every read returns the document body and an opaque version token. Every write
// presents the token it read and is rejected with domain.ErrConflict when the
// token is stale. An empty token means "create only".
package docstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Document is a document body with the version token it was read at
type Document struct {
	Path    string
	Content []byte
	Version string
}

// Revision is one accepted write
type Revision struct {
	Path      string    `json:"path"`
	Version   string    `json:"version"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a remote versioned document store.
//
// Read returns domain.ErrNotFound when the path is absent.
// Write returns domain.ErrConflict when version is stale, or when version is
// empty and the document already exists.
type Store interface {
	Read(ctx context.Context, path string) (*Document, error)
	Write(ctx context.Context, path string, content []byte, message, version string) (string, error)
}

// ContentVersion is the content-hash version token used by stores without native versioning
func ContentVersion(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}
