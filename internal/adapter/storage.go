package adapter

import (
	"context"
	"io"

	"github.com/jun/wopigate/internal/model"
)

// Blob describes content written to blob storage.
type Blob struct {
	ID       string         `json:"_id"`
	Metadata model.Metadata `json:"metadata"`
}

// DocumentStore is the platform's document metadata store.
// The gateway reads documents and overwrites their content pointers; it never
// creates or deletes them.
type DocumentStore interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, documentID string) (*model.Document, error)

	// CountAccessible counts documents with the given ID that the user may
	// access with right, either as owner or through a share entry matching
	// the user or one of groupIDs.
	CountAccessible(ctx context.Context, documentID, userID string, groupIDs []string, right model.Right) (int, error)

	// UpdateRevision points the document's revision at blobID, leaving
	// content and metadata untouched.
	UpdateRevision(ctx context.Context, documentID, blobID string) error

	// UpdateContent points the document's content at blobID and replaces
	// its metadata.
	UpdateContent(ctx context.Context, documentID, blobID string, metadata model.Metadata) error
}

// BlobStore holds document content.
type BlobStore interface {
	// Put stores the content and returns the new blob.
	Put(ctx context.Context, content io.Reader, contentType, name string) (*Blob, error)

	// Get returns the content of a blob or ErrNotFound.
	Get(ctx context.Context, blobID string) ([]byte, error)
}
