// Package s3store implements adapter.BlobStore on Amazon S3.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/jun/wopigate/internal/adapter"
	"github.com/jun/wopigate/internal/model"
)

const keyPrefix = "documents/"

// BlobStore stores document content as S3 objects keyed by blob ID.
// If client is nil, content is kept in memory (tests, DEV_MODE).
type BlobStore struct {
	client *s3.Client
	bucket string

	// Fallback for tests
	blobs map[string][]byte
	mu    sync.RWMutex
}

// NewBlobStore creates a BlobStore on bucket.
func NewBlobStore(client *s3.Client, bucket string) *BlobStore {
	return &BlobStore{
		client: client,
		bucket: bucket,
		blobs:  make(map[string][]byte),
	}
}

// Put buffers content and stores it under a fresh blob ID.
func (s *BlobStore) Put(ctx context.Context, content io.Reader, contentType, name string) (*adapter.Blob, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	id := uuid.New().String()
	blob := &adapter.Blob{
		ID: id,
		Metadata: model.Metadata{
			Name:        "file",
			Filename:    name,
			ContentType: contentType,
			Size:        int64(len(data)),
		},
	}

	if s.client == nil {
		s.mu.Lock()
		s.blobs[id] = data
		s.mu.Unlock()
		return blob, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(keyPrefix + id),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"filename": name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload blob to S3: %w", err)
	}
	return blob, nil
}

func (s *BlobStore) Get(ctx context.Context, blobID string) ([]byte, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		data, ok := s.blobs[blobID]
		if !ok {
			return nil, adapter.ErrNotFound
		}
		return append([]byte(nil), data...), nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(keyPrefix + blobID),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download blob from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob content: %w", err)
	}
	return data, nil
}
