// Package dynamo implements the platform collaborators backed by DynamoDB.
// When constructed with a nil client, the stores keep their data in memory,
// which is what the tests and DEV_MODE use.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jun/wopigate/internal/adapter"
	"github.com/jun/wopigate/internal/model"
)

// DocumentStore implements adapter.DocumentStore.
type DocumentStore struct {
	client    *dynamodb.Client
	tableName string

	// Fallback for tests
	docs map[string]model.Document
	mu   sync.RWMutex
}

// NewDocumentStore creates a DocumentStore on the given table.
func NewDocumentStore(client *dynamodb.Client, tableName string) *DocumentStore {
	return &DocumentStore{
		client:    client,
		tableName: tableName,
		docs:      make(map[string]model.Document),
	}
}

// Put writes a whole document. The gateway itself never creates documents;
// this is used to seed the store.
func (s *DocumentStore) Put(ctx context.Context, doc *model.Document) error {
	if s.client == nil {
		s.mu.Lock()
		s.docs[doc.ID] = cloneDocument(*doc)
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, documentID string) (*model.Document, error) {
	if s.client == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		doc, ok := s.docs[documentID]
		if !ok {
			return nil, adapter.ErrNotFound
		}
		doc = cloneDocument(doc)
		return &doc, nil
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: documentID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if out.Item == nil {
		return nil, adapter.ErrNotFound
	}

	var doc model.Document
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// CountAccessible returns 1 when the document exists and grants right to
// the user, 0 otherwise. Share entries are evaluated client side because
// DynamoDB cannot match inside a list of maps.
func (s *DocumentStore) CountAccessible(ctx context.Context, documentID, userID string, groupIDs []string, right model.Right) (int, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if doc.Grants(userID, groupIDs, right) {
		return 1, nil
	}
	return 0, nil
}

func (s *DocumentStore) UpdateRevision(ctx context.Context, documentID, blobID string) error {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		doc, ok := s.docs[documentID]
		if !ok {
			return adapter.ErrNotFound
		}
		doc.Revision = blobID
		s.docs[documentID] = doc
		return nil
	}

	return s.update(ctx, documentID, "SET #rev = :rev",
		map[string]string{"#rev": "revision"},
		map[string]types.AttributeValue{
			":rev": &types.AttributeValueMemberS{Value: blobID},
		})
}

func (s *DocumentStore) UpdateContent(ctx context.Context, documentID, blobID string, metadata model.Metadata) error {
	modified := time.Now().UTC().Format(model.NativeDateLayout)

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		doc, ok := s.docs[documentID]
		if !ok {
			return adapter.ErrNotFound
		}
		doc.File = blobID
		doc.Metadata = metadata
		doc.Modified = modified
		s.docs[documentID] = doc
		return nil
	}

	meta, err := attributevalue.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return s.update(ctx, documentID, "SET #file = :file, #meta = :meta, #mod = :now",
		map[string]string{"#file": "file", "#meta": "metadata", "#mod": "modified"},
		map[string]types.AttributeValue{
			":file": &types.AttributeValueMemberS{Value: blobID},
			":meta": meta,
			":now":  &types.AttributeValueMemberS{Value: modified},
		})
}

// update applies expr to an existing document. Attribute names go through
// placeholders since several of them are DynamoDB reserved words.
func (s *DocumentStore) update(ctx context.Context, documentID, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: documentID},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return adapter.ErrNotFound
		}
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func cloneDocument(d model.Document) model.Document {
	if d.Shared != nil {
		d.Shared = append([]model.Share(nil), d.Shared...)
	}
	return d
}
