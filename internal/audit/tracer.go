// Package audit records user actions on documents.
package audit

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/jun/wopigate/internal/model"
)

// ActionNewVersion is traced when a user saves a new version of a document.
const ActionNewVersion = "NEW_VERSION"

// Application names the emitter in trace events.
const Application = "wopigate"

// Tracer is a trace sink.
type Tracer interface {
	Trace(ctx context.Context, event model.TraceEvent) error
}

// NewVersionEvent builds the trace for a manual save of documentName.
func NewVersionEvent(userID, documentID, documentName string) model.TraceEvent {
	return model.TraceEvent{
		Action:      ActionNewVersion,
		UserID:      userID,
		ResourceID:  documentID,
		Extension:   FileExtension(documentName),
		Application: Application,
	}
}

// FileExtension returns the lower-cased extension of name without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// DynamoTracer appends trace events to a DynamoDB table.
type DynamoTracer struct {
	client    *dynamodb.Client
	tableName string

	// Fallback for tests
	events []model.TraceEvent
	mu     sync.Mutex
}

// NewDynamoTracer creates a DynamoTracer. A nil client keeps events in memory.
func NewDynamoTracer(client *dynamodb.Client, tableName string) *DynamoTracer {
	return &DynamoTracer{
		client:    client,
		tableName: tableName,
	}
}

func (t *DynamoTracer) Trace(ctx context.Context, event model.TraceEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if t.client == nil {
		t.mu.Lock()
		t.events = append(t.events, event)
		t.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put trace: %w", err)
	}
	return nil
}

// Events returns the events recorded in memory.
func (t *DynamoTracer) Events() []model.TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
