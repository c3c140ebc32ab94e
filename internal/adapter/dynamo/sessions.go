package dynamo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jun/wopigate/internal/model"
)

// SessionStore implements adapter.SessionProvider over the platform's
// sessions table. Items past their expires_at are treated as absent, since
// DynamoDB TTL deletion lags behind.
type SessionStore struct {
	client    *dynamodb.Client
	tableName string

	// Fallback for tests
	sessions map[string]model.Session
	mu       sync.RWMutex
}

// NewSessionStore creates a SessionStore on the given table.
func NewSessionStore(client *dynamodb.Client, tableName string) *SessionStore {
	return &SessionStore{
		client:    client,
		tableName: tableName,
		sessions:  make(map[string]model.Session),
	}
}

// PutSession writes a session. Used for seeding in DEV_MODE and tests.
func (s *SessionStore) PutSession(ctx context.Context, session *model.Session) error {
	if s.client == nil {
		s.mu.Lock()
		s.sessions[session.ID] = *session
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}
	return nil
}

// DeleteSession removes a session, ending it.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if s.client == nil {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	var session model.Session
	if s.client == nil {
		s.mu.RLock()
		found, ok := s.sessions[sessionID]
		s.mu.RUnlock()
		if !ok {
			return nil, nil
		}
		session = found
	} else {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"session_id": &types.AttributeValueMemberS{Value: sessionID},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if out.Item == nil {
			return nil, nil
		}
		if err := attributevalue.UnmarshalMap(out.Item, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
	}

	if session.ExpiresAt != 0 && session.ExpiresAt < time.Now().Unix() {
		return nil, nil // Expired
	}
	return &session, nil
}
