package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/jun/wopigate/internal/model"
)

const (
	pointerPK = "current"
	pointerSK = "pointer"

	batchSize       = 25 // BatchWriteItem limit
	maxBatchRetries = 5
)

// DynamoStore keeps discovery records in a table with a string pk/sk key.
//
// Every Replace writes its records under a fresh generation partition
// ("gen#<id>"), then flips the single pointer item to that generation.
// Readers resolve the pointer first, so they only ever see one generation.
// The generation a flip supersedes stays intact until the next flip, so a
// reader holding the old pointer never sees it half deleted.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoStore creates a new DynamoStore.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

type recordItem struct {
	PK          string `dynamodbav:"pk"`
	SK          string `dynamodbav:"sk"`
	ContentType string `dynamodbav:"content_type"`
	Extension   string `dynamodbav:"extension"`
	Action      string `dynamodbav:"action"`
	URL         string `dynamodbav:"url"`
}

type pointerItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	Generation string `dynamodbav:"generation"`
	Previous   string `dynamodbav:"previous,omitempty"`
	UpdatedAt  int64  `dynamodbav:"updated_at"`
}

// advance returns the pointer publishing gen and the generation that is no
// longer reachable from it, if any.
func (p pointerItem) advance(gen string, now time.Time) (pointerItem, string) {
	next := pointerItem{
		PK:         pointerPK,
		SK:         pointerSK,
		Generation: gen,
		Previous:   p.Generation,
		UpdatedAt:  now.Unix(),
	}
	return next, p.Previous
}

func generationPK(gen string) string {
	return "gen#" + gen
}

func recordSK(contentType, action string) string {
	return contentType + "#" + action
}

func (s *DynamoStore) Replace(ctx context.Context, records []model.DiscoveryRecord) error {
	current, err := s.pointer(ctx)
	if err != nil {
		return err
	}

	gen := uuid.New().String()
	requests := make([]types.WriteRequest, 0, len(records))
	for _, r := range records {
		item, err := attributevalue.MarshalMap(recordItem{
			PK:          generationPK(gen),
			SK:          recordSK(r.ContentType, r.Action),
			ContentType: r.ContentType,
			Extension:   r.Extension,
			Action:      r.Action,
			URL:         r.URL,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal discovery record: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	if err := s.batchWrite(ctx, requests); err != nil {
		// The generation was never published; clean up what was written.
		_ = s.deleteGeneration(ctx, gen)
		return err
	}

	next, stale := current.advance(gen, time.Now())
	pointer, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("failed to marshal discovery pointer: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      pointer,
	})
	if err != nil {
		_ = s.deleteGeneration(ctx, gen)
		return fmt.Errorf("failed to publish discovery generation: %w", err)
	}

	if stale != "" {
		// A failed cleanup only leaves unreachable items behind.
		_ = s.deleteGeneration(ctx, stale)
	}
	return nil
}

func (s *DynamoStore) Find(ctx context.Context, contentType, action string) (*model.DiscoveryRecord, error) {
	gen, err := s.currentGeneration(ctx)
	if err != nil || gen == "" {
		return nil, err
	}

	if action != "" {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: generationPK(gen)},
				"sk": &types.AttributeValueMemberS{Value: recordSK(contentType, action)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get discovery record: %w", err)
		}
		if out.Item == nil {
			return nil, nil
		}
		var item recordItem
		if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal discovery record: %w", err)
		}
		r := item.record()
		return &r, nil
	}

	records, err := s.query(ctx, gen, contentType+"#")
	if err != nil {
		return nil, err
	}
	r := pick(records, contentType, "")
	if r == nil {
		return nil, nil
	}
	found := *r
	return &found, nil
}

func (s *DynamoStore) List(ctx context.Context) ([]model.DiscoveryRecord, error) {
	gen, err := s.currentGeneration(ctx)
	if err != nil || gen == "" {
		return nil, err
	}
	return s.query(ctx, gen, "")
}

func (s *DynamoStore) currentGeneration(ctx context.Context) (string, error) {
	p, err := s.pointer(ctx)
	if err != nil {
		return "", err
	}
	return p.Generation, nil
}

func (s *DynamoStore) pointer(ctx context.Context) (pointerItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pointerPK},
			"sk": &types.AttributeValueMemberS{Value: pointerSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return pointerItem{}, fmt.Errorf("failed to get discovery pointer: %w", err)
	}
	var p pointerItem
	if out.Item == nil {
		return p, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return pointerItem{}, fmt.Errorf("failed to unmarshal discovery pointer: %w", err)
	}
	return p, nil
}

// query lists a generation, optionally restricted to sort keys starting with prefix.
func (s *DynamoStore) query(ctx context.Context, gen, prefix string) ([]model.DiscoveryRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: generationPK(gen)},
		},
	}
	if prefix != "" {
		input.KeyConditionExpression = aws.String("pk = :pk AND begins_with(sk, :prefix)")
		input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{Value: prefix}
	}

	var records []model.DiscoveryRecord
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query discovery records: %w", err)
		}
		var items []recordItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal discovery records: %w", err)
		}
		for _, item := range items {
			records = append(records, item.record())
		}
	}
	return records, nil
}

func (s *DynamoStore) deleteGeneration(ctx context.Context, gen string) error {
	records, err := s.query(ctx, gen, "")
	if err != nil {
		return err
	}
	requests := make([]types.WriteRequest, 0, len(records))
	for _, r := range records {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: generationPK(gen)},
				"sk": &types.AttributeValueMemberS{Value: recordSK(r.ContentType, r.Action)},
			},
		}})
	}
	return s.batchWrite(ctx, requests)
}

// batchWrite sends requests in chunks, resubmitting unprocessed items.
func (s *DynamoStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchSize {
		end := min(start+batchSize, len(requests))
		pending := map[string][]types.WriteRequest{s.tableName: requests[start:end]}

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchRetries {
				return fmt.Errorf("discovery batch write: %d items left unprocessed", len(pending[s.tableName]))
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt*50) * time.Millisecond):
				}
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return fmt.Errorf("discovery batch write: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

func (i recordItem) record() model.DiscoveryRecord {
	return model.DiscoveryRecord{
		ContentType: i.ContentType,
		Extension:   i.Extension,
		Action:      i.Action,
		URL:         i.URL,
	}
}
