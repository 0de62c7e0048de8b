package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoContextStore keeps contexts in a table keyed by senderId. Expiry
// relies on the table's TTL attribute expiresAt; Load also ignores stale items
// the TTL sweeper has not reached yet.
type DynamoContextStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

func NewDynamoContextStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoContextStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoContextStore{client: client, tableName: tableName, ttl: ttl, now: time.Now, logger: logger}
}

var _ ContextStore = (*DynamoContextStore)(nil)

func (s *DynamoContextStore) Load(ctx context.Context, senderID string) (*Context, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            senderKey(senderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to fetch context: %w", err)
	}
	if out.Item == nil {
		return NewContext(senderID), nil
	}
	var c Context
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode context: %w", err)
	}
	if c.ExpiresAt != 0 && c.ExpiresAt <= s.now().Unix() {
		return NewContext(senderID), nil
	}
	return &c, nil
}

func (s *DynamoContextStore) Save(ctx context.Context, c *Context) error {
	now := s.now().UTC()
	cp := c.Clone()
	cp.UpdatedAt = now
	cp.ExpiresAt = now.Add(s.ttl).Unix()

	item, err := attributevalue.MarshalMap(cp)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal context: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("conversation: failed to persist context: %w", err)
	}
	return nil
}

func (s *DynamoContextStore) Delete(ctx context.Context, senderID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       senderKey(senderID),
	}); err != nil {
		return fmt.Errorf("conversation: failed to delete context: %w", err)
	}
	return nil
}

func senderKey(senderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"senderId": &types.AttributeValueMemberS{Value: senderID},
	}
}
