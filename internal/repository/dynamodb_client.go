package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"life-coach-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	// Zero-padded so sort keys order lexically.
	seqWidth = 12
	// DynamoDB caps a transaction at 100 items.
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Dynamo.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Dynamo stores session messages in a single DynamoDB table:
// PK=CHAT#<session id>, SK=MSG#<zero-padded sequence>. The sequence continues
// from the last stored key, so order never depends on writer clocks, and the
// put condition makes a concurrent writer holding a stale sequence fail
// instead of interleaving.
type Dynamo struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamo creates a DynamoDB-backed Store. A zero ttl writes no ttl attribute.
func NewDynamo(api dynamodbAPI, tableName string, ttl time.Duration) (*Dynamo, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl < 0 {
		return nil, errors.New("repository: ttl must not be negative")
	}
	return &Dynamo{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// chatPK returns the DynamoDB partition key for a session.
func chatPK(sessionID string) string {
	return "CHAT#" + sessionID
}

func msgSK(seq int64) string {
	return fmt.Sprintf("%s%0*d", skPrefixMsg, seqWidth, seq)
}

func parseMsgSK(sk string) (int64, error) {
	digits, ok := strings.CutPrefix(sk, skPrefixMsg)
	if !ok {
		return 0, fmt.Errorf("repository: sort key %q has no %s prefix", sk, skPrefixMsg)
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: sort key %q: %w", sk, err)
	}
	return seq, nil
}

// nextSeq returns the sequence following the session's last stored message.
func (d *Dynamo) nextSeq(ctx context.Context, sessionID string) (int64, error) {
	out, err := d.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: chatPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ProjectionExpression: aws.String("SK"),
		ScanIndexForward:     aws.Bool(false),
		ConsistentRead:       aws.Bool(true),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: Append last key: %w", err)
	}
	if len(out.Items) == 0 {
		return 0, nil
	}
	sk, err := strAttr(out.Items[0], "SK")
	if err != nil {
		return 0, err
	}
	last, err := parseMsgSK(sk)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Append writes the batch in transactions of at most 100 items. Batches larger
// than that are not atomic as a whole.
func (d *Dynamo) Append(ctx context.Context, sessionID string, messages []domain.ChatMessage) error {
	if sessionID == "" {
		return errors.New("repository: session id must not be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	seq, err := d.nextSeq(ctx, sessionID)
	if err != nil {
		return err
	}

	ts := d.now()
	items := make([]types.TransactWriteItem, 0, len(messages))
	for i, m := range messages {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(d.tableName),
				Item:                d.messageItem(sessionID, ts, seq+int64(i), m),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	for start := 0; start < len(items); start += maxTransactItems {
		end := min(start+maxTransactItems, len(items))
		_, err := d.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		})
		if err != nil {
			return fmt.Errorf("repository: Append: %w", err)
		}
	}
	return nil
}

// Read queries every MSG# item for the session in sequence order,
// following pagination.
func (d *Dynamo) Read(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: chatPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	msgs := []domain.ChatMessage{}
	for {
		out, err := d.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: Read query: %w", err)
		}
		for _, item := range out.Items {
			msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("repository: Read unmarshal: %w", err)
			}
			msgs = append(msgs, msg)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return msgs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (d *Dynamo) messageItem(sessionID string, ts time.Time, seq int64, m domain.ChatMessage) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: chatPK(sessionID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(seq)},
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		"role":      &types.AttributeValueMemberS{Value: m.Role},
		"content":   &types.AttributeValueMemberS{Value: m.Content},
		"createdAt": &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339)},
	}
	if d.ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ts.Add(d.ttl).Unix())}
	}
	return item
}

// itemToMessage converts a DynamoDB attribute map to a ChatMessage.
func itemToMessage(item map[string]types.AttributeValue) (domain.ChatMessage, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{Role: role, Content: content}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
