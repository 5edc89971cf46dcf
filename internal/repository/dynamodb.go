package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"tax-assistant/internal/domain"
)

const (
	pkPrefixUser = "USER#"
	skPrefixMsg  = "MSG#"

	// DefaultTTL applies when no retention is configured.
	DefaultTTL = 30 * 24 * time.Hour

	maxQueryLimit = math.MaxInt32
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore keeps chat history in a DynamoDB table keyed by user. Old
// items expire through the table's TTL attribute.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore creates a DynamoStore. A non-positive ttl uses DefaultTTL.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func userPK(userID string) string {
	return pkPrefixUser + normalizeUserID(userID)
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano)
}

// SaveExchange writes one exchange. The put is conditional so a sort key
// collision surfaces as an error instead of overwriting history.
func (s *DynamoStore) SaveExchange(ctx context.Context, ex domain.Exchange) error {
	if ex.Timestamp.IsZero() {
		ex.Timestamp = s.now()
	}
	ex.UserID = normalizeUserID(ex.UserID)

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                s.exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges for userID, newest first.
func (s *DynamoStore) RecentExchanges(ctx context.Context, userID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		return []domain.Exchange{}, nil
	}
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(min(limit, maxQueryLimit))),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: RecentExchanges query: %w", err)
	}

	exs := make([]domain.Exchange, 0, len(out.Items))
	for _, item := range out.Items {
		ex, err := itemToExchange(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentExchanges unmarshal: %w", err)
		}
		exs = append(exs, ex)
	}
	return exs, nil
}

// Ping verifies the table is reachable.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return fmt.Errorf("repository: ping dynamodb: %w", err)
	}
	return nil
}

func (s *DynamoStore) exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	ts := ex.Timestamp.UTC()
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: userPK(ex.UserID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(ts)},
		"userId":    &types.AttributeValueMemberS{Value: ex.UserID},
		"prompt":    &types.AttributeValueMemberS{Value: ex.Prompt},
		"response":  &types.AttributeValueMemberS{Value: ex.Response},
		"timestamp": &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ts.Add(s.ttl).Unix(), 10)},
	}
}

func itemToExchange(item map[string]types.AttributeValue) (domain.Exchange, error) {
	prompt, err := strAttr(item, "prompt")
	if err != nil {
		return domain.Exchange{}, err
	}
	response, err := strAttr(item, "response")
	if err != nil {
		return domain.Exchange{}, err
	}
	raw, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.Exchange{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return domain.Exchange{}, fmt.Errorf("repository: parse timestamp %q: %w", raw, err)
	}
	userID, _ := strAttr(item, "userId") // older items may lack it

	return domain.Exchange{
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Timestamp: ts,
	}, nil
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
