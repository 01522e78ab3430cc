package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client the limiter uses
type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DistributedRateLimiter implements fixed-window rate limiting using the
// citegraph DynamoDB table as the state store, so every Lambda instance
// shares one budget per key. Counters expire through the TTL attribute.
type DistributedRateLimiter struct {
	client    DynamoDBAPI
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// RateLimitEntry represents a rate limit entry in DynamoDB
type RateLimitEntry struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Count     int    `dynamodbav:"Count"`
	WindowEnd string `dynamodbav:"WindowEnd"`
	TTL       int64  `dynamodbav:"TTL"`
}

const rateLimitSK = "WINDOW"

// NewDistributedUserRateLimiter creates a per-minute rate limiter for user ids
func NewDistributedUserRateLimiter(client DynamoDBAPI, tableName string, requestsPerMinute int) *DistributedRateLimiter {
	return NewDistributedRateLimiter(client, tableName, requestsPerMinute, time.Minute, "USER")
}

// NewDistributedRateLimiter creates a generic distributed rate limiter
func NewDistributedRateLimiter(client DynamoDBAPI, tableName string, limit int, window time.Duration, keyPrefix string) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *DistributedRateLimiter) windowKey(key string, windowStart time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("RATELIMIT#%s#%s#%d", r.keyPrefix, key, windowStart.Unix())},
		"SK": &types.AttributeValueMemberS{Value: rateLimitSK},
	}
}

// Allow checks if a request is allowed under the rate limit. Backend
// failures fail open: the request is allowed and the error returned for
// logging.
func (r *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	windowStart := now.Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	// Atomic increment, conditional on the counter still being below the limit
	update := &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 r.windowKey(key, windowStart),
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, WindowEnd = :window_end, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":       &types.AttributeValueMemberN{Value: "0"},
			":incr":       &types.AttributeValueMemberN{Value: "1"},
			":limit":      &types.AttributeValueMemberN{Value: strconv.Itoa(r.limit)},
			":window_end": &types.AttributeValueMemberS{Value: windowEnd.Format(time.RFC3339)},
			":ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Add(time.Hour).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	result, err := r.client.UpdateItem(ctx, update)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}

	var entry RateLimitEntry
	if err := attributevalue.UnmarshalMap(result.Attributes, &entry); err != nil {
		return true, fmt.Errorf("failed to parse rate limit entry (failing open): %w", err)
	}

	return entry.Count <= r.limit, nil
}

// Remaining returns the number of requests remaining in the current window
// and the time until it resets
func (r *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, time.Duration, error) {
	now := r.now()
	windowStart := now.Truncate(r.window)
	resetIn := windowStart.Add(r.window).Sub(now)

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.windowKey(key, windowStart),
	})
	if err != nil {
		return r.limit, resetIn, fmt.Errorf("failed to read rate limit entry: %w", err)
	}
	if result.Item == nil {
		return r.limit, resetIn, nil
	}

	var entry RateLimitEntry
	if err := attributevalue.UnmarshalMap(result.Item, &entry); err != nil {
		return r.limit, resetIn, fmt.Errorf("failed to parse rate limit entry: %w", err)
	}

	return max(r.limit-entry.Count, 0), resetIn, nil
}

// Reset clears the current window for a key
func (r *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.windowKey(key, r.now().Truncate(r.window)),
	})
	return err
}

// Limit returns the configured requests per window
func (r *DistributedRateLimiter) Limit() int {
	return r.limit
}
