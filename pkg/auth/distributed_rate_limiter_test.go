package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDynamoDB struct {
	mock.Mock
}

func (m *mockDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(params)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(params)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(params)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func countAttrs(n string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: "RATELIMIT#USER#u1#0"},
		"SK":    &types.AttributeValueMemberS{Value: rateLimitSK},
		"Count": &types.AttributeValueMemberN{Value: n},
	}
}

func newTestDistributed(client DynamoDBAPI) *DistributedRateLimiter {
	l := NewDistributedUserRateLimiter(client, "citegraph", 3)
	l.now = func() time.Time { return time.Unix(1_700_000_030, 0) }
	return l
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	client := &mockDynamoDB{}
	client.On("UpdateItem", mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
		return *in.TableName == "citegraph" && pk == "RATELIMIT#USER#u1#1699999980"
	})).Return(&dynamodb.UpdateItemOutput{Attributes: countAttrs("2")}, nil).Once()

	ok, err := newTestDistributed(client).Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	client.AssertExpectations(t)
}

func TestDistributedRateLimiter_LimitReached(t *testing.T) {
	client := &mockDynamoDB{}
	client.On("UpdateItem", mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("limit")}).Once()

	ok, err := newTestDistributed(client).Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDistributedRateLimiter_FailsOpen(t *testing.T) {
	client := &mockDynamoDB{}
	client.On("UpdateItem", mock.Anything).Return(nil, errors.New("throttled")).Once()

	ok, err := newTestDistributed(client).Allow(context.Background(), "u1")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestDistributedRateLimiter_RemainingAndReset(t *testing.T) {
	client := &mockDynamoDB{}
	client.On("GetItem", mock.Anything).Return(&dynamodb.GetItemOutput{Item: countAttrs("2")}, nil).Once()
	client.On("DeleteItem", mock.Anything).Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	l := newTestDistributed(client)
	remaining, resetIn, err := l.Remaining(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, 10*time.Second, resetIn)

	require.NoError(t, l.Reset(context.Background(), "u1"))
	assert.Equal(t, 3, l.Limit())
	client.AssertExpectations(t)
}

func strPtr(s string) *string { return &s }
