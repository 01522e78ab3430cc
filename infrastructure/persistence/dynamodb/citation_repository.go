package dynamodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type citationRepository struct{ s *Store }

// Save writes the citation, its pair guard and endpoint existence checks in
// one transaction. The transaction item order is relied upon when decoding
// cancellation reasons.
func (r *citationRepository) Save(ctx context.Context, c *entities.Citation) error {
	if c.ID == "" {
		c.ID = r.s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	citation, err := attributevalue.MarshalMap(newCitationItem(c))
	if err != nil {
		return fmt.Errorf("failed to marshal citation: %w", err)
	}
	pair, err := attributevalue.MarshalMap(pairItem{
		PK:         pairPK(c.CitingID, c.CitedID),
		SK:         entityPair,
		EntityType: entityPair,
		CitationID: c.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal pair guard: %w", err)
	}

	notExists, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}
	exists, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeExists()).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	table := aws.String(r.s.tableName)
	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:                table,
			Item:                     pair,
			ConditionExpression:      notExists.Condition(),
			ExpressionAttributeNames: notExists.Names(),
		}},
		{Put: &types.Put{
			TableName:                table,
			Item:                     citation,
			ConditionExpression:      notExists.Condition(),
			ExpressionAttributeNames: notExists.Names(),
		}},
		{ConditionCheck: &types.ConditionCheck{
			TableName:                table,
			Key:                      key(paperPK(c.CitingID), metadataSK),
			ConditionExpression:      exists.Condition(),
			ExpressionAttributeNames: exists.Names(),
		}},
		{ConditionCheck: &types.ConditionCheck{
			TableName:                table,
			Key:                      key(paperPK(c.CitedID), metadataSK),
			ConditionExpression:      exists.Condition(),
			ExpressionAttributeNames: exists.Names(),
		}},
	}

	_, err = r.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if codes, ok := cancellationCodes(err); ok {
		switch {
		case len(codes) > 0 && isConditionFailure(codes[0]):
			return pkgerrors.ErrDuplicateCitation(c.CitingID, c.CitedID)
		case len(codes) > 2 && isConditionFailure(codes[2]):
			return pkgerrors.ErrPaperNotFound(c.CitingID)
		case len(codes) > 3 && isConditionFailure(codes[3]):
			return pkgerrors.ErrPaperNotFound(c.CitedID)
		}
	}
	if err != nil {
		return storageErr("save citation", err)
	}

	r.s.logger.Debug("Citation saved",
		zap.String("citationID", c.ID),
		zap.String("citingID", c.CitingID),
		zap.String("citedID", c.CitedID),
	)
	return nil
}

// GetByID retrieves a citation by id
func (r *citationRepository) GetByID(ctx context.Context, id string) (*entities.Citation, error) {
	out, err := r.s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.s.tableName),
		Key:       key(citationPK(id), metadataSK),
	})
	if err != nil {
		return nil, storageErr("get citation", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("citation " + id)
	}

	var item citationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, storageErr("get citation", fmt.Errorf("failed to unmarshal citation: %w", err))
	}
	return item.toEntity()
}

// GetAdjacent queries the citing and cited indexes for every paper in
// parallel and merges the results
func (r *citationRepository) GetAdjacent(ctx context.Context, paperIDs []string, direction valueobjects.Direction) ([]*entities.Citation, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		out  []*entities.Citation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(adjacencyConcurrency)

	query := func(index, partition string) {
		g.Go(func() error {
			found, err := r.queryIndex(gctx, index, partition)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, c := range found {
				if !seen[c.ID] {
					seen[c.ID] = true
					out = append(out, c)
				}
			}
			return nil
		})
	}

	for _, id := range dedupe(paperIDs) {
		if direction.FollowsOutgoing() {
			query(citingIndex, citingKey(id))
		}
		if direction.FollowsIncoming() {
			query(citedIndex, citedKey(id))
		}
	}

	if err := g.Wait(); err != nil {
		return nil, storageErr("get adjacent", err)
	}
	return out, nil
}

func (r *citationRepository) queryIndex(ctx context.Context, index, partition string) ([]*entities.Citation, error) {
	pkName := "GSI1PK"
	if index == citedIndex {
		pkName = "GSI2PK"
	}
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(pkName).Equal(expression.Value(partition))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.s.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var out []*entities.Citation
	paginator := dynamodb.NewQueryPaginator(r.s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var item citationItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, storageErr("get adjacent", fmt.Errorf("failed to unmarshal citation: %w", err))
			}
			c, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}
