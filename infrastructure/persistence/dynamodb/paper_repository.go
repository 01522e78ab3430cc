package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"citegraph/domain/core/entities"
	pkgerrors "citegraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type paperRepository struct{ s *Store }

// Save persists a new paper; existing ids are rejected
func (r *paperRepository) Save(ctx context.Context, paper *entities.Paper) error {
	if paper.ID == "" {
		paper.ID = r.s.newID()
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(newPaperItem(paper))
	if err != nil {
		return fmt.Errorf("failed to marshal paper: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return pkgerrors.NewConflictError("paper already exists").WithDetail("paper_id", paper.ID)
	}
	if err != nil {
		return storageErr("save paper", err)
	}

	r.s.logger.Debug("Paper saved", zap.String("paperID", paper.ID))
	return nil
}

// GetByID retrieves a paper by id
func (r *paperRepository) GetByID(ctx context.Context, id string) (*entities.Paper, error) {
	out, err := r.s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.s.tableName),
		Key:       key(paperPK(id), metadataSK),
	})
	if err != nil {
		return nil, storageErr("get paper", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.ErrPaperNotFound(id)
	}

	var item paperItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, storageErr("get paper", fmt.Errorf("failed to unmarshal paper: %w", err))
	}
	return item.toEntity()
}

// GetByIDs loads papers with BatchGetItem
func (r *paperRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range dedupe(ids) {
		keys = append(keys, key(paperPK(id), metadataSK))
	}

	items, err := r.s.batchGet(ctx, keys)
	if err != nil {
		return nil, storageErr("get papers", err)
	}

	out := make(map[string]*entities.Paper, len(items))
	for _, raw := range items {
		var item paperItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, storageErr("get papers", fmt.Errorf("failed to unmarshal paper: %w", err))
		}
		p, err := item.toEntity()
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

// List scans all papers and orders them for listing
func (r *paperRepository) List(ctx context.Context) ([]*entities.Paper, error) {
	return r.Search(ctx, "", 0)
}

// Search scans papers and filters them in process. DynamoDB's contains() is
// case-sensitive, so matching happens on the decoded entities.
func (r *paperRepository) Search(ctx context.Context, query string, limit int) ([]*entities.Paper, error) {
	papers, err := r.scanPapers(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.TrimSpace(query)
	out := papers[:0]
	for _, p := range papers {
		if p.Matches(q) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return entities.LessInListing(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *paperRepository) scanPapers(ctx context.Context) ([]*entities.Paper, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityPaper))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(r.s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var papers []*entities.Paper
	paginator := dynamodb.NewScanPaginator(r.s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storageErr("scan papers", err)
		}
		for _, raw := range page.Items {
			var item paperItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, storageErr("scan papers", fmt.Errorf("failed to unmarshal paper: %w", err))
			}
			p, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// batchGet runs BatchGetItem in chunks, re-submitting unprocessed keys a
// bounded number of times. With no attributes whole items are returned.
func (s *Store) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, attributes ...string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue

	var projection *expression.Expression
	if len(attributes) > 0 {
		names := make([]expression.NameBuilder, 0, len(attributes))
		for _, a := range attributes {
			names = append(names, expression.Name(a))
		}
		expr, err := expression.NewBuilder().
			WithProjection(expression.NamesList(names[0], names[1:]...)).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build projection: %w", err)
		}
		projection = &expr
	}

	for start := 0; start < len(keys); start += maxBatchGetKeys {
		end := start + maxBatchGetKeys
		if end > len(keys) {
			end = len(keys)
		}

		ka := types.KeysAndAttributes{Keys: keys[start:end]}
		if projection != nil {
			ka.ProjectionExpression = projection.Projection()
			ka.ExpressionAttributeNames = projection.Names()
		}
		request := map[string]types.KeysAndAttributes{s.tableName: ka}

		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > maxUnprocessedRetries {
				return nil, fmt.Errorf("batch get: unprocessed keys remain after %d attempts", maxUnprocessedRetries)
			}
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			items = append(items, out.Responses[s.tableName]...)
			request = out.UnprocessedKeys
			if len(request) > 0 {
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
			}
		}
	}
	return items, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func backoff(attempt int) time.Duration {
	d := 25 * time.Millisecond << attempt
	if d > time.Second {
		d = time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
