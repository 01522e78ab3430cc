package dynamodb

import (
	"context"
	"errors"
	"fmt"
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
)

// errVoteRaced signals that the stored vote changed between read and write
var errVoteRaced = errors.New("vote changed concurrently")

type voteLedger struct{ s *Store }

// Apply reads the stored vote, resolves the transition and commits the vote
// mutation together with the target's counter update in one conditional
// transaction. A lost race is retried a bounded number of times.
func (l *voteLedger) Apply(ctx context.Context, req entities.VoteRequest) (valueobjects.VoteValue, error) {
	var lastErr error
	for attempt := 0; attempt < maxVoteAttempts; attempt++ {
		next, err := l.tryApply(ctx, req)
		if !errors.Is(err, errVoteRaced) {
			return next, storageErr("apply vote", err)
		}
		lastErr = err

		l.s.logger.Debug("Vote conflict, retrying",
			zap.String("userID", req.UserID),
			zap.String("targetID", req.TargetID),
			zap.Int("attempt", attempt+1),
		)
		if err := sleepCtx(ctx, backoff(attempt)); err != nil {
			return valueobjects.VoteNone, err
		}
	}
	return valueobjects.VoteNone, pkgerrors.ErrStorageUnavailable("apply vote",
		fmt.Errorf("gave up after %d attempts: %w", maxVoteAttempts, lastErr))
}

func (l *voteLedger) tryApply(ctx context.Context, req entities.VoteRequest) (valueobjects.VoteValue, error) {
	voteKey := key(votePK(req.TargetKind, req.TargetID), userSK(req.UserID))

	out, err := l.s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.s.tableName),
		Key:            voteKey,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return valueobjects.VoteNone, err
	}

	current := valueobjects.VoteNone
	var stored voteItem
	if out.Item != nil {
		if err := attributevalue.UnmarshalMap(out.Item, &stored); err != nil {
			return valueobjects.VoteNone, storageErr("apply vote", fmt.Errorf("failed to unmarshal vote: %w", err))
		}
		current = valueobjects.VoteValue(stored.Value)
	}

	action, next := entities.ResolveVote(current, req.Value)
	if action == entities.VoteActionNone {
		return next, nil
	}

	voteWrite, err := l.voteWrite(req, action, current, next, stored.VoteID)
	if err != nil {
		return valueobjects.VoteNone, err
	}
	counterWrite, err := l.counterWrite(req, current, next)
	if err != nil {
		return valueobjects.VoteNone, err
	}

	_, err = l.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{voteWrite, counterWrite},
	})
	if err == nil {
		return next, nil
	}

	codes, ok := cancellationCodes(err)
	if !ok {
		return valueobjects.VoteNone, err
	}
	switch {
	case len(codes) > 1 && isConditionFailure(codes[1]):
		if action.NeedsTarget() {
			return valueobjects.VoteNone, pkgerrors.ErrTargetNotFound(req.TargetKind.String(), req.TargetID)
		}
		// The target is gone; clear the orphaned vote on its own.
		return next, l.deleteOrphan(ctx, voteKey, current)
	case len(codes) > 0 && isConditionFailure(codes[0]):
		return valueobjects.VoteNone, errVoteRaced
	default:
		for _, c := range codes {
			if c == "TransactionConflict" {
				return valueobjects.VoteNone, errVoteRaced
			}
		}
	}
	return valueobjects.VoteNone, err
}

// voteWrite builds the vote item mutation guarded on the value read earlier
func (l *voteLedger) voteWrite(req entities.VoteRequest, action entities.VoteAction, current, next valueobjects.VoteValue, voteID string) (types.TransactWriteItem, error) {
	table := aws.String(l.s.tableName)
	voteKey := key(votePK(req.TargetKind, req.TargetID), userSK(req.UserID))
	now := time.Now().UTC().Format(time.RFC3339Nano)
	unchanged := expression.Name("Value").Equal(expression.Value(current.Int()))

	switch action {
	case entities.VoteActionInsert:
		item, err := attributevalue.MarshalMap(voteItem{
			PK:         votePK(req.TargetKind, req.TargetID),
			SK:         userSK(req.UserID),
			EntityType: entityVote,
			VoteID:     l.s.newID(),
			UserID:     req.UserID,
			TargetKind: req.TargetKind.String(),
			TargetID:   req.TargetID,
			Value:      next.Int(),
			UpdatedAt:  now,
		})
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to marshal vote: %w", err)
		}
		expr, err := expression.NewBuilder().
			WithCondition(expression.Name("PK").AttributeNotExists()).Build()
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to build condition: %w", err)
		}
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                table,
			Item:                     item,
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		}}, nil

	case entities.VoteActionUpdate:
		expr, err := expression.NewBuilder().
			WithUpdate(expression.
				Set(expression.Name("Value"), expression.Value(next.Int())).
				Set(expression.Name("UpdatedAt"), expression.Value(now))).
			WithCondition(unchanged).
			Build()
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to build update: %w", err)
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 table,
			Key:                       voteKey,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil

	case entities.VoteActionDelete:
		expr, err := expression.NewBuilder().WithCondition(unchanged).Build()
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to build condition: %w", err)
		}
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 table,
			Key:                       voteKey,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	}
	return types.TransactWriteItem{}, fmt.Errorf("unexpected vote action %s", action)
}

// counterWrite adjusts the target's Up/Down counters. The existence
// condition doubles as the TargetNotFound check.
func (l *voteLedger) counterWrite(req entities.VoteRequest, current, next valueobjects.VoteValue) (types.TransactWriteItem, error) {
	up, down := counterDelta(current, next)
	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Add(expression.Name("Up"), expression.Value(up)).
			Add(expression.Name("Down"), expression.Value(down))).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build counter update: %w", err)
	}
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(l.s.tableName),
		Key:                       key(targetPK(req.TargetKind, req.TargetID), metadataSK),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}, nil
}

func (l *voteLedger) deleteOrphan(ctx context.Context, voteKey map[string]types.AttributeValue, current valueobjects.VoteValue) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("Value").Equal(expression.Value(current.Int()))).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}
	_, err = l.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{{Delete: &types.Delete{
			TableName:                 aws.String(l.s.tableName),
			Key:                       voteKey,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}},
	})
	if _, ok := cancellationCodes(err); ok {
		return errVoteRaced
	}
	return err
}

// Tally reads the denormalised counters of the targets with BatchGetItem
func (l *voteLedger) Tally(ctx context.Context, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.Aggregate, error) {
	out := make(map[string]valueobjects.Aggregate, len(ids))
	byPK := make(map[string]string, len(ids))
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range dedupe(ids) {
		out[id] = valueobjects.Aggregate{}
		pk := targetPK(kind, id)
		byPK[pk] = id
		keys = append(keys, key(pk, metadataSK))
	}

	items, err := l.s.batchGet(ctx, keys, "PK", "Up", "Down")
	if err != nil {
		return nil, storageErr("tally", err)
	}
	for _, raw := range items {
		var c counterItem
		if err := attributevalue.UnmarshalMap(raw, &c); err != nil {
			return nil, storageErr("tally", fmt.Errorf("failed to unmarshal counters: %w", err))
		}
		if id, ok := byPK[c.PK]; ok {
			out[id] = valueobjects.NewAggregate(c.Up, c.Down)
		}
	}
	return out, nil
}

// UserVotes fetches the caller's vote items directly by key
func (l *voteLedger) UserVotes(ctx context.Context, userID string, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.VoteValue, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range dedupe(ids) {
		keys = append(keys, key(votePK(kind, id), userSK(userID)))
	}

	items, err := l.s.batchGet(ctx, keys)
	if err != nil {
		return nil, storageErr("user votes", err)
	}

	out := make(map[string]valueobjects.VoteValue, len(items))
	for _, raw := range items {
		var v voteItem
		if err := attributevalue.UnmarshalMap(raw, &v); err != nil {
			return nil, storageErr("user votes", fmt.Errorf("failed to unmarshal vote: %w", err))
		}
		out[v.TargetID] = valueobjects.VoteValue(v.Value)
	}
	return out, nil
}

// Downvoted scans targets of the kind whose Down counter is positive
func (l *voteLedger) Downvoted(ctx context.Context, kind valueobjects.TargetKind) (map[string]valueobjects.Aggregate, error) {
	entity, idAttr := entityPaper, "PaperID"
	if kind == valueobjects.TargetEdge {
		entity, idAttr = entityCitation, "CitationID"
	}

	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entity)).
			And(expression.Name("Down").GreaterThan(expression.Value(0)))).
		WithProjection(expression.NamesList(expression.Name(idAttr), expression.Name("Up"), expression.Name("Down"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	out := make(map[string]valueobjects.Aggregate)
	paginator := dynamodb.NewScanPaginator(l.s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(l.s.tableName),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storageErr("downvoted", err)
		}
		for _, raw := range page.Items {
			var row struct {
				PaperID    string `dynamodbav:"PaperID"`
				CitationID string `dynamodbav:"CitationID"`
				Up         int    `dynamodbav:"Up"`
				Down       int    `dynamodbav:"Down"`
			}
			if err := attributevalue.UnmarshalMap(raw, &row); err != nil {
				return nil, storageErr("downvoted", fmt.Errorf("failed to unmarshal counters: %w", err))
			}
			id := row.PaperID
			if kind == valueobjects.TargetEdge {
				id = row.CitationID
			}
			out[id] = valueobjects.NewAggregate(row.Up, row.Down)
		}
	}
	return out, nil
}
