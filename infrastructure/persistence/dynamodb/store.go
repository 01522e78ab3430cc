package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"citegraph/application/ports"
	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

const (
	// Index names of the single-table layout
	citingIndex = "GSI1"
	citedIndex  = "GSI2"

	// maxBatchGetKeys is the BatchGetItem per-request key limit
	maxBatchGetKeys = 100

	// maxVoteAttempts bounds the optimistic retry loop of Apply
	maxVoteAttempts = 5

	// maxUnprocessedRetries bounds re-submission of unprocessed batch keys
	maxUnprocessedRetries = 5

	// adjacencyConcurrency bounds parallel index queries per adjacency lookup
	adjacencyConcurrency = 8
)

// Store implements ports.Store on a single DynamoDB table.
//
// Item layout:
//
//	PAPER#<id>            METADATA      paper attributes + Up/Down counters
//	CITATION#<id>         METADATA      citation + Up/Down, GSI1=CITING#, GSI2=CITED#
//	PAIR#<citing>#<cited> PAIR          uniqueness guard for the ordered pair
//	VOTE#<kind>#<target>  USER#<user>   one stored vote
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger
	newID     func() string
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a DynamoDB store
func NewStore(client API, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
		newID:     valueobjects.NewID,
	}
}

// Papers returns the paper repository view
func (s *Store) Papers() ports.PaperRepository { return &paperRepository{s} }

// Citations returns the citation repository view
func (s *Store) Citations() ports.CitationRepository { return &citationRepository{s} }

// Votes returns the vote ledger view
func (s *Store) Votes() ports.VoteLedger { return &voteLedger{s} }

// Ping describes the table to verify reachability
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return storageErr("ping", err)
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (s *Store) Close() error { return nil }

// CreateTable creates the table and its indexes with on-demand billing.
// It is used by local development and the integration tests.
func (s *Store) CreateTable(ctx context.Context) error {
	str := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	gsi := func(name, pk, sk string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(pk), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(sk), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			str("PK"), str("SK"), str("GSI1PK"), str("GSI1SK"), str("GSI2PK"), str("GSI2SK"),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(citingIndex, "GSI1PK", "GSI1SK"),
			gsi(citedIndex, "GSI2PK", "GSI2SK"),
		},
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dynamodb: create table %s: %w", s.tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)}, tableWaitTimeout)
}

// storageErr passes domain errors and cancellations through and marks
// everything else as a storage failure.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsAppError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.ErrStorageUnavailable(op, fmt.Errorf("dynamodb: %w", err))
}

// cancellationCodes extracts per-item reason codes from a cancelled transaction
func cancellationCodes(err error) ([]string, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	codes := make([]string, len(tce.CancellationReasons))
	for i, r := range tce.CancellationReasons {
		codes[i] = aws.ToString(r.Code)
	}
	return codes, true
}

func isConditionFailure(code string) bool {
	return code == "ConditionalCheckFailed"
}
