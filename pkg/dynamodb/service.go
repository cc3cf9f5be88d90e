package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
	"github.com/vignesh-goutham/marketsim/pkg/backtest"
	"github.com/vignesh-goutham/marketsim/pkg/ledger"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
	"github.com/vignesh-goutham/marketsim/pkg/types"
)

const (
	summaryKey       = "SUMMARY"
	batchLimit       = 25
	maxBatchAttempts = 5
)

// Client is the subset of the DynamoDB API the run store uses
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Service stores simulation runs with single table design. Each run is one
// partition RUN#<id> holding a SUMMARY item and a SNAPSHOT#<date> item per
// simulated date.
type Service struct {
	client    Client
	tableName string
}

// NewService creates a new DynamoDB service instance
func NewService(ctx context.Context, region, tableName string) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewServiceWithClient(dynamodb.NewFromConfig(cfg), tableName), nil
}

func NewServiceWithClient(client Client, tableName string) *Service {
	return &Service{
		client:    client,
		tableName: tableName,
	}
}

func runKey(runID string) string {
	return "RUN#" + runID
}

func snapshotKey(date time.Time) string {
	return "SNAPSHOT#" + date.Format(marketdata.DateLayout)
}

// Summarize builds the summary of a run. runErr is the error returned with
// the result, if any.
func Summarize(result *backtest.Result, runErr error) types.RunSummary {
	summary := types.RunSummary{
		RunID:        result.RunID,
		Status:       types.RunStatusCompleted,
		Start:        result.Start,
		End:          result.End,
		StartingCash: result.StartingCash,
		FinalValue:   result.FinalValue(),
		Days:         len(result.Snapshots),
		Executed:     result.Executed,
		Dropped:      len(result.Dropped),
		CreatedAt:    time.Now().UTC(),
	}
	if runErr != nil {
		summary.Status = types.RunStatusFailed
		summary.Error = runErr.Error()
		var simErr *ledger.SimulationError
		if errors.As(runErr, &simErr) {
			summary.ErrorKind = simErr.Kind.String()
		}
	}
	return summary
}

// SnapshotRecords converts ledger snapshots to their stored form
func SnapshotRecords(snapshots []ledger.Snapshot) []types.SnapshotRecord {
	out := make([]types.SnapshotRecord, len(snapshots))
	for i, s := range snapshots {
		out[i] = types.SnapshotRecord{
			Date:       s.Date,
			Cash:       s.Cash,
			Longs:      s.Longs,
			Shorts:     s.Shorts,
			TotalValue: s.TotalValue,
			Leverage:   s.Leverage,
			Holdings:   s.Holdings(),
		}
	}
	return out
}

// SaveRun writes the summary and every snapshot of a run
func (d *Service) SaveRun(ctx context.Context, result *backtest.Result, runErr error) error {
	summary := Summarize(result, runErr)
	if err := d.SaveSummary(ctx, summary); err != nil {
		return err
	}

	var writeRequests []dynamodbtypes.WriteRequest
	for _, record := range SnapshotRecords(result.Snapshots) {
		item, err := d.marshalItem(runKey(summary.RunID), snapshotKey(record.Date), types.ItemTypeSnapshot, record, summary.CreatedAt)
		if err != nil {
			return err
		}
		writeRequests = append(writeRequests, dynamodbtypes.WriteRequest{
			PutRequest: &dynamodbtypes.PutRequest{
				Item: item,
			},
		})
	}

	// Batch write in chunks of 25 (DynamoDB limit)
	for i := 0; i < len(writeRequests); i += batchLimit {
		end := min(i+batchLimit, len(writeRequests))
		if err := d.batchWrite(ctx, writeRequests[i:end]); err != nil {
			return err
		}
	}

	log.Info().Str("run_id", summary.RunID).Str("table", d.tableName).Int("snapshots", len(writeRequests)).Msg("Saved run")
	return nil
}

// SaveSummary saves a single run summary
func (d *Service) SaveSummary(ctx context.Context, summary types.RunSummary) error {
	item, err := d.marshalItem(runKey(summary.RunID), summaryKey, types.ItemTypeRun, summary, summary.CreatedAt)
	if err != nil {
		return err
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func (d *Service) batchWrite(ctx context.Context, requests []dynamodbtypes.WriteRequest) error {
	pending := map[string][]dynamodbtypes.WriteRequest{d.tableName: requests}
	for attempt := 0; attempt < maxBatchAttempts; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("failed to batch write items: %w", err)
		}
		if out == nil || len(out.UnprocessedItems[d.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
		log.Debug().Int("unprocessed", len(pending[d.tableName])).Int("attempt", attempt+1).Msg("Retrying unprocessed items")
	}
	return fmt.Errorf("failed to batch write items: %d unprocessed after %d attempts", len(pending[d.tableName]), maxBatchAttempts)
}

// LoadRun loads a run summary and its snapshots in date order
func (d *Service) LoadRun(ctx context.Context, runID string) (*types.RunSummary, []types.SnapshotRecord, error) {
	var summary *types.RunSummary
	var snapshots []types.SnapshotRecord

	var startKey map[string]dynamodbtypes.AttributeValue
	for {
		result, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.tableName),
			KeyConditionExpression: aws.String("pk = :pk"),
			ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
				":pk": &dynamodbtypes.AttributeValueMemberS{Value: runKey(runID)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query run %s: %w", runID, err)
		}

		for _, item := range result.Items {
			var unifiedItem types.UnifiedItem
			if err := attributevalue.UnmarshalMap(item, &unifiedItem); err != nil {
				return nil, nil, fmt.Errorf("failed to unmarshal item: %w", err)
			}

			switch unifiedItem.Type {
			case types.ItemTypeRun:
				var s types.RunSummary
				if err := json.Unmarshal([]byte(unifiedItem.Data), &s); err != nil {
					return nil, nil, fmt.Errorf("failed to decode summary: %w", err)
				}
				summary = &s
			case types.ItemTypeSnapshot:
				var s types.SnapshotRecord
				if err := json.Unmarshal([]byte(unifiedItem.Data), &s); err != nil {
					return nil, nil, fmt.Errorf("failed to decode snapshot %s: %w", unifiedItem.SK, err)
				}
				snapshots = append(snapshots, s)
			}
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	if summary == nil {
		return nil, nil, fmt.Errorf("run %s not found", runID)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Date.Before(snapshots[j].Date) })
	return summary, snapshots, nil
}

func (d *Service) marshalItem(pk, sk string, itemType types.ItemType, v any, createdAt time.Time) (map[string]dynamodbtypes.AttributeValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", itemType, err)
	}

	unifiedItem := types.UnifiedItem{
		PK:        pk,
		SK:        sk,
		Type:      itemType,
		Data:      string(data),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	item, err := attributevalue.MarshalMap(unifiedItem)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return item, nil
}
