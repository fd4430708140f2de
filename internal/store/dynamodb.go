package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/linkhoard/linkhoard/internal/models"
)

const defaultItemsTable = "Items"

type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoStore(client *dynamodb.Client) *DynamoStore {
	table := os.Getenv("ITEMS_TABLE_NAME")
	if table == "" {
		table = defaultItemsTable
	}
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Insert(ctx context.Context, item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("[DynamoStore] failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(item_id)"),
	})
	if err != nil {
		return fmt.Errorf("[DynamoStore] failed to insert item: %w", err)
	}

	slog.Info("[DynamoStore] Inserted item",
		slog.String("item_id", item.ItemID),
		slog.String("user_id", item.UserID))
	return nil
}

func (s *DynamoStore) Put(ctx context.Context, item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("[DynamoStore] failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("[DynamoStore] failed to put item: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, itemID string) (*models.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[DynamoStore] failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("[DynamoStore] item %s not found", itemID)
	}

	var item models.Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("[DynamoStore] failed to unmarshal item: %w", err)
	}
	return &item, nil
}

func (s *DynamoStore) UpdateStatus(ctx context.Context, itemID string, status models.ItemStatus, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := "SET #s = :status, updated_at = :now"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(status)},
		":now":    &types.AttributeValueMemberS{Value: now},
	}
	if errorMessage != "" {
		update += ", error_message = :err"
		values[":err"] = &types.AttributeValueMemberS{Value: errorMessage}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"item_id": &types.AttributeValueMemberS{Value: itemID},
		},
		UpdateExpression:          aws.String(update),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("[DynamoStore] failed to update status: %w", err)
	}

	slog.Info("[DynamoStore] Updated item status",
		slog.String("item_id", itemID),
		slog.String("status", string(status)))
	return nil
}

func (s *DynamoStore) ListStuckProcessing(ctx context.Context, olderThan time.Duration) ([]models.Item, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)

	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		FilterExpression:         aws.String("#s = :processing AND updated_at < :cutoff"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: string(models.StatusProcessing)},
			":cutoff":     &types.AttributeValueMemberS{Value: cutoff},
		},
	}

	var stuck []models.Item
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoStore] stuck-item scan failed: %w", err)
		}
		var page []models.Item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoStore] failed to unmarshal stuck items: %w", err)
		}
		stuck = append(stuck, page...)
	}

	if len(stuck) > 0 {
		slog.Warn("[DynamoStore] Found items stuck in processing",
			slog.Int("count", len(stuck)))
	}
	return stuck, nil
}
