package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/allocation/internal/readmodel"
)

// DynamoViewStore keeps the allocations read model in DynamoDB, keyed by
// order_id (partition) and sku (sort) so an order's allocations come back
// in one query.
type DynamoViewStore struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoAllocation represents the DynamoDB item structure
type dynamoAllocation struct {
	OrderID  string `dynamodbav:"order_id"`
	Sku      string `dynamodbav:"sku"`
	BatchRef string `dynamodbav:"batch_reference"`
	Qty      int    `dynamodbav:"qty"`
}

func NewDynamoViewStore(client *dynamodb.Client, tableName string) *DynamoViewStore {
	return &DynamoViewStore{client: client, tableName: tableName}
}

func (v *DynamoViewStore) AddAllocation(ctx context.Context, allocation readmodel.Allocation) error {
	item := dynamoAllocation{
		OrderID:  allocation.OrderID,
		Sku:      allocation.Sku,
		BatchRef: allocation.BatchRef,
		Qty:      allocation.Qty,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal allocation: %w", err)
	}

	_, err = v.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(v.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put allocation: %w", err)
	}
	return nil
}

func (v *DynamoViewStore) RemoveAllocation(ctx context.Context, orderID, sku string) error {
	_, err := v.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(v.tableName),
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
			"sku":      &types.AttributeValueMemberS{Value: sku},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	return nil
}

func (v *DynamoViewStore) AllocationsForOrder(ctx context.Context, orderID string) ([]readmodel.Allocation, error) {
	out, err := v.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(v.tableName),
		KeyConditionExpression: aws.String("order_id = :order_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}

	var items []dynamoAllocation
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
	}

	allocations := make([]readmodel.Allocation, 0, len(items))
	for _, item := range items {
		allocations = append(allocations, readmodel.Allocation{
			OrderID:  item.OrderID,
			Sku:      item.Sku,
			BatchRef: item.BatchRef,
			Qty:      item.Qty,
		})
	}
	return allocations, nil
}
