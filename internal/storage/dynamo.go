package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

// dynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore implements Store on DynamoDB. Each collection maps to one table
// named tablePrefix+collection, keyed by the "id" attribute.
type DynamoStore struct {
	client      dynamoAPI
	tablePrefix string
	logger      *logging.Logger
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tablePrefix string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("storage: dynamodb client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:      client,
		tablePrefix: tablePrefix,
		logger:      logger,
	}
}

var _ Store = (*DynamoStore)(nil)

func (s *DynamoStore) table(collection string) string {
	return s.tablePrefix + collection
}

func key(id string) Item {
	return Item{"id": &types.AttributeValueMemberS{Value: id}}
}

func (s *DynamoStore) GetItem(ctx context.Context, collection, id string) (Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table(collection)),
		Key:       key(id),
	})
	if err != nil {
		return nil, unavailable("get", collection, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("storage: get %s/%s: %w", collection, id, ErrNotFound)
	}
	return out.Item, nil
}

func (s *DynamoStore) QueryItems(ctx context.Context, collection string, q Query) ([]Item, error) {
	expr, names, values, err := buildFilterExpression(q.Filters)
	if err != nil {
		return nil, fmt.Errorf("storage: query %s: %w", collection, err)
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(s.table(collection)),
	}
	if expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var items []Item
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, unavailable("query", collection, err)
		}
		for _, item := range out.Items {
			items = append(items, item)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return sortAndLimit(items, q), nil
}

func (s *DynamoStore) PutItem(ctx context.Context, collection, id string, item Item, ifNotExists bool) error {
	stored := make(Item, len(item)+1)
	for k, v := range item {
		stored[k] = v
	}
	stored["id"] = &types.AttributeValueMemberS{Value: id}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table(collection)),
		Item:      stored,
	}
	if ifNotExists {
		input.ConditionExpression = aws.String("attribute_not_exists(id)")
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("storage: put %s/%s: %w", collection, id, ErrConditionFailed)
		}
		return unavailable("put", collection, err)
	}
	return nil
}

func (s *DynamoStore) UpdateItem(ctx context.Context, collection, id string, set Item, guard *Guard) error {
	if len(set) == 0 {
		return nil
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var clauses []string
	i := 0
	for field, value := range set {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = field
		values[valueKey] = value
		clauses = append(clauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}

	condition := "attribute_exists(id)"
	if guard != nil {
		names["#guard"] = guard.Field
		values[":guard"] = &types.AttributeValueMemberS{Value: guard.Equals}
		condition += " AND #guard = :guard"
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table(collection)),
		Key:                       key(id),
		UpdateExpression:          aws.String("SET " + strings.Join(clauses, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String(condition),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("storage: update %s/%s: %w", collection, id, ErrConditionFailed)
		}
		return unavailable("update", collection, err)
	}
	return nil
}

func (s *DynamoStore) DeleteItem(ctx context.Context, collection, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table(collection)),
		Key:       key(id),
	})
	if err != nil {
		return unavailable("delete", collection, err)
	}
	return nil
}

// buildFilterExpression translates equality and range predicates into a
// DynamoDB filter expression. This is the only place filter translation
// happens; every entity repository goes through it.
func buildFilterExpression(filters []Filter) (string, map[string]string, map[string]types.AttributeValue, error) {
	if len(filters) == 0 {
		return "", nil, nil, nil
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var clauses []string

	for i, f := range filters {
		nameKey := fmt.Sprintf("#f%d", i)
		names[nameKey] = f.Field

		switch {
		case f.Eq != nil:
			av, err := attributevalue.Marshal(f.Eq)
			if err != nil {
				return "", nil, nil, fmt.Errorf("marshal filter %s: %w", f.Field, err)
			}
			valueKey := fmt.Sprintf(":eq%d", i)
			values[valueKey] = av
			clauses = append(clauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		case f.GTE != nil || f.LTE != nil:
			if f.GTE != nil {
				av, err := attributevalue.Marshal(f.GTE)
				if err != nil {
					return "", nil, nil, fmt.Errorf("marshal filter %s: %w", f.Field, err)
				}
				valueKey := fmt.Sprintf(":gte%d", i)
				values[valueKey] = av
				clauses = append(clauses, fmt.Sprintf("%s >= %s", nameKey, valueKey))
			}
			if f.LTE != nil {
				av, err := attributevalue.Marshal(f.LTE)
				if err != nil {
					return "", nil, nil, fmt.Errorf("marshal filter %s: %w", f.Field, err)
				}
				valueKey := fmt.Sprintf(":lte%d", i)
				values[valueKey] = av
				clauses = append(clauses, fmt.Sprintf("%s <= %s", nameKey, valueKey))
			}
		default:
			return "", nil, nil, fmt.Errorf("filter %s has no predicate", f.Field)
		}
	}

	return strings.Join(clauses, " AND "), names, values, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var txn *types.TransactionCanceledException
	return errors.As(err, &txn)
}
