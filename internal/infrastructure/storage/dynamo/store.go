package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"tillsync/internal/core/entity"
)

const (
	attrPK      = "pk"
	attrSK      = "sk"
	attrCreated = "_created"
	attrUpdated = "_updated"
)

// Store is the remote store client backed by DynamoDB.
type Store struct {
	client API
	table  string
}

// NewStore creates a store over an existing table.
func NewStore(client API, table string) *Store {
	return &Store{client: client, table: table}
}

// Ping reads a sentinel key; any answer from the service means it is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key("__ping", "__ping"),
	})
	return err
}

// Scan queries every item of a collection's partition.
func (s *Store) Scan(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	keyCond := expression.Key(attrPK).Equal(expression.Value(string(c)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var docs []entity.Document
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			d, err := itemToDocument(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	entity.SortDocuments(docs)
	return docs, nil
}

// Upsert writes each document with a conditional UpdateItem. DynamoDB has no
// batched conditional update, so documents are sent one by one; a rejected
// condition means the table already holds a newer copy and is not an error.
func (s *Store) Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	for _, d := range docs {
		input, err := s.updateInput(c, d)
		if err != nil {
			return err
		}
		if _, err := s.client.UpdateItem(ctx, input); err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return fmt.Errorf("update %s/%s: %w", c, d.ID, err)
		}
	}
	return nil
}

// Delete removes one item. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, c entity.Collection, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key(string(c), id),
	})
	return err
}

func (s *Store) updateInput(c entity.Collection, d entity.Document) (*dynamodb.UpdateItemInput, error) {
	var fields map[string]any
	if err := json.Unmarshal(d.Data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c, d.ID, err)
	}

	updated := d.UpdatedAt.UnixMilli()
	update := expression.Set(expression.Name(attrUpdated), expression.Value(updated)).
		Set(expression.Name(attrCreated),
			expression.IfNotExists(expression.Name(attrCreated), expression.Value(d.CreatedAt.UnixMilli())))
	for name, value := range fields {
		if reserved(name) {
			continue
		}
		update = update.Set(expression.Name(name), expression.Value(value))
	}

	cond := expression.Or(
		expression.AttributeNotExists(expression.Name(attrPK)),
		expression.Name(attrUpdated).LessThanEqual(expression.Value(updated)),
	)

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(string(c), d.ID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

func itemToDocument(item map[string]types.AttributeValue) (entity.Document, error) {
	var fields map[string]any
	if err := attributevalue.UnmarshalMap(item, &fields); err != nil {
		return entity.Document{}, fmt.Errorf("unmarshal item: %w", err)
	}

	id, _ := fields[attrSK].(string)
	created, err := millis(fields[attrCreated])
	if err != nil {
		return entity.Document{}, fmt.Errorf("item %s: %w", id, err)
	}
	updated, err := millis(fields[attrUpdated])
	if err != nil {
		return entity.Document{}, fmt.Errorf("item %s: %w", id, err)
	}

	for _, name := range []string{attrPK, attrSK, attrCreated, attrUpdated} {
		delete(fields, name)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return entity.Document{}, fmt.Errorf("encode item %s: %w", id, err)
	}

	return entity.Document{ID: id, CreatedAt: created, UpdatedAt: updated, Data: data}, nil
}

func millis(v any) (time.Time, error) {
	switch n := v.(type) {
	case float64:
		return time.UnixMilli(int64(n)).UTC(), nil
	case string:
		ms, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("missing timestamp attribute")
}

func reserved(name string) bool {
	switch name {
	case attrPK, attrSK, attrCreated, attrUpdated:
		return true
	}
	return false
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}
