package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/core/entity"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func item(id string, created, updated time.Time, fields map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{
		attrPK:      &types.AttributeValueMemberS{Value: "goods"},
		attrSK:      &types.AttributeValueMemberS{Value: id},
		attrCreated: &types.AttributeValueMemberN{Value: itoa(created.UnixMilli())},
		attrUpdated: &types.AttributeValueMemberN{Value: itoa(updated.UnixMilli())},
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestStore_UpsertBuildsConditionalFieldUpdate(t *testing.T) {
	var captured []*dynamodb.UpdateItemInput
	client := &mockClient{
		UpdateItemFn: func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			captured = append(captured, params)
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}
	s := NewStore(client, "tillsync")

	d := entity.Document{ID: "g1", CreatedAt: t0, UpdatedAt: t0, Data: json.RawMessage(`{"id":"g1","name":"Sugar"}`)}
	require.NoError(t, s.Upsert(context.Background(), entity.Goods, []entity.Document{d}))

	require.Len(t, captured, 1)
	in := captured[0]
	assert.Equal(t, "tillsync", *in.TableName)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "goods"}, in.Key[attrPK])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "g1"}, in.Key[attrSK])
	require.NotNil(t, in.ConditionExpression)
	assert.Contains(t, *in.ConditionExpression, "attribute_not_exists")
	assert.Contains(t, *in.UpdateExpression, "if_not_exists")

	names := make(map[string]bool)
	for _, n := range in.ExpressionAttributeNames {
		names[n] = true
	}
	assert.True(t, names["name"])
	assert.True(t, names["id"])
	assert.True(t, names[attrUpdated])
}

func TestStore_UpsertTreatsStaleWriteAsNoop(t *testing.T) {
	calls := 0
	client := &mockClient{
		UpdateItemFn: func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			calls++
			if calls == 1 {
				return nil, &types.ConditionalCheckFailedException{Message: strPtr("newer copy stored")}
			}
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}
	s := NewStore(client, "tillsync")

	docs := []entity.Document{
		{ID: "a", CreatedAt: t0, UpdatedAt: t0, Data: json.RawMessage(`{}`)},
		{ID: "b", CreatedAt: t0, UpdatedAt: t0, Data: json.RawMessage(`{}`)},
	}
	require.NoError(t, s.Upsert(context.Background(), entity.Sales, docs))
	assert.Equal(t, 2, calls)
}

func TestStore_UpsertPropagatesOtherErrors(t *testing.T) {
	boom := errors.New("throttled")
	client := &mockClient{
		UpdateItemFn: func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, boom
		},
	}
	s := NewStore(client, "tillsync")

	err := s.Upsert(context.Background(), entity.Sales, []entity.Document{{ID: "a", Data: json.RawMessage(`{}`)}})
	assert.ErrorIs(t, err, boom)
}

func TestStore_ScanPaginatesAndStripsKeys(t *testing.T) {
	pages := []*dynamodb.QueryOutput{
		{
			Items: []map[string]types.AttributeValue{
				item("g2", t0.Add(time.Hour), t0.Add(time.Hour), map[string]types.AttributeValue{
					"name": &types.AttributeValueMemberS{Value: "Salt"},
				}),
			},
			LastEvaluatedKey: map[string]types.AttributeValue{attrPK: &types.AttributeValueMemberS{Value: "goods"}},
		},
		{
			Items: []map[string]types.AttributeValue{
				item("g1", t0, t0.Add(2*time.Hour), map[string]types.AttributeValue{
					"name":  &types.AttributeValueMemberS{Value: "Sugar"},
					"price": &types.AttributeValueMemberS{Value: "2.50"},
				}),
			},
		},
	}
	call := 0
	client := &mockClient{
		QueryFn: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if call == 1 {
				assert.NotEmpty(t, params.ExclusiveStartKey)
			}
			out := pages[call]
			call++
			return out, nil
		},
	}
	s := NewStore(client, "tillsync")

	docs, err := s.Scan(context.Background(), entity.Goods)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "g1", docs[0].ID, "sorted by creation time")
	assert.Equal(t, t0.Add(2*time.Hour), docs[0].UpdatedAt)
	assert.JSONEq(t, `{"name":"Sugar","price":"2.50"}`, string(docs[0].Data))
	assert.JSONEq(t, `{"name":"Salt"}`, string(docs[1].Data))
}

func TestStore_Delete(t *testing.T) {
	var got *dynamodb.DeleteItemInput
	client := &mockClient{
		DeleteItemFn: func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			got = params
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}
	s := NewStore(client, "tillsync")

	require.NoError(t, s.Delete(context.Background(), entity.CashEntries, "c1"))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "cashEntries"}, got.Key[attrPK])
}

func strPtr(s string) *string { return &s }
