package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/plume/internal/keys"
)

// DynamoAPI is the slice of the DynamoDB client the engine uses. It
// mirrors the SDK method signatures so *dynamodb.Client satisfies it.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// Dynamo is the DynamoDB-backed Engine.
type Dynamo struct {
	client DynamoAPI
	table  string
	logger *zap.Logger
}

// NewDynamo creates a DynamoDB engine over one table.
func NewDynamo(client DynamoAPI, table string, logger *zap.Logger) *Dynamo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dynamo{client: client, table: table, logger: logger}
}

var _ Engine = (*Dynamo)(nil)

func keyAV(key keys.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: key.PK},
		"SK": &types.AttributeValueMemberS{Value: key.SK},
	}
}

// Get returns the item at key, or ErrNotFound.
func (d *Dynamo) Get(ctx context.Context, key keys.Key) (Item, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key:       keyAV(key),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return out.Item, nil
}

// Put writes an item, replacing any existing one.
func (d *Dynamo) Put(ctx context.Context, item Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return err
}

// PutIfAbsent writes an item only when its key is free.
func (d *Dynamo) PutIfAbsent(ctx context.Context, item Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrAlreadyExists
	}
	return err
}

// Delete removes the item at key.
func (d *Dynamo) Delete(ctx context.Context, key keys.Key) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       keyAV(key),
	})
	return err
}

// AddToCounter atomically adds delta to a numeric field with a floor.
// The floor rides on a condition expression, so a racing decrement that
// would undershoot is rejected by the store and dropped here.
func (d *Dynamo) AddToCounter(ctx context.Context, key keys.Key, field string, delta, floor int64) error {
	input := &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              keyAV(key),
		UpdateExpression: aws.String("SET #f = if_not_exists(#f, :zero) + :delta"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":delta": &types.AttributeValueMemberN{Value: strconv.FormatInt(delta, 10)},
		},
	}

	if delta < 0 {
		input.ConditionExpression = aws.String("#f >= :min")
		input.ExpressionAttributeValues[":min"] = &types.AttributeValueMemberN{
			Value: strconv.FormatInt(floor-delta, 10),
		}
	}

	_, err := d.client.UpdateItem(ctx, input)
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		// Floored: the counter stays where it is.
		d.logger.Debug("counter decrement floored",
			zap.String("pk", key.PK),
			zap.String("field", field),
		)
		return nil
	}
	return err
}

// AppendUnique appends value to an ordered list field unless present.
func (d *Dynamo) AppendUnique(ctx context.Context, key keys.Key, field, value string) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 keyAV(key),
		UpdateExpression:    aws.String("SET #f = list_append(if_not_exists(#f, :empty), :one)"),
		ConditionExpression: aws.String("attribute_not_exists(#f) OR NOT contains(#f, :v)"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":one": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: value},
			}},
			":v": &types.AttributeValueMemberS{Value: value},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		// Already present.
		return nil
	}
	return err
}

// removeAttempts bounds the optimistic rewrite loop in RemoveValue.
const removeAttempts = 3

// RemoveValue removes value from an ordered list field. DynamoDB cannot
// remove a list element by value, so this reads the list and writes the
// filtered form back, guarded by an equality condition on the previous
// contents. Contention on the same profile is rare enough that a short
// retry loop suffices; these mirrors trail the authoritative indicator
// items anyway.
func (d *Dynamo) RemoveValue(ctx context.Context, key keys.Key, field, value string) error {
	for attempt := 0; attempt < removeAttempts; attempt++ {
		item, err := d.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}

		current, ok := item[field].(*types.AttributeValueMemberL)
		if !ok {
			return nil
		}

		filtered := make([]types.AttributeValue, 0, len(current.Value))
		found := false
		for _, av := range current.Value {
			if s, ok := av.(*types.AttributeValueMemberS); ok && s.Value == value {
				found = true
				continue
			}
			filtered = append(filtered, av)
		}
		if !found {
			return nil
		}

		_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(d.table),
			Key:                 keyAV(key),
			UpdateExpression:    aws.String("SET #f = :new"),
			ConditionExpression: aws.String("#f = :old"),
			ExpressionAttributeNames: map[string]string{
				"#f": field,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new": &types.AttributeValueMemberL{Value: filtered},
				":old": current,
			},
		})
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			continue // list changed underneath, re-read
		}
		return err
	}

	d.logger.Warn("list remove gave up after contention",
		zap.String("pk", key.PK),
		zap.String("field", field),
	)
	return nil
}

// Query returns one page of a partition.
func (d *Dynamo) Query(ctx context.Context, q Query) (Page, error) {
	pkAttr, skAttr := indexAttrs(q.Index)

	keyCond := "#pk = :pk"
	exprNames := map[string]string{"#pk": pkAttr}
	exprValues := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.PK},
	}
	if q.SKPrefix != "" {
		keyCond += " AND begins_with(#sk, :prefix)"
		exprNames["#sk"] = skAttr
		exprValues[":prefix"] = &types.AttributeValueMemberS{Value: q.SKPrefix}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.table),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		ScanIndexForward:          aws.Bool(q.Ascending),
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(q.Limit)
	}
	if len(q.StartKey) > 0 {
		start := make(map[string]types.AttributeValue, len(q.StartKey))
		for k, v := range q.StartKey {
			start[k] = &types.AttributeValueMemberS{Value: v}
		}
		input.ExclusiveStartKey = start
	}

	out, err := d.client.Query(ctx, input)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: out.Items}
	if len(out.LastEvaluatedKey) > 0 {
		page.LastKey = make(map[string]string, len(out.LastEvaluatedKey))
		for k, av := range out.LastEvaluatedKey {
			if s, ok := av.(*types.AttributeValueMemberS); ok {
				page.LastKey[k] = s.Value
			}
		}
	}
	return page, nil
}

// Count walks every page of a partition with Select COUNT, so no item
// data crosses the wire.
func (d *Dynamo) Count(ctx context.Context, q Query) (int64, error) {
	pkAttr, skAttr := indexAttrs(q.Index)

	keyCond := "#pk = :pk"
	exprNames := map[string]string{"#pk": pkAttr}
	exprValues := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.PK},
	}
	if q.SKPrefix != "" {
		keyCond += " AND begins_with(#sk, :prefix)"
		exprNames["#sk"] = skAttr
		exprValues[":prefix"] = &types.AttributeValueMemberS{Value: q.SKPrefix}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.table),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		Select:                    types.SelectCount,
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	}

	var total int64
	for {
		out, err := d.client.Query(ctx, input)
		if err != nil {
			return 0, err
		}
		total += int64(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// SetCounter overwrites a numeric field with an absolute value on an
// existing item.
func (d *Dynamo) SetCounter(ctx context.Context, key keys.Key, field string, value int64) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.table),
		Key:                 keyAV(key),
		UpdateExpression:    aws.String("SET #f = :v"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#f": field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(value, 10)},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConditionFailed
	}
	return err
}

// TransactWrite applies all writes or none of them.
func (d *Dynamo) TransactWrite(ctx context.Context, writes []Write) error {
	items := make([]types.TransactWriteItem, 0, len(writes))
	kinds := make([]condKind, 0, len(writes))

	for _, w := range writes {
		switch {
		case w.Put != nil:
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(d.table),
					Item:      w.Put,
				},
			})
			kinds = append(kinds, condNone)

		case w.PutIfAbsent != nil:
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(d.table),
					Item:                w.PutIfAbsent,
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			})
			kinds = append(kinds, condCreate)

		case w.SetAdd != nil:
			items = append(items, d.setUpdate(w.SetAdd, "ADD #f :m"))
			kinds = append(kinds, existsKind(w.SetAdd.RequireExists))

		case w.SetRemove != nil:
			items = append(items, d.setUpdate(w.SetRemove, "DELETE #f :m"))
			kinds = append(kinds, existsKind(w.SetRemove.RequireExists))

		default:
			return fmt.Errorf("storage: empty transact write")
		}
	}

	_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactError(err, kinds)
}

func (d *Dynamo) setUpdate(m *SetMutation, expr string) types.TransactWriteItem {
	update := &types.Update{
		TableName:        aws.String(d.table),
		Key:              keyAV(m.Key),
		UpdateExpression: aws.String(expr),
		ExpressionAttributeNames: map[string]string{
			"#f": m.Field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":m": &types.AttributeValueMemberSS{Value: []string{m.Member}},
		},
	}
	if m.RequireExists {
		update.ConditionExpression = aws.String("attribute_exists(PK)")
	}
	return types.TransactWriteItem{Update: update}
}

// condKind records which condition guards a transaction member, for
// error mapping when the transaction is canceled.
type condKind int

const (
	condNone condKind = iota
	condCreate
	condExists
)

func existsKind(require bool) condKind {
	if require {
		return condExists
	}
	return condNone
}

// mapTransactError translates a canceled transaction into sentinel
// errors by inspecting which member's condition failed.
func mapTransactError(err error, kinds []condKind) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i < len(kinds) && kinds[i] == condCreate {
					return ErrAlreadyExists
				}
				return ErrConditionFailed
			}
		}
		return ErrTransactionConflict
	}

	var conflictErr *types.TransactionConflictException
	if errors.As(err, &conflictErr) {
		return ErrTransactionConflict
	}

	return err
}
