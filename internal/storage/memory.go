package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/plume/internal/keys"
)

// Memory is an in-process Engine with the same visible semantics as the
// DynamoDB one: per-item atomicity, conditional creates, floored
// counters, and all-or-nothing transactions. It backs unit tests and
// local development without AWS credentials.
type Memory struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewMemory creates an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]Item)}
}

var _ Engine = (*Memory)(nil)

func memKey(pk, sk string) string { return pk + "\x00" + sk }

func itemKey(item Item) (string, bool) {
	pk, okPK := item["PK"].(*types.AttributeValueMemberS)
	sk, okSK := item["SK"].(*types.AttributeValueMemberS)
	if !okPK || !okSK {
		return "", false
	}
	return memKey(pk.Value, sk.Value), true
}

func copyItem(item Item) Item {
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = copyAV(v)
	}
	return out
}

func copyAV(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberL:
		list := make([]types.AttributeValue, len(v.Value))
		for i, e := range v.Value {
			list[i] = copyAV(e)
		}
		return &types.AttributeValueMemberL{Value: list}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	default:
		return av
	}
}

// Get returns the item at key, or ErrNotFound.
func (m *Memory) Get(ctx context.Context, key keys.Key) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[memKey(key.PK, key.SK)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// Put writes an item, replacing any existing one.
func (m *Memory) Put(ctx context.Context, item Item) error {
	k, ok := itemKey(item)
	if !ok {
		return ErrConditionFailed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[k] = copyItem(item)
	return nil
}

// PutIfAbsent writes an item only when its key is free.
func (m *Memory) PutIfAbsent(ctx context.Context, item Item) error {
	k, ok := itemKey(item)
	if !ok {
		return ErrConditionFailed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[k]; exists {
		return ErrAlreadyExists
	}
	m.items[k] = copyItem(item)
	return nil
}

// Delete removes the item at key.
func (m *Memory) Delete(ctx context.Context, key keys.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, memKey(key.PK, key.SK))
	return nil
}

// AddToCounter atomically adds delta to a numeric field with a floor.
func (m *Memory) AddToCounter(ctx context.Context, key keys.Key, field string, delta, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[memKey(key.PK, key.SK)]
	if !ok {
		if delta < 0 {
			return nil // would undershoot the floor on an absent item
		}
		item = Item{
			"PK": &types.AttributeValueMemberS{Value: key.PK},
			"SK": &types.AttributeValueMemberS{Value: key.SK},
		}
		m.items[memKey(key.PK, key.SK)] = item
	}

	var current int64
	if n, ok := item[field].(*types.AttributeValueMemberN); ok {
		current, _ = strconv.ParseInt(n.Value, 10, 64)
	}

	next := current + delta
	if delta < 0 && next < floor {
		return nil // floored, dropped entirely
	}
	item[field] = &types.AttributeValueMemberN{Value: strconv.FormatInt(next, 10)}
	return nil
}

// AppendUnique appends value to an ordered list field unless present.
func (m *Memory) AppendUnique(ctx context.Context, key keys.Key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[memKey(key.PK, key.SK)]
	if !ok {
		// Same upsert behavior as an UpdateItem on a missing key.
		item = Item{
			"PK": &types.AttributeValueMemberS{Value: key.PK},
			"SK": &types.AttributeValueMemberS{Value: key.SK},
		}
		m.items[memKey(key.PK, key.SK)] = item
	}

	list, _ := item[field].(*types.AttributeValueMemberL)
	if list == nil {
		list = &types.AttributeValueMemberL{}
	}
	for _, e := range list.Value {
		if s, ok := e.(*types.AttributeValueMemberS); ok && s.Value == value {
			return nil
		}
	}
	item[field] = &types.AttributeValueMemberL{
		Value: append(list.Value, &types.AttributeValueMemberS{Value: value}),
	}
	return nil
}

// RemoveValue removes value from an ordered list field.
func (m *Memory) RemoveValue(ctx context.Context, key keys.Key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[memKey(key.PK, key.SK)]
	if !ok {
		return nil
	}
	list, ok := item[field].(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}

	filtered := make([]types.AttributeValue, 0, len(list.Value))
	for _, e := range list.Value {
		if s, ok := e.(*types.AttributeValueMemberS); ok && s.Value == value {
			continue
		}
		filtered = append(filtered, e)
	}
	item[field] = &types.AttributeValueMemberL{Value: filtered}
	return nil
}

// Query returns one page of a partition, ordered by sort key.
func (m *Memory) Query(ctx context.Context, q Query) (Page, error) {
	pkAttr, skAttr := indexAttrs(q.Index)

	m.mu.Lock()
	type row struct {
		sk   string
		item Item
	}
	var rows []row
	for _, item := range m.items {
		pk, ok := item[pkAttr].(*types.AttributeValueMemberS)
		if !ok || pk.Value != q.PK {
			continue
		}
		sk, ok := item[skAttr].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if q.SKPrefix != "" && !strings.HasPrefix(sk.Value, q.SKPrefix) {
			continue
		}
		rows = append(rows, row{sk: sk.Value, item: copyItem(item)})
	}
	m.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if q.Ascending {
			return rows[i].sk < rows[j].sk
		}
		return rows[i].sk > rows[j].sk
	})

	// ExclusiveStartKey semantics: resume strictly after the given sort key.
	if start, ok := q.StartKey[skAttr]; ok {
		kept := rows[:0]
		for _, r := range rows {
			if q.Ascending && r.sk > start {
				kept = append(kept, r)
			}
			if !q.Ascending && r.sk < start {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	page := Page{}
	limit := int(q.Limit)
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		page.Items = append(page.Items, rows[i].item)
	}

	if limit < len(rows) {
		last := rows[limit-1]
		page.LastKey = map[string]string{
			pkAttr: q.PK,
			skAttr: last.sk,
		}
		if pk, ok := last.item["PK"].(*types.AttributeValueMemberS); ok {
			page.LastKey["PK"] = pk.Value
		}
		if sk, ok := last.item["SK"].(*types.AttributeValueMemberS); ok {
			page.LastKey["SK"] = sk.Value
		}
	}
	return page, nil
}

// Count returns the total number of items matching q.
func (m *Memory) Count(ctx context.Context, q Query) (int64, error) {
	pkAttr, skAttr := indexAttrs(q.Index)

	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, item := range m.items {
		pk, ok := item[pkAttr].(*types.AttributeValueMemberS)
		if !ok || pk.Value != q.PK {
			continue
		}
		sk, ok := item[skAttr].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if q.SKPrefix != "" && !strings.HasPrefix(sk.Value, q.SKPrefix) {
			continue
		}
		total++
	}
	return total, nil
}

// SetCounter overwrites a numeric field on an existing item.
func (m *Memory) SetCounter(ctx context.Context, key keys.Key, field string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[memKey(key.PK, key.SK)]
	if !ok {
		return ErrConditionFailed
	}
	item[field] = &types.AttributeValueMemberN{Value: strconv.FormatInt(value, 10)}
	return nil
}

// TransactWrite applies all writes or none of them. Conditions are
// checked up front under the lock, mirroring the all-or-nothing contract.
func (m *Memory) TransactWrite(ctx context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Phase one: verify every condition.
	for _, w := range writes {
		switch {
		case w.PutIfAbsent != nil:
			k, ok := itemKey(w.PutIfAbsent)
			if !ok {
				return ErrConditionFailed
			}
			if _, exists := m.items[k]; exists {
				return ErrAlreadyExists
			}
		case w.SetAdd != nil:
			if err := m.checkSetTarget(w.SetAdd); err != nil {
				return err
			}
		case w.SetRemove != nil:
			if err := m.checkSetTarget(w.SetRemove); err != nil {
				return err
			}
		case w.Put != nil:
			if _, ok := itemKey(w.Put); !ok {
				return ErrConditionFailed
			}
		default:
			return ErrConditionFailed
		}
	}

	// Phase two: apply.
	for _, w := range writes {
		switch {
		case w.Put != nil:
			k, _ := itemKey(w.Put)
			m.items[k] = copyItem(w.Put)
		case w.PutIfAbsent != nil:
			k, _ := itemKey(w.PutIfAbsent)
			m.items[k] = copyItem(w.PutIfAbsent)
		case w.SetAdd != nil:
			m.applySetAdd(w.SetAdd)
		case w.SetRemove != nil:
			m.applySetRemove(w.SetRemove)
		}
	}
	return nil
}

func (m *Memory) checkSetTarget(mut *SetMutation) error {
	if !mut.RequireExists {
		return nil
	}
	if _, ok := m.items[memKey(mut.Key.PK, mut.Key.SK)]; !ok {
		return ErrConditionFailed
	}
	return nil
}

func (m *Memory) applySetAdd(mut *SetMutation) {
	k := memKey(mut.Key.PK, mut.Key.SK)
	item, ok := m.items[k]
	if !ok {
		item = Item{
			"PK": &types.AttributeValueMemberS{Value: mut.Key.PK},
			"SK": &types.AttributeValueMemberS{Value: mut.Key.SK},
		}
		m.items[k] = item
	}

	set, _ := item[mut.Field].(*types.AttributeValueMemberSS)
	if set == nil {
		set = &types.AttributeValueMemberSS{}
	}
	for _, member := range set.Value {
		if member == mut.Member {
			return
		}
	}
	item[mut.Field] = &types.AttributeValueMemberSS{
		Value: append(set.Value, mut.Member),
	}
}

func (m *Memory) applySetRemove(mut *SetMutation) {
	item, ok := m.items[memKey(mut.Key.PK, mut.Key.SK)]
	if !ok {
		return
	}
	set, ok := item[mut.Field].(*types.AttributeValueMemberSS)
	if !ok {
		return
	}

	filtered := make([]string, 0, len(set.Value))
	for _, member := range set.Value {
		if member != mut.Member {
			filtered = append(filtered, member)
		}
	}
	if len(filtered) == 0 {
		delete(item, mut.Field)
		return
	}
	item[mut.Field] = &types.AttributeValueMemberSS{Value: filtered}
}

// Len reports the number of stored items. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
