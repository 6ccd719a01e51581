package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// memoryDynamo is a small in-memory table understanding the expressions the
// usage ledger sends. TransactWriteItems is all-or-nothing.
type memoryDynamo struct {
	mu            sync.Mutex
	items         map[string]map[string]types.AttributeValue
	transactCalls int
	queryCalls    int
	failWith      error

	// pageSize caps the items per Query page when set.
	pageSize int
}

func newMemoryDynamo() *memoryDynamo {
	return &memoryDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(key map[string]types.AttributeValue) string {
	return key["pk"].(*types.AttributeValueMemberS).Value + "|" + key["sk"].(*types.AttributeValueMemberS).Value
}

func numberAttr(av types.AttributeValue) int {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.Atoi(n.Value)
	return v
}

func (m *memoryDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return &dynamodb.GetItemOutput{Item: m.items[itemKey(params.Key)]}, nil
}

func (m *memoryDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	if aws.ToString(params.KeyConditionExpression) != "pk = :pk AND begins_with(sk, :prefix)" {
		return nil, errors.New("unsupported key condition")
	}
	pk := params.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	prefix := params.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value

	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, pk+"|"+prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if params.ExclusiveStartKey != nil {
		start := itemKey(params.ExclusiveStartKey)
		keys = keys[sort.SearchStrings(keys, start):]
		if len(keys) > 0 && keys[0] == start {
			keys = keys[1:]
		}
	}

	out := &dynamodb.QueryOutput{}
	for i, k := range keys {
		if m.pageSize > 0 && i == m.pageSize {
			last := m.items[keys[i-1]]
			out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": last["pk"], "sk": last["sk"]}
			break
		}
		out.Items = append(out.Items, m.items[k])
	}
	return out, nil
}

func (m *memoryDynamo) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		switch {
		case it.Update != nil:
			u := it.Update
			if u.ConditionExpression == nil {
				continue
			}
			current, exists := m.items[itemKey(u.Key)]["used"]
			if exists && numberAttr(current) >= numberAttr(u.ExpressionAttributeValues[":limit"]) {
				reasons[i].Code = aws.String("ConditionalCheckFailed")
				failed = true
			}
		case it.Put != nil:
			if _, exists := m.items[itemKey(it.Put.Item)]; exists {
				reasons[i].Code = aws.String("ConditionalCheckFailed")
				failed = true
			}
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Update != nil:
			k := itemKey(it.Update.Key)
			item := m.items[k]
			if item == nil {
				item = map[string]types.AttributeValue{"pk": it.Update.Key["pk"], "sk": it.Update.Key["sk"]}
			}
			item["used"] = &types.AttributeValueMemberN{Value: strconv.Itoa(numberAttr(item["used"]) + 1)}
			m.items[k] = item
		case it.Put != nil:
			m.items[itemKey(it.Put.Item)] = it.Put.Item
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
